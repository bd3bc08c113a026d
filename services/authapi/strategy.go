// Package authapi authenticates against the Masomo REST backend.
package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

const (
	loginEndpoint   = "/auth/login"
	logoutEndpoint  = "/auth/logout"
	refreshEndpoint = "/auth/refresh"
	meEndpoint      = "/auth/me"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	Success      bool       `json:"success"`
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	User         *user.User `json:"user"`
	Message      string     `json:"message"`
}

// RemoteStrategy is the production auth.Strategy.
type RemoteStrategy struct {
	baseURL string
	client  *rest.Client
}

var _ auth.Strategy = (*RemoteStrategy)(nil)

// NewRemoteStrategy talks to the API rooted at baseURL (eg. http://localhost:5000/api).
// A nil httpClient means http.DefaultClient.
func NewRemoteStrategy(baseURL string, httpClient *http.Client) *RemoteStrategy {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteStrategy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &rest.Client{HTTPClient: httpClient},
	}
}

func (s *RemoteStrategy) Name() string { return "remote" }

func (s *RemoteStrategy) Login(ctx context.Context, creds auth.Credentials) (session.Session, error) {
	res, err := s.send(ctx, rest.Post, loginEndpoint, "", credentialsRequest{Email: creds.Email, Password: creds.Password})
	if err != nil {
		return session.Session{}, err
	}
	switch {
	case res.StatusCode == http.StatusBadRequest,
		res.StatusCode == http.StatusUnauthorized,
		res.StatusCode == http.StatusForbidden:
		return session.Session{}, auth.ErrInvalidCredentials
	case !isSuccess(res.StatusCode):
		return session.Session{}, statusError(res)
	}

	var body sessionResponse
	if err := decode(res, &body); err != nil {
		return session.Session{}, err
	}
	if !body.Success {
		return session.Session{}, errors.Wrap(auth.ErrInvalidCredentials, body.Message)
	}
	if body.Token == "" || body.User == nil {
		return session.Session{}, errors.Wrap(auth.ErrServiceUnavailable, "login response without token or user")
	}
	return session.Session{Token: body.Token, RefreshToken: body.RefreshToken, User: *body.User}, nil
}

func (s *RemoteStrategy) Logout(ctx context.Context, sess session.Session) error {
	res, err := s.send(ctx, rest.Post, logoutEndpoint, sess.Token, refreshRequest{RefreshToken: sess.RefreshToken})
	if err != nil {
		return err
	}
	if !isSuccess(res.StatusCode) {
		return statusError(res)
	}
	return nil
}

func (s *RemoteStrategy) Refresh(ctx context.Context, sess session.Session) (session.Session, error) {
	res, err := s.send(ctx, rest.Post, refreshEndpoint, "", refreshRequest{RefreshToken: sess.RefreshToken})
	if err != nil {
		return session.Session{}, err
	}
	if !isSuccess(res.StatusCode) {
		return session.Session{}, statusError(res)
	}

	var body sessionResponse
	if err := decode(res, &body); err != nil {
		return session.Session{}, err
	}
	if !body.Success || body.Token == "" {
		return session.Session{}, errors.Wrap(auth.ErrSessionInvalid, "refresh rejected")
	}

	refreshed := session.Session{Token: body.Token, RefreshToken: body.RefreshToken}
	if body.User != nil {
		refreshed.User = *body.User
	}
	return refreshed, nil
}

func (s *RemoteStrategy) CurrentUser(ctx context.Context, sess session.Session) (user.User, error) {
	res, err := s.send(ctx, rest.Get, meEndpoint, sess.Token, nil)
	if err != nil {
		return user.User{}, err
	}
	if !isSuccess(res.StatusCode) {
		return user.User{}, statusError(res)
	}

	// the user comes either bare or wrapped as {"user": {...}}
	var wrapped struct {
		User *user.User `json:"user"`
	}
	if err := decode(res, &wrapped); err != nil {
		return user.User{}, err
	}
	if wrapped.User != nil {
		return *wrapped.User, nil
	}
	var usr user.User
	if err := decode(res, &usr); err != nil {
		return user.User{}, err
	}
	if usr.IsZero() {
		return user.User{}, errors.Wrap(auth.ErrSessionInvalid, "no user in response")
	}
	return usr, nil
}

func (s *RemoteStrategy) send(ctx context.Context, method rest.Method, endpoint, token string, payload interface{}) (*rest.Response, error) {
	req := rest.Request{
		Method:  method,
		BaseURL: s.baseURL + endpoint,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if token != "" {
		req.Headers["Authorization"] = "Bearer " + token
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request")
		}
		req.Headers["Content-Type"] = "application/json"
		req.Body = body
	}

	res, err := s.client.SendWithContext(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(auth.ErrServiceUnavailable, "%s %s: %v", method, endpoint, err)
	}
	return res, nil
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// statusError classifies a non-2xx response outside of login.
func statusError(res *rest.Response) error {
	msg := fmt.Sprintf("status: %d - body: %s", res.StatusCode, res.Body)
	switch res.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return errors.Wrap(auth.ErrSessionInvalid, msg)
	default:
		return errors.Wrap(auth.ErrServiceUnavailable, msg)
	}
}

func decode(res *rest.Response, v interface{}) error {
	if err := json.Unmarshal([]byte(res.Body), v); err != nil {
		return errors.Wrapf(auth.ErrServiceUnavailable, "decoding response: %v", err)
	}
	return nil
}
