package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-portal/core/user"
)

// Account is a user known to the fake backend.
type Account struct {
	User     user.User
	Password string
}

// Backend is an in-process stand-in for the auth REST API.
type Backend struct {
	*httptest.Server

	t        *testing.T
	mu       sync.Mutex
	accounts map[string]Account // by email
	tokens   map[string]string  // access token -> email
	refresh  map[string]string  // refresh token -> email
	calls    map[string]int

	// Down makes every endpoint answer 503.
	Down bool
	// TokenTTL is the lifetime of minted access tokens.
	TokenTTL time.Duration
	// OmitRefreshUser drops the user from /auth/refresh responses.
	OmitRefreshUser bool
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionBody struct {
	Success      bool       `json:"success"`
	Token        string     `json:"token,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	User         *user.User `json:"user,omitempty"`
	Message      string     `json:"message,omitempty"`
}

// NewBackend starts a fake auth API; it is closed when the test ends.
func NewBackend(t *testing.T, accounts ...Account) *Backend {
	b := &Backend{
		t:        t,
		accounts: make(map[string]Account),
		tokens:   make(map[string]string),
		refresh:  make(map[string]string),
		calls:    make(map[string]int),
		TokenTTL: time.Hour,
	}
	for _, acc := range accounts {
		b.accounts[acc.User.Email] = acc
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(b.count, b.outage)
	g := e.Group("/api/auth")
	g.POST("/login", b.login)
	g.POST("/logout", b.logout)
	g.POST("/refresh", b.refreshToken)
	g.GET("/me", b.me)

	b.Server = httptest.NewServer(e)
	t.Cleanup(b.Close)
	return b
}

// BaseURL is the API root to configure clients with.
func (b *Backend) BaseURL() string {
	return b.URL + "/api"
}

// Calls returns how many requests hit path (eg. "/api/auth/me").
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// Revoke invalidates every token issued so far.
func (b *Backend) Revoke() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]string)
	b.refresh = make(map[string]string)
}

// SetDown toggles the outage mode.
func (b *Backend) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Down = down
}

func (b *Backend) count(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		b.mu.Lock()
		b.calls[c.Request().URL.Path]++
		b.mu.Unlock()
		return next(c)
	}
}

func (b *Backend) outage(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		b.mu.Lock()
		down := b.Down
		b.mu.Unlock()
		if down {
			return c.JSON(http.StatusServiceUnavailable, sessionBody{Message: "maintenance"})
		}
		return next(c)
	}
}

// issue must be called with b.mu held.
func (b *Backend) issue(acc Account) sessionBody {
	usr := acc.User
	token := MakeToken(b.t, usr, b.TokenTTL)
	ref := uuid.NewString()
	b.tokens[token] = usr.Email
	b.refresh[ref] = usr.Email
	return sessionBody{Success: true, Token: token, RefreshToken: ref, User: &usr}
}

func (b *Backend) login(c echo.Context) error {
	var body credentialsBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, sessionBody{Message: "bad request"})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[strings.ToLower(body.Email)]
	if !ok || acc.Password != body.Password {
		return c.JSON(http.StatusUnauthorized, sessionBody{Message: "invalid credentials"})
	}
	return c.JSON(http.StatusOK, b.issue(acc))
}

func (b *Backend) logout(c echo.Context) error {
	var body refreshBody
	_ = c.Bind(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.refresh, body.RefreshToken)
	return c.NoContent(http.StatusNoContent)
}

func (b *Backend) refreshToken(c echo.Context) error {
	var body refreshBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, sessionBody{Message: "bad request"})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.refresh[body.RefreshToken]
	if !ok {
		return c.JSON(http.StatusUnauthorized, sessionBody{Message: "invalid refresh token"})
	}
	delete(b.refresh, body.RefreshToken)
	res := b.issue(b.accounts[email])
	if b.OmitRefreshUser {
		res.User = nil
	}
	return c.JSON(http.StatusOK, res)
}

func (b *Backend) me(c echo.Context) error {
	token := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")

	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.tokens[token]
	if !ok {
		return c.JSON(http.StatusUnauthorized, sessionBody{Message: "invalid token"})
	}
	return c.JSON(http.StatusOK, b.accounts[email].User)
}
