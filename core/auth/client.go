package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

const DefaultTimeout = 15 * time.Second

type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type ClientOptions struct {
	// Remote talks to the auth backend. Nil means no backend is configured.
	Remote Strategy
	// Fixture, when set, authenticates test identities the backend rejected or could not be asked about.
	Fixture Strategy
	Store   *session.Store
	Logger  core.Logger
	// Timeout bounds every backend call (DefaultTimeout when zero).
	Timeout time.Duration
}

// Client drives the lifecycle of the one session held in its store.
type Client struct {
	remote  Strategy
	fixture Strategy
	store   *session.Store
	logger  core.Logger
	timeout time.Duration

	mu    sync.Mutex
	state State
	// logouts counts Logout calls, so a backend answer that raced one is not written back.
	logouts uint64
}

func NewClient(opts ClientOptions) *Client {
	c := &Client{
		remote:  opts.Remote,
		fixture: opts.Fixture,
		store:   opts.Store,
		logger:  opts.Logger,
		timeout: opts.Timeout,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if _, ok := c.store.Load(); ok {
		c.state = StateAuthenticated
	}
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = s
	return prev
}

// Session returns the stored session, without verifying it.
func (c *Client) Session() (session.Session, bool) {
	return c.store.Load()
}

// Login authenticates against the backend first, then against the test identities.
// Nothing is stored unless one of them succeeds.
func (c *Client) Login(ctx context.Context, email, password string, persistent bool) (user.User, error) {
	prev := c.setState(StateAuthenticating)
	creds := Credentials{Email: core.CleanString(email, true /* lower */), Password: password}

	sess, err := c.login(ctx, creds)
	if err != nil {
		c.setState(prev)
		return user.User{}, err
	}

	sess.User.Clean()
	if err = c.store.Save(sess, persistent); err != nil {
		c.setState(prev)
		return user.User{}, errors.Wrap(err, "saving session")
	}
	c.setState(StateAuthenticated)
	return sess.User, nil
}

func (c *Client) login(ctx context.Context, creds Credentials) (session.Session, error) {
	err := ErrServiceUnavailable
	if c.remote != nil {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		sess, rerr := c.remote.Login(ctx, creds)
		cancel()
		if rerr == nil {
			return sess, nil
		}
		err = classify(rerr, ErrServiceUnavailable)
	}
	if c.fixture == nil {
		return session.Session{}, err
	}

	sess, ferr := c.fixture.Login(ctx, creds)
	switch {
	case ferr == nil:
		c.logger.Info(fmt.Sprintf("signed in test identity %s (%s: %v)", creds.Email, c.remoteName(), err))
		return sess, nil
	case errors.Is(ferr, ErrUnknownIdentity):
		return session.Session{}, err
	default:
		return session.Session{}, classify(ferr, ErrInvalidCredentials)
	}
}

// Logout invalidates the session remotely when possible and always clears the store.
func (c *Client) Logout(ctx context.Context) {
	defer c.setState(StateUnauthenticated)

	c.mu.Lock()
	c.logouts++
	c.mu.Unlock()

	if sess, ok := c.store.Load(); ok && !sess.IsFixture() && c.remote != nil && sess.RefreshToken != "" {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		if err := c.remote.Logout(ctx, sess); err != nil {
			c.logger.Warn(fmt.Sprintf("remote logout: %v", err), err)
		}
		cancel()
	}
	if err := c.store.Clear(); err != nil {
		c.logger.Error(fmt.Sprintf("clearing session: %v", err), err)
	}
}

// CurrentUser returns the user the stored session belongs to.
// Test identities are answered from the store; everyone else is asked of the backend.
func (c *Client) CurrentUser(ctx context.Context) (user.User, error) {
	sess, ok := c.store.Load()
	if !ok {
		return user.User{}, ErrSessionInvalid
	}

	strategy, err := c.strategyFor(sess)
	if err != nil {
		return user.User{}, err
	}
	c.mu.Lock()
	logouts := c.logouts
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	usr, err := strategy.CurrentUser(ctx, sess)
	if err != nil {
		return user.User{}, invalidSession(classify(err, ErrServiceUnavailable))
	}
	usr.Clean()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logouts != logouts {
		return user.User{}, errors.Wrap(ErrSessionInvalid, "logged out while verifying the session")
	}
	if !sess.IsFixture() {
		sess.User = usr
		if err := c.store.Update(sess); err != nil {
			c.logger.Warn(fmt.Sprintf("re-syncing stored user: %v", err), err)
		}
	}
	c.state = StateAuthenticated
	return usr, nil
}

// Refresh exchanges the stored refresh token for a new session.
// Any failure logs out, so a half-valid session is never left behind.
func (c *Client) Refresh(ctx context.Context) error {
	c.setState(StateRefreshing)

	sess, err := c.refresh(ctx)
	if err != nil {
		c.Logout(ctx)
		return invalidSession(err)
	}
	if err = c.store.Update(sess); err != nil {
		c.Logout(ctx)
		return invalidSession(errors.Wrap(err, "saving session"))
	}
	c.setState(StateAuthenticated)
	return nil
}

func (c *Client) refresh(ctx context.Context) (session.Session, error) {
	old, ok := c.store.Load()
	if !ok {
		return session.Session{}, errors.New("no stored session")
	}
	strategy, err := c.strategyFor(old)
	if err != nil {
		return session.Session{}, err
	}
	if !old.IsFixture() && old.RefreshToken == "" {
		return session.Session{}, errors.New("no refresh token")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	sess, err := strategy.Refresh(ctx, old)
	if err != nil {
		return session.Session{}, classify(err, ErrServiceUnavailable)
	}
	if sess.Token == "" {
		return session.Session{}, errors.New("refresh returned no token")
	}
	if sess.User.IsZero() {
		sess.User = old.User
	}
	sess.User.Clean()
	sess.Persistent = old.Persistent
	return sess, nil
}

// EnsureFresh refreshes the session only when its token has expired.
func (c *Client) EnsureFresh(ctx context.Context) error {
	sess, ok := c.store.Load()
	if !ok {
		return ErrSessionInvalid
	}
	if !session.TokenExpired(sess.Token) {
		return nil
	}
	return c.Refresh(ctx)
}

// strategyFor picks who can vouch for sess. A test identity session is
// invalid outright when test identities are disabled.
func (c *Client) strategyFor(sess session.Session) (Strategy, error) {
	if sess.IsFixture() {
		if c.fixture == nil {
			return nil, errors.Wrap(ErrSessionInvalid, "test identities are disabled")
		}
		return c.fixture, nil
	}
	if c.remote == nil {
		return nil, invalidSession(ErrServiceUnavailable)
	}
	return c.remote, nil
}

func (c *Client) remoteName() string {
	if c.remote == nil {
		return "no backend"
	}
	return c.remote.Name()
}

// classify maps err into the taxonomy, using fallback for anything unrecognised.
func classify(err, fallback error) error {
	for _, known := range []error{ErrInvalidCredentials, ErrServiceUnavailable, ErrSessionInvalid, ErrUnknownIdentity} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(ErrServiceUnavailable, err.Error())
	}
	return errors.Wrap(fallback, err.Error())
}

// sessionError is ErrSessionInvalid, keeping what caused it.
type sessionError struct {
	cause error
}

func invalidSession(cause error) error {
	if errors.Is(cause, ErrSessionInvalid) {
		return cause
	}
	return &sessionError{cause: cause}
}

func (e *sessionError) Error() string        { return ErrSessionInvalid.Error() + ": " + e.cause.Error() }
func (e *sessionError) Is(target error) bool { return target == ErrSessionInvalid }
func (e *sessionError) Unwrap() error        { return e.cause }
