// Package portal holds the signed-in person for one application root.
package portal

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

// LoginResult reports a login attempt without ever failing the caller.
type LoginResult struct {
	OK  bool
	Err error
}

// Message is the text to show next to the login form.
func (r LoginResult) Message() string {
	if r.OK {
		return ""
	}
	return auth.Message(r.Err)
}

// Portal is the user context: create one per application root.
type Portal struct {
	client *auth.Client
	logger core.Logger

	mu    sync.RWMutex
	usr   user.User
	perms user.PermissionSet
	ok    bool

	loginMu   sync.Mutex
	ready     chan struct{}
	readyOnce sync.Once
}

func New(client *auth.Client, logger core.Logger) *Portal {
	return &Portal{
		client: client,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once Init has completed.
func (p *Portal) Ready() <-chan struct{} {
	return p.ready
}

// Init hydrates the portal from the stored session.
// Backend outages degrade to the stored user; a session the backend rejects ends in a logout.
func (p *Portal) Init(ctx context.Context) {
	defer p.readyOnce.Do(func() { close(p.ready) })

	sess, ok := p.client.Session()
	if !ok {
		return
	}
	if session.TokenExpired(sess.Token) {
		if err := p.client.EnsureFresh(ctx); err != nil {
			p.logger.Info(fmt.Sprintf("stored session could not be refreshed: %v", err))
			return
		}
	}

	usr, err := p.client.CurrentUser(ctx)
	if err != nil {
		if ferr := p.client.EnsureFresh(ctx); ferr != nil {
			p.logger.Info(fmt.Sprintf("stored session could not be refreshed: %v", ferr))
			return
		}
		usr, err = p.client.CurrentUser(ctx)
	}
	if err != nil {
		stored, ok := p.client.Session()
		switch {
		case !ok:
			return
		case errors.Is(err, auth.ErrServiceUnavailable):
			p.logger.Warn(fmt.Sprintf("verifying session: %v; using the stored user", err), err)
			usr = stored.User
		default:
			p.logger.Info(fmt.Sprintf("stored session rejected: %v", err))
			p.client.Logout(ctx)
			return
		}
	}
	p.setUser(usr)
}

// Login never fails the caller: the outcome is in the result.
// Attempts are serialised.
func (p *Portal) Login(ctx context.Context, email, password string, remember bool) LoginResult {
	p.loginMu.Lock()
	defer p.loginMu.Unlock()

	usr, err := p.client.Login(ctx, email, password, remember)
	if err != nil {
		p.logger.Info(fmt.Sprintf("login failed for %s: %v", email, err))
		return LoginResult{Err: err}
	}
	p.setUser(usr)
	return LoginResult{OK: true}
}

func (p *Portal) Logout(ctx context.Context) {
	p.loginMu.Lock()
	defer p.loginMu.Unlock()

	p.client.Logout(ctx)
	p.clearUser()
}

// Sync re-reads the user after the session was changed outside of the portal.
// As in Init, an outage keeps the current user and a rejection logs out.
func (p *Portal) Sync(ctx context.Context) error {
	if err := p.client.EnsureFresh(ctx); err != nil {
		p.clearUser()
		return err
	}
	usr, err := p.client.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrServiceUnavailable) {
			p.logger.Warn(fmt.Sprintf("syncing session: %v; keeping the current user", err), err)
			return err
		}
		p.Logout(ctx)
		return err
	}
	p.setUser(usr)
	return nil
}

func (p *Portal) setUser(usr user.User) {
	perms := usr.ResolvedPermissions()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.usr, p.perms, p.ok = usr, perms, true
}

func (p *Portal) clearUser() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usr, p.perms, p.ok = user.User{}, nil, false
}

// User returns the signed-in user; ok is false when nobody is.
func (p *Portal) User() (usr user.User, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.usr, p.ok
}

func (p *Portal) IsAuthenticated() bool {
	_, ok := p.User()
	return ok
}

// Permissions returns a copy of the resolved permissions; empty when nobody is signed in.
func (p *Portal) Permissions() user.PermissionSet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return user.NewPermissionSet().Union(p.perms)
}

func (p *Portal) HasPermission(perm user.Permission) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ok && p.perms.Has(perm)
}

func (p *Portal) IsRole(role user.Role) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ok && p.usr.Role == role
}
