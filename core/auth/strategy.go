package auth

import (
	"context"

	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

type Credentials struct {
	Email    string
	Password string
}

// Strategy is a way of authenticating people.
// Implementations must classify their failures into this package's errors.
type Strategy interface {
	Name() string
	Login(ctx context.Context, creds Credentials) (session.Session, error)
	// Logout invalidates the session's refresh token.
	Logout(ctx context.Context, sess session.Session) error
	// Refresh exchanges the session's refresh token for a new session.
	// The returned session's User is zero when the strategy did not return one.
	Refresh(ctx context.Context, sess session.Session) (session.Session, error)
	CurrentUser(ctx context.Context, sess session.Session) (user.User, error)
}
