package session

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/user"
)

// Storage keys. Each scope holds the same key set.
const (
	KeyAuthToken    = "authToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "userData"
	KeyRememberMe   = "rememberMe"
)

// Keys lists every key a session occupies in a scope.
var Keys = []string{KeyAuthToken, KeyRefreshToken, KeyUser, KeyRememberMe}

var ErrMalformedStorage = errors.New("malformed session storage")

// Session pairs the bearer token with the user it was issued for.
// The User is a copy and may drift from the backend until re-synced.
type Session struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	User         user.User `json:"user"`
	Persistent   bool      `json:"-"`
}

// IsFixture reports whether the session was issued for a test identity.
func (s Session) IsFixture() bool {
	return IsFixtureToken(s.Token)
}

// Scope is a key/value storage area holding at most one session.
type Scope interface {
	// Name identifies the scope in logs.
	Name() string
	// Get returns the value for key; ok is false when the key is absent.
	Get(key string) (val string, ok bool, err error)
	// Set writes all entries at once.
	Set(entries map[string]string) error
	// Delete removes the keys; missing keys are ignored.
	Delete(keys ...string) error
}
