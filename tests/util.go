package testutil

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/storage/scopes/inmem"
)

// Logger records messages instead of printing them.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, fmt.Sprintf("%s: %s", level, msg))
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// Len returns the number of recorded messages.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Messages)
}

// Scopes bundles a store with direct access to its two scopes.
type Scopes struct {
	Persistent *inmemscope.Scope
	Ephemeral  *inmemscope.Scope
	Store      *session.Store
	Logger     *Logger
}

// NewStore returns a session store backed by two in-memory scopes.
func NewStore() Scopes {
	sc := Scopes{
		Persistent: inmemscope.New("persistent"),
		Ephemeral:  inmemscope.New("ephemeral"),
		Logger:     new(Logger),
	}
	sc.Store = session.NewStore(sc.Persistent, sc.Ephemeral, sc.Logger)
	return sc
}

// NewUser builds a user record for tests.
func NewUser(id string, role user.Role, perms ...user.Permission) user.User {
	return user.User{
		ID:          id,
		FirstName:   "Test",
		LastName:    role.Title(),
		Email:       string(role) + id + "@test.cd",
		Role:        role,
		Permissions: perms,
	}
}

// MakeToken mints an HS256 JWT for usr that expires after ttl (negative ttl = already expired).
func MakeToken(t *testing.T, usr user.User, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   usr.ID,
		Issuer:    "masomo-test",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}
	return token
}
