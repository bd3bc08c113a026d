package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

// DefaultTestPassword is shared by every test identity unless configured otherwise.
const DefaultTestPassword = "Masomo@2024"

// TestIdentities are the non-production accounts, one per role.
var TestIdentities = []user.User{
	{ID: "test-admin", FirstName: "Admin", LastName: "User", Email: "admin@masomo.test", Role: user.RoleAdmin},
	{ID: "test-teacher", FirstName: "Teacher", LastName: "User", Email: "teacher@masomo.test", Role: user.RoleTeacher},
	{ID: "test-student", FirstName: "Student", LastName: "User", Email: "student@masomo.test", Role: user.RoleStudent},
	{ID: "test-parent", FirstName: "Parent", LastName: "User", Email: "parent@masomo.test", Role: user.RoleParent},
}

// FixtureStrategy authenticates the test identities locally, without any backend.
// It must only be composed when test identities are explicitly enabled.
type FixtureStrategy struct {
	identities   map[string]user.User
	passwordHash []byte
}

var _ Strategy = (*FixtureStrategy)(nil)

func NewFixtureStrategy(password string) (*FixtureStrategy, error) {
	if password == "" {
		password = DefaultTestPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, errors.Wrap(err, "hashing test password")
	}

	ids := make(map[string]user.User, len(TestIdentities))
	for _, usr := range TestIdentities {
		ids[usr.Email] = usr
	}
	return &FixtureStrategy{identities: ids, passwordHash: hash}, nil
}

func (s *FixtureStrategy) Name() string { return "fixture" }

// Knows reports whether email belongs to a test identity.
func (s *FixtureStrategy) Knows(email string) bool {
	_, ok := s.identities[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

func (s *FixtureStrategy) Login(_ context.Context, creds Credentials) (session.Session, error) {
	usr, ok := s.identities[strings.ToLower(strings.TrimSpace(creds.Email))]
	if !ok {
		return session.Session{}, ErrUnknownIdentity
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(creds.Password)); err != nil {
		return session.Session{}, ErrInvalidCredentials
	}
	return session.Session{
		Token: session.FixtureTokenPrefix + uuid.NewString(),
		User:  usr,
	}, nil
}

// Logout is a no-op: fixture tokens are unknown to any backend.
func (s *FixtureStrategy) Logout(context.Context, session.Session) error {
	return nil
}

// Refresh hands back the same session; fixture tokens never expire.
func (s *FixtureStrategy) Refresh(_ context.Context, sess session.Session) (session.Session, error) {
	if !sess.IsFixture() {
		return session.Session{}, ErrSessionInvalid
	}
	return sess, nil
}

func (s *FixtureStrategy) CurrentUser(_ context.Context, sess session.Session) (user.User, error) {
	if !sess.IsFixture() || sess.User.IsZero() {
		return user.User{}, ErrSessionInvalid
	}
	return sess.User, nil
}
