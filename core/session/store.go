package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

// Store persists the session in exactly one of two scopes: a persistent one
// that survives restarts, or an ephemeral one that lives as long as the process.
// All operations are serialized, so a Load never observes a half-written Save.
type Store struct {
	mu         sync.Mutex
	persistent Scope
	ephemeral  Scope
	logger     core.Logger
}

func NewStore(persistent, ephemeral Scope, logger core.Logger) *Store {
	return &Store{
		persistent: persistent,
		ephemeral:  ephemeral,
		logger:     logger,
	}
}

func (s *Store) scopes(persistent bool) (chosen, other Scope) {
	if persistent {
		return s.persistent, s.ephemeral
	}
	return s.ephemeral, s.persistent
}

// Save writes the session into the persistent or the ephemeral scope, after
// removing any session from the other scope.
func (s *Store) Save(sess Session, persistent bool) error {
	data, err := json.Marshal(sess.User)
	if err != nil {
		return errors.Wrap(err, "marshalling user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chosen, other := s.scopes(persistent)
	if err := other.Delete(Keys...); err != nil {
		return errors.Wrapf(err, "clearing %s scope", other.Name())
	}
	entries := map[string]string{
		KeyAuthToken:    sess.Token,
		KeyRefreshToken: sess.RefreshToken,
		KeyUser:         string(data),
		KeyRememberMe:   strconv.FormatBool(persistent),
	}
	if err := chosen.Set(entries); err != nil {
		return errors.Wrapf(err, "writing %s scope", chosen.Name())
	}
	return nil
}

// Load returns the stored session, looking in the persistent scope first.
// Unreadable or malformed sessions are logged and reported as absent.
func (s *Store) Load() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, persistent := range []bool{true, false} {
		scope, _ := s.scopes(persistent)
		sess, ok, err := s.read(scope)
		if err != nil {
			s.logger.Warn(fmt.Sprintf("loading session from %s scope: %v", scope.Name(), err), err)
			continue
		}
		if ok {
			sess.Persistent = persistent
			return sess, true
		}
	}
	return Session{}, false
}

func (s *Store) read(scope Scope) (Session, bool, error) {
	token, ok, err := scope.Get(KeyAuthToken)
	if err != nil {
		return Session{}, false, errors.Wrap(err, "reading auth token")
	}
	if !ok || token == "" {
		return Session{}, false, nil
	}

	sess := Session{Token: token}
	if sess.RefreshToken, _, err = scope.Get(KeyRefreshToken); err != nil {
		return Session{}, false, errors.Wrap(err, "reading refresh token")
	}

	data, ok, err := scope.Get(KeyUser)
	if err != nil {
		return Session{}, false, errors.Wrap(err, "reading user")
	}
	if !ok {
		return Session{}, false, errors.Wrap(ErrMalformedStorage, "user missing")
	}
	if err := json.Unmarshal([]byte(data), &sess.User); err != nil {
		return Session{}, false, errors.Wrapf(ErrMalformedStorage, "decoding user: %v", err)
	}
	return sess, true, nil
}

// Clear removes the session from both scopes.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs core.MultiError
	for _, scope := range []Scope{s.persistent, s.ephemeral} {
		if err := scope.Delete(Keys...); err != nil {
			errs = append(errs, errors.Wrapf(err, "clearing %s scope", scope.Name()))
		}
	}
	return errs.ErrOrNil()
}

// Update rewrites the stored session in the scope it currently lives in.
func (s *Store) Update(sess Session) error {
	return s.Save(sess, sess.Persistent)
}
