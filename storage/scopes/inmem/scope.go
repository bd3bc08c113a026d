package inmemscope

import (
	"sync"

	"github.com/trezcool/masomo-portal/core/session"
)

// Scope keeps the session in process memory; it is gone when the process exits.
type Scope struct {
	name  string
	mutex sync.RWMutex
	table map[string]string
}

var _ session.Scope = (*Scope)(nil)

func New(name string) *Scope {
	return &Scope{
		name:  name,
		table: make(map[string]string),
	}
}

func (s *Scope) Name() string { return s.name }

func (s *Scope) Get(key string) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	val, ok := s.table[key]
	return val, ok, nil
}

func (s *Scope) Set(entries map[string]string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key, val := range entries {
		s.table[key] = val
	}
	return nil
}

func (s *Scope) Delete(keys ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, key := range keys {
		delete(s.table, key)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *Scope) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.table)
}

// Close is a no-op: there is nothing to release.
func (s *Scope) Close() error { return nil }
