package boltscope

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
)

var bucketName = []byte("session")

// Scope stores the session in a bbolt file so it outlives the process.
type Scope struct {
	name string
	db   *bbolt.DB
}

var _ session.Scope = (*Scope)(nil)

// Open opens (or creates) the session file at path.
func Open(name, path string) (*Scope, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "creating session directory")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating session bucket")
	}
	return &Scope{name: name, db: db}, nil
}

func (s *Scope) Name() string { return s.name }

func (s *Scope) Get(key string) (string, bool, error) {
	var (
		val string
		ok  bool
	)
	err := checkOpen(s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return errors.New("session bucket not found")
		}
		if v := b.Get([]byte(key)); v != nil {
			val, ok = string(v), true
		}
		return nil
	}))
	return val, ok, err
}

// Set writes all entries in a single transaction.
func (s *Scope) Set(entries map[string]string) error {
	return checkOpen(s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return errors.New("session bucket not found")
		}
		for key, val := range entries {
			if err := b.Put([]byte(key), []byte(val)); err != nil {
				return errors.Wrapf(err, "putting %s", key)
			}
		}
		return nil
	}))
}

func (s *Scope) Delete(keys ...string) error {
	return checkOpen(s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return errors.Wrapf(err, "deleting %s", key)
			}
		}
		return nil
	}))
}

func (s *Scope) Close() error {
	return s.db.Close()
}

// checkOpen turns use of a closed file into a shutdown error: the app cannot
// keep anyone signed in without it.
func checkOpen(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return core.NewShutdownError("session file is closed")
	}
	return err
}
