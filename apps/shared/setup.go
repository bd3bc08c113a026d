// Package shared wires the auth stack the same way for every app.
package shared

import (
	"context"
	"fmt"
	"io"
	"net/http"
	osuser "os/user"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/services/authapi"
	"github.com/trezcool/masomo-portal/storage/scopes/bolt"
	"github.com/trezcool/masomo-portal/storage/scopes/inmem"
	"github.com/trezcool/masomo-portal/storage/scopes/redis"
)

// AuthStack is the session store and the auth client built on top of it.
type AuthStack struct {
	Store  *session.Store
	Client *auth.Client

	persistent io.Closer
	ephemeral  io.Closer
}

// NewAuthStack opens the persistent scope selected by conf and composes the strategies.
// The fixture strategy is only composed when test identities are enabled.
func NewAuthStack(ctx context.Context, conf *core.Config, logger core.Logger) (*AuthStack, error) {
	persistent, err := openPersistentScope(ctx, conf)
	if err != nil {
		return nil, err
	}

	ephemeral, err := openEphemeralScope(conf)
	if err != nil {
		_ = persistent.Close()
		return nil, err
	}

	store := session.NewStore(persistent, ephemeral, logger)
	opts := auth.ClientOptions{
		Remote:  authapi.NewRemoteStrategy(conf.API.BaseURL, &http.Client{Timeout: conf.API.RequestTimeout}),
		Store:   store,
		Logger:  logger,
		Timeout: conf.API.RequestTimeout,
	}
	if conf.Auth.TestIdentities {
		fixture, err := auth.NewFixtureStrategy(conf.Auth.TestPassword)
		if err != nil {
			_ = persistent.Close()
			_ = ephemeral.Close()
			return nil, err
		}
		opts.Fixture = fixture
		logger.Warn(fmt.Sprintf("test identities are enabled (%s)", conf.Env))
	}

	return &AuthStack{
		Store:      store,
		Client:     auth.NewClient(opts),
		persistent: persistent,
		ephemeral:  ephemeral,
	}, nil
}

func (s *AuthStack) Close() error {
	var errs core.MultiError
	for _, c := range []io.Closer{s.persistent, s.ephemeral} {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.ErrOrNil()
}

type closableScope interface {
	session.Scope
	io.Closer
}

func openPersistentScope(ctx context.Context, conf *core.Config) (closableScope, error) {
	switch conf.Session.Backend {
	case "", "bolt":
		scope, err := boltscope.Open("persistent", conf.Session.BoltPath)
		if err != nil {
			return nil, errors.Wrap(err, "opening session file")
		}
		return scope, nil
	case "redis":
		owner := "default"
		if u, err := osuser.Current(); err == nil {
			owner = u.Username
		}
		scope, err := redisscope.Open(ctx, redisscope.Options{
			Addr:      conf.Session.RedisAddr,
			Password:  conf.Session.RedisPassword,
			DB:        conf.Session.RedisDB,
			KeyPrefix: conf.Session.RedisKeyPrefix,
			Owner:     owner,
		})
		if err != nil {
			return nil, errors.Wrap(err, "connecting to redis")
		}
		return scope, nil
	default:
		return nil, errors.Errorf("unknown session backend %q", conf.Session.Backend)
	}
}

// openEphemeralScope keeps the ephemeral scope in memory, unless a file is
// configured for processes that must share it across runs (the CLI).
func openEphemeralScope(conf *core.Config) (closableScope, error) {
	if conf.Session.EphemeralPath == "" {
		return inmemscope.New("ephemeral"), nil
	}
	scope, err := boltscope.Open("ephemeral", conf.Session.EphemeralPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening ephemeral session file")
	}
	return scope, nil
}
