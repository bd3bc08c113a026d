package redisscope

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-portal/core/session"
)

const opTimeout = 3 * time.Second

// Scope stores the session in a Redis hash so it survives portal restarts.
type Scope struct {
	client *redis.Client
	key    string
}

var _ session.Scope = (*Scope)(nil)

type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// Owner distinguishes portals sharing one Redis, eg. the OS user name.
	Owner string
}

// Open connects to Redis and checks that it answers.
func Open(ctx context.Context, opts Options) (*Scope, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return &Scope{client: client, key: opts.KeyPrefix + opts.Owner}, nil
}

func (s *Scope) Name() string { return "persistent" }

func (s *Scope) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	val, err := s.client.HGet(ctx, s.key, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "hget %s", key)
	}
	return val, true, nil
}

// Set writes all entries with a single HSET, which Redis applies atomically.
func (s *Scope) Set(entries map[string]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	values := make(map[string]interface{}, len(entries))
	for k, v := range entries {
		values[k] = v
	}
	return errors.Wrap(s.client.HSet(ctx, s.key, values).Err(), "hset")
}

func (s *Scope) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return errors.Wrap(s.client.HDel(ctx, s.key, keys...).Err(), "hdel")
}

func (s *Scope) Close() error {
	return s.client.Close()
}
