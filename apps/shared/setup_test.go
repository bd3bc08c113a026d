package shared

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/tests"
)

func testConfig(t *testing.T, testIdentities bool) *core.Config {
	return &core.Config{
		Env: "TEST",
		API: core.APIConfig{BaseURL: "http://127.0.0.1:1/api"}, // nothing listens there
		Session: core.SessionConfig{
			Backend:  "bolt",
			BoltPath: filepath.Join(t.TempDir(), "session.db"),
		},
		Auth: core.AuthConfig{TestIdentities: testIdentities, TestPassword: "s3cret"},
	}
}

func TestNewAuthStack(t *testing.T) {
	ctx := context.Background()

	t.Run("test identities enabled", func(t *testing.T) {
		stack, err := NewAuthStack(ctx, testConfig(t, true), new(testutil.Logger))
		require.NoError(t, err)
		defer stack.Close()

		usr, err := stack.Client.Login(ctx, "teacher@masomo.test", "s3cret", true)
		require.NoError(t, err)
		assert.True(t, usr.IsTeacher())
	})

	t.Run("test identities disabled", func(t *testing.T) {
		stack, err := NewAuthStack(ctx, testConfig(t, false), new(testutil.Logger))
		require.NoError(t, err)
		defer stack.Close()

		_, err = stack.Client.Login(ctx, "teacher@masomo.test", "s3cret", true)
		assert.True(t, errors.Is(err, auth.ErrServiceUnavailable), "got %v", err)
	})

	t.Run("session survives a restart", func(t *testing.T) {
		conf := testConfig(t, true)
		stack, err := NewAuthStack(ctx, conf, new(testutil.Logger))
		require.NoError(t, err)
		_, err = stack.Client.Login(ctx, "parent@masomo.test", "s3cret", true)
		require.NoError(t, err)
		require.NoError(t, stack.Close())

		stack, err = NewAuthStack(ctx, conf, new(testutil.Logger))
		require.NoError(t, err)
		defer stack.Close()
		usr, err := stack.Client.CurrentUser(ctx)
		require.NoError(t, err)
		assert.True(t, usr.IsParent())
	})

	t.Run("ephemeral file is shared, not persisted", func(t *testing.T) {
		conf := testConfig(t, true)
		conf.Session.EphemeralPath = filepath.Join(t.TempDir(), "terminal.db")
		stack, err := NewAuthStack(ctx, conf, new(testutil.Logger))
		require.NoError(t, err)
		_, err = stack.Client.Login(ctx, "student@masomo.test", "s3cret", false)
		require.NoError(t, err)
		require.NoError(t, stack.Close())

		stack, err = NewAuthStack(ctx, conf, new(testutil.Logger))
		require.NoError(t, err)
		defer stack.Close()
		sess, ok := stack.Store.Load()
		require.True(t, ok)
		assert.False(t, sess.Persistent)
		assert.True(t, sess.User.IsStudent())
	})

	t.Run("unknown backend", func(t *testing.T) {
		conf := testConfig(t, true)
		conf.Session.Backend = "etcd"
		_, err := NewAuthStack(ctx, conf, new(testutil.Logger))
		assert.Error(t, err)
	})
}
