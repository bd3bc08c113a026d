package boltscope

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
)

func TestScope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	scope, err := Open("persistent", path)
	require.NoError(t, err)
	assert.Equal(t, "persistent", scope.Name())

	_, ok, err := scope.Get("authToken")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, scope.Set(map[string]string{"authToken": "tok", "rememberMe": "true"}))
	val, ok, err := scope.Get("authToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", val)

	require.NoError(t, scope.Delete("authToken", "missing"))
	_, ok, err = scope.Get("authToken")
	require.NoError(t, err)
	assert.False(t, ok)

	// survives a reopen
	require.NoError(t, scope.Close())
	scope, err = Open("persistent", path)
	require.NoError(t, err)
	defer scope.Close()

	val, ok, err = scope.Get("rememberMe")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", val)
}

func TestScope_closed(t *testing.T) {
	scope, err := Open("ephemeral", filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	require.NoError(t, scope.Close())

	_, _, err = scope.Get("authToken")
	assert.True(t, core.IsShutdown(err), "got %v", err)
	assert.True(t, core.IsShutdown(scope.Set(map[string]string{"authToken": "tok"})))
	assert.True(t, core.IsShutdown(scope.Delete("authToken")))
}
