package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

func newTestLogger(debug bool) (*RollbarLogger, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	conf := &core.Config{Debug: debug, TestMode: true, Env: "TEST"}
	return NewRollbarLogger(log.New(buf, "", 0), conf), buf
}

func TestRollbarLogger_levels(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{name: "debug mode", debug: true, wantDebug: true},
		{name: "normal mode", debug: false, wantDebug: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newTestLogger(tt.debug)
			l.Debug("dbg")
			l.Warn("careful")

			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("DEBUG: dbg")))
			assert.Contains(t, buf.String(), "WARN: careful")
		})
	}
}

func TestRollbarLogger_neverPrintsTokens(t *testing.T) {
	l, buf := newTestLogger(false)
	usr := user.User{ID: "1", Email: "a@b.cd", Role: user.RoleAdmin}
	l.Info("signed in", session.Session{Token: "secret-token", RefreshToken: "secret-refresh", User: usr}, usr)

	out := buf.String()
	assert.Contains(t, out, "INFO: signed in")
	assert.Contains(t, out, "a@b.cd")
	assert.NotContains(t, out, "secret-token")
	assert.NotContains(t, out, "secret-refresh")
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "Level(42)", Level(42).String())
}
