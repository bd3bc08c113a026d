package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/apps/shared"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/portal"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/authapi"
	"github.com/trezcool/masomo-portal/tests"
)

const pwd = "Passw0rd!"

func setup(t *testing.T) (*commandLine, *bytes.Buffer, testutil.Scopes) {
	sc := testutil.NewStore()
	usr := testutil.NewUser("5", user.RoleAdmin)
	backend := testutil.NewBackend(t, testutil.Account{User: usr, Password: pwd})
	fixture, err := auth.NewFixtureStrategy("")
	require.NoError(t, err)

	client := auth.NewClient(auth.ClientOptions{
		Remote:  authapi.NewRemoteStrategy(backend.BaseURL(), nil),
		Fixture: fixture,
		Store:   sc.Store,
		Logger:  sc.Logger,
	})
	p := portal.New(client, sc.Logger)
	p.Init(context.Background())

	out := new(bytes.Buffer)
	return &commandLine{client: client, portal: p, out: out}, out, sc
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
	wantOut    string
}

func (tt cliTest) check(t *testing.T, cli *commandLine, out *bytes.Buffer) {
	t.Helper()
	out.Reset()
	mockPassword(t, tt.pwd)

	err := cli.run(context.Background(), append([]string{"masomo"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	default:
		assert.NoError(t, err)
	}
	assert.Contains(t, out.String(), tt.wantOut)
}

func Test_commandLine_usage(t *testing.T) {
	cli, out, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: "Usage:"},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp, wantOut: "Usage:"},
		{name: "login: no email", args: []string{"login"}, wantErr: errHelp},
		{name: "login: help", args: []string{"login", "-h"}, wantErr: errHelp},
		{name: "login: empty password", args: []string{"login", "-email", "admin@masomo.test"}, wantErr: errHelp},
		{name: "can: no permission", args: []string{"can"}, wantErr: errHelp},
		{name: "roles", args: []string{"roles"}, wantOut: "manage_users"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}
}

func Test_commandLine_session(t *testing.T) {
	cli, out, sc := setup(t)

	// steps share the CLI and run in order
	steps := []cliTest{
		{name: "whoami: anonymous", args: []string{"whoami"}, wantErr: errNotSignedIn},
		{name: "can: anonymous", args: []string{"can", "-permission", "manage_users"}, wantErr: errNotSignedIn},
		{
			name:       "login: wrong password",
			args:       []string{"login", "-email", "admin5@test.cd"},
			pwd:        "nope",
			wantErrStr: auth.Message(auth.ErrInvalidCredentials),
		},
		{name: "login", args: []string{"login", "-email", "admin5@test.cd", "-remember"}, pwd: pwd, wantOut: "Signed in as Test Administrator (Administrator)"},
		{name: "whoami", args: []string{"whoami"}, wantOut: "role: Administrator"},
		{name: "can: granted", args: []string{"can", "-permission", "manage_users"}, wantOut: "yes"},
		{name: "can: denied", args: []string{"can", "-permission", "submit_assignments"}, wantErr: errNotPermitted, wantOut: "no"},
		{name: "refresh", args: []string{"refresh"}, wantOut: "Session refreshed"},
		{name: "logout", args: []string{"logout"}, wantOut: "Signed out"},
		{name: "logout again", args: []string{"logout"}, wantOut: "Signed out"},
		{name: "refresh: signed out", args: []string{"refresh"}, wantErrStr: auth.Message(auth.ErrSessionInvalid)},
		{name: "login: test identity", args: []string{"login", "-email", "parent@masomo.test"}, pwd: auth.DefaultTestPassword, wantOut: "(Parent)"},
	}
	for _, tt := range steps {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}

	assert.Equal(t, 0, sc.Persistent.Len(), "the last login was not remembered")
	assert.Equal(t, 4, sc.Ephemeral.Len())
}

func Test_commandLine_sessionAcrossRuns(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	conf := &core.Config{
		Env: "TEST",
		API: core.APIConfig{BaseURL: "http://127.0.0.1:1/api"}, // nothing listens there
		Session: core.SessionConfig{
			Backend:       "bolt",
			BoltPath:      filepath.Join(dir, "session.db"),
			EphemeralPath: filepath.Join(dir, "terminal.db"),
		},
		Auth: core.AuthConfig{TestIdentities: true, TestPassword: "s3cret"},
	}
	mockPassword(t, "s3cret")

	// every call builds its own stack, as a separate invocation of the binary does
	invoke := func(args ...string) (string, error) {
		logger := new(testutil.Logger)
		stack, err := shared.NewAuthStack(ctx, conf, logger)
		require.NoError(t, err)
		defer stack.Close()

		p := portal.New(stack.Client, logger)
		p.Init(ctx)
		out := new(bytes.Buffer)
		cli := &commandLine{client: stack.Client, portal: p, out: out}
		err = cli.run(ctx, append([]string{"masomo"}, args...))
		return out.String(), err
	}

	out, err := invoke("login", "-email", "student@masomo.test")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Student User")

	out, err = invoke("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "<student@masomo.test>")

	_, err = invoke("logout")
	require.NoError(t, err)
	_, err = invoke("whoami")
	assert.True(t, errors.Is(err, errNotSignedIn), "got %v", err)
}

func Test_terminalSessionPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	assert.Equal(t, filepath.Join(dir, fmt.Sprintf("masomo-session-%d.db", os.Getppid())), terminalSessionPath())
}
