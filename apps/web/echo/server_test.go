package echoweb

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/portal"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/services/authapi"
	"github.com/trezcool/masomo-portal/storage/scopes/bolt"
	"github.com/trezcool/masomo-portal/storage/scopes/inmem"
	"github.com/trezcool/masomo-portal/tests"
)

func setup(t *testing.T) (*Server, *portal.Portal) {
	sc := testutil.NewStore()
	return newServer(t, sc.Store, sc.Logger)
}

func newServer(t *testing.T, store *session.Store, logger core.Logger) (*Server, *portal.Portal) {
	backend := testutil.NewBackend(t)
	fixture, err := auth.NewFixtureStrategy("")
	require.NoError(t, err)

	client := auth.NewClient(auth.ClientOptions{
		Remote:  authapi.NewRemoteStrategy(backend.BaseURL(), nil),
		Fixture: fixture,
		Store:   store,
		Logger:  logger,
	})
	p := portal.New(client, logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	srv, err := NewServer(ServerDeps{
		Conf: &core.Config{
			AppName:  "Masomo",
			TestMode: true,
			Server:   core.ServerConfig{DisableReqLogs: true},
		},
		Logger:     logger,
		Portal:     p,
		Validate:   validate,
		Translator: translator,
	})
	require.NoError(t, err)
	return srv, p
}

func do(srv *Server, method, path string, form url.Values, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func credentials(email, password string) url.Values {
	return url.Values{"email": {email}, "password": {password}, "remember": {"on"}}
}

func TestServer_anonymous(t *testing.T) {
	srv, _ := setup(t)

	tests := []struct {
		name     string
		path     string
		headers  []string
		wantCode int
		wantBody string
	}{
		{name: "home", path: "/", wantCode: http.StatusFound},
		{name: "health", path: "/health", wantCode: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "login page", path: "/login", wantCode: http.StatusOK, wantBody: "<h1>Sign in</h1>"},
		{name: "dashboard", path: "/dashboard", wantCode: http.StatusUnauthorized, wantBody: "<h1>Sign in</h1>"},
		// the auth guard answers before the role guard
		{name: "admin page", path: "/admin/users", wantCode: http.StatusUnauthorized, wantBody: `value="/admin/users"`},
		{name: "me as json", path: "/me", headers: []string{echo.HeaderAccept, echo.MIMEApplicationJSON}, wantCode: http.StatusUnauthorized, wantBody: "user not authenticated"},
		{name: "not found", path: "/lol", wantCode: http.StatusNotFound, wantBody: "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodGet, tt.path, nil, tt.headers...)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "Access Denied")
		})
	}
}

func TestServer_login(t *testing.T) {
	tests := []struct {
		name         string
		form         url.Values
		wantCode     int
		wantBody     string
		wantLocation string
	}{
		{
			name:     "invalid email",
			form:     credentials("not-an-email", "x"),
			wantCode: http.StatusBadRequest,
			wantBody: "enter a valid email address",
		},
		{
			name:     "missing password",
			form:     url.Values{"email": {"admin@masomo.test"}},
			wantCode: http.StatusBadRequest,
			wantBody: "this field is required",
		},
		{
			name:     "blank password",
			form:     credentials("admin@masomo.test", "   "),
			wantCode: http.StatusBadRequest,
			wantBody: "this field cannot be blank",
		},
		{
			name:     "wrong password",
			form:     credentials("admin@masomo.test", "nope"),
			wantCode: http.StatusUnauthorized,
			wantBody: auth.Message(auth.ErrInvalidCredentials),
		},
		{
			name:         "test identity",
			form:         credentials("Admin@Masomo.test", auth.DefaultTestPassword),
			wantCode:     http.StatusSeeOther,
			wantLocation: "/dashboard",
		},
		{
			name: "next is honoured",
			form: url.Values{
				"email": {"admin@masomo.test"}, "password": {auth.DefaultTestPassword}, "next": {"/admin/users"},
			},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/admin/users",
		},
		{
			name: "off-site next is dropped",
			form: url.Values{
				"email": {"admin@masomo.test"}, "password": {auth.DefaultTestPassword}, "next": {"//evil.example"},
			},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/dashboard",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := setup(t)
			rec := do(srv, http.MethodPost, "/login", tt.form)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get(echo.HeaderLocation))
			}
		})
	}
}

func TestServer_loginJSON(t *testing.T) {
	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantBody string
	}{
		{
			name:     "invalid email",
			form:     credentials("not-an-email", "x"),
			wantCode: http.StatusBadRequest,
			wantBody: `"email":"enter a valid email address"`,
		},
		{
			name:     "blank password",
			form:     credentials("admin@masomo.test", " "),
			wantCode: http.StatusBadRequest,
			wantBody: `"password":"this field cannot be blank"`,
		},
		{
			name:     "wrong password",
			form:     credentials("admin@masomo.test", "nope"),
			wantCode: http.StatusBadRequest,
			wantBody: `"error":"` + auth.Message(auth.ErrInvalidCredentials) + `"`,
		},
		{
			name:     "test identity",
			form:     credentials("admin@masomo.test", auth.DefaultTestPassword),
			wantCode: http.StatusOK,
			wantBody: `"role":"admin"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := setup(t)
			rec := do(srv, http.MethodPost, "/login", tt.form, echo.HeaderAccept, echo.MIMEApplicationJSON)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestServer_sessionFileClosed(t *testing.T) {
	scope, err := boltscope.Open("persistent", filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	require.NoError(t, scope.Close())

	logger := new(testutil.Logger)
	srv, p := newServer(t, session.NewStore(scope, inmemscope.New("ephemeral"), logger), logger)

	rec := do(srv, http.MethodPost, "/login", credentials("admin@masomo.test", auth.DefaultTestPassword))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, p.IsAuthenticated())
	select {
	case <-srv.ShutdownSignal():
	default:
		t.Fatal("a closed session file must shut the server down")
	}
}

func TestServer_roleGuards(t *testing.T) {
	srv, p := setup(t)
	rec := do(srv, http.MethodPost, "/login", credentials("student@masomo.test", auth.DefaultTestPassword))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.True(t, p.IsAuthenticated())

	rec = do(srv, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Student dashboard")
	assert.Contains(t, rec.Body.String(), `href="/student/courses"`)
	assert.NotContains(t, rec.Body.String(), `href="/admin/users"`)

	rec = do(srv, http.MethodGet, "/student/courses", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodGet, "/admin/users", nil, "Referer", "http://example.com/student/courses")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access Denied")
	assert.Contains(t, rec.Body.String(), `href="/student/courses"`)
	assert.Contains(t, rec.Body.String(), `href="/dashboard"`)
	assert.NotContains(t, rec.Body.String(), "Users")

	rec = do(srv, http.MethodGet, "/parent/children", nil, echo.HeaderAccept, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "permission denied")

	rec = do(srv, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"student"`)
	assert.Contains(t, rec.Body.String(), `"submit_assignments"`)
}

func TestServer_logout(t *testing.T) {
	srv, p := setup(t)
	do(srv, http.MethodPost, "/login", credentials("teacher@masomo.test", auth.DefaultTestPassword))
	require.True(t, p.IsAuthenticated())

	rec := do(srv, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.False(t, p.IsAuthenticated())

	rec = do(srv, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// logging out twice is fine
	rec = do(srv, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestServer_metrics(t *testing.T) {
	srv, _ := setup(t)
	do(srv, http.MethodPost, "/login", credentials("parent@masomo.test", "nope"))
	do(srv, http.MethodPost, "/login", credentials("parent@masomo.test", auth.DefaultTestPassword))
	do(srv, http.MethodGet, "/admin/users", nil)

	rec := do(srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `masomo_portal_logins_total{outcome="invalid_credentials"} 1`)
	assert.Contains(t, body, `masomo_portal_logins_total{outcome="ok"} 1`)
	assert.Contains(t, body, `masomo_portal_guard_decisions_total{decision="denied",route="/admin/users"} 1`)
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"/dashboard":       "/dashboard",
		"/me?x=1":          "/me?x=1",
		"//evil.example":   "",
		"/\\evil.example":  "",
		"http://evil.test": "",
		"dashboard":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), "safeNext(%q)", in)
	}
}
