package echoweb

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/portal"
	"github.com/trezcool/masomo-portal/core/user"
)

// Portal is what the web app needs from the user context.
type Portal interface {
	portal.Subject
	Login(ctx context.Context, email, password string, remember bool) portal.LoginResult
	Logout(ctx context.Context)
	HasPermission(perm user.Permission) bool
}

type ServerDeps struct {
	Conf       *core.Config
	Logger     core.Logger
	Portal     Portal
	Validate   *validator.Validate
	Translator ut.Translator
	Metrics    *Metrics
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	if err := s.setup(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setup() error {
	conf := s.deps.Conf

	rdr, err := newRenderer()
	if err != nil {
		return err
	}
	s.app.Renderer = rdr
	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.deps.Portal, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.Secure())

	h := &handlers{
		appName:    conf.AppName,
		portal:     s.deps.Portal,
		validate:   s.deps.Validate,
		translator: s.deps.Translator,
		metrics:    s.deps.Metrics,
	}
	auth := requireAuth(s.deps.Portal, s.deps.Metrics, conf.AppName)
	access := func(req portal.Requirement) echo.MiddlewareFunc {
		return requireAccess(s.deps.Portal, req, s.deps.Metrics, conf.AppName)
	}

	s.app.GET("/", h.home)
	s.app.GET("/health", h.health)
	s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	s.app.GET("/login", h.loginForm)
	s.app.POST("/login", h.login)
	s.app.POST("/logout", h.logout)

	s.app.GET("/dashboard", h.dashboard, auth)
	s.app.GET("/me", h.me, auth)
	for _, sec := range sections {
		s.app.GET(sec.path, h.section(sec), auth, access(sec.requirement))
	}
	return nil
}

// Start blocks until the server stops; failures are reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	srv := &http.Server{
		Addr:         s.deps.Conf.Server.Address,
		ReadTimeout:  s.deps.Conf.Server.ReadTimeout,
		WriteTimeout: s.deps.Conf.Server.WriteTimeout,
	}
	if err := s.app.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
