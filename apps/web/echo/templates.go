package echoweb

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/user"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tmplLogin     = "login.html"
	tmplDenied    = "denied.html"
	tmplDashboard = "dashboard.html"
	tmplSection   = "section.html"
	tmplError     = "error.html"
)

type renderer struct {
	templates *template.Template
}

var _ echo.Renderer = (*renderer)(nil)

func newRenderer() (*renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parsing templates")
	}
	return &renderer{templates: tmpl}, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type link struct {
	Path  string
	Label string
}

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,notblank"`
	Remember string `form:"remember"`
	Next     string `form:"next"`
}

func (f loginForm) RememberMe() bool {
	return f.Remember == "on" || f.Remember == "true" || f.Remember == "1"
}

// view is the data every template receives.
type view struct {
	AppName       string
	Title         string
	Authenticated bool
	User          user.User
	Permissions   []user.Permission
	Links         []link
	Message       string

	// login
	Form   loginForm
	Errors map[string]string
	Next   string

	// access denied
	Back     string
	Fallback string
}
