package echoweb

import (
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/portal"
	"github.com/trezcool/masomo-portal/core/user"
)

type section struct {
	path        string
	title       string
	requirement portal.Requirement
}

var sections = []section{
	{
		path:  "/admin/users",
		title: "Users",
		requirement: portal.Requirement{
			Roles:       []user.Role{user.RoleAdmin},
			Permissions: []user.Permission{user.PermManageUsers},
		},
	},
	{
		path:  "/teacher/courses",
		title: "My courses",
		requirement: portal.Requirement{
			Roles:       []user.Role{user.RoleTeacher},
			Permissions: []user.Permission{user.PermViewOwnCourses},
		},
	},
	{
		path:  "/student/courses",
		title: "My courses",
		requirement: portal.Requirement{
			Roles:       []user.Role{user.RoleStudent},
			Permissions: []user.Permission{user.PermViewOwnCourses},
		},
	},
	{
		path:  "/parent/children",
		title: "My children",
		requirement: portal.Requirement{
			Roles:       []user.Role{user.RoleParent},
			Permissions: []user.Permission{user.PermViewChildProgress},
		},
	},
}

type handlers struct {
	appName    string
	portal     Portal
	validate   *validator.Validate
	translator ut.Translator
	metrics    *Metrics
}

func (h *handlers) view(title string) view {
	v := view{AppName: h.appName, Title: title}
	if usr, ok := h.portal.User(); ok {
		v.Authenticated = true
		v.User = usr
		v.Permissions = h.portal.Permissions().Slice()
	}
	return v
}

func (h *handlers) home(ctx echo.Context) error {
	return ctx.Redirect(http.StatusFound, "/dashboard")
}

func (h *handlers) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *handlers) loginForm(ctx echo.Context) error {
	if _, ok := h.portal.User(); ok {
		return ctx.Redirect(http.StatusFound, "/dashboard")
	}
	v := h.view("Sign in")
	v.Next = safeNext(ctx.QueryParam("next"))
	return ctx.Render(http.StatusOK, tmplLogin, v)
}

func (h *handlers) login(ctx echo.Context) error {
	var form loginForm
	if err := ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding login form")
	}
	form.Email = core.CleanString(form.Email, true /* lower */)
	form.Next = safeNext(form.Next)
	api := wantsJSON(ctx)

	v := h.view("Sign in")
	v.Next = form.Next
	v.Form = loginForm{Email: form.Email, Remember: form.Remember}

	if err := h.validate.Struct(form); err != nil {
		if api {
			return err
		}
		v.Errors = core.TranslateErrors(err, h.translator)
		if v.Errors == nil {
			return errors.Wrap(err, "validating login form")
		}
		return ctx.Render(http.StatusBadRequest, tmplLogin, v)
	}

	res := h.portal.Login(ctx.Request().Context(), form.Email, form.Password, form.RememberMe())
	h.metrics.observeLogin(res)
	if !res.OK {
		code := loginStatus(res.Err)
		switch {
		case code == http.StatusInternalServerError:
			return errors.Wrap(res.Err, "logging in")
		case !api:
			v.Message = res.Message()
			return ctx.Render(code, tmplLogin, v)
		case code == http.StatusUnauthorized:
			return core.NewValidationError(errors.New(res.Message()))
		default:
			return echo.NewHTTPError(code, res.Message())
		}
	}

	if api {
		return h.me(ctx)
	}
	next := form.Next
	if next == "" {
		next = "/dashboard"
	}
	return ctx.Redirect(http.StatusSeeOther, next)
}

func loginStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// safeNext only keeps local paths, so the login form cannot redirect off-site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}

func (h *handlers) logout(ctx echo.Context) error {
	h.portal.Logout(ctx.Request().Context())
	return ctx.Redirect(http.StatusSeeOther, "/login")
}

func (h *handlers) dashboard(ctx echo.Context) error {
	usr, _ := h.portal.User()

	var title string
	switch usr.Role {
	case user.RoleAdmin:
		title = "Admin dashboard"
	case user.RoleTeacher:
		title = "Teacher dashboard"
	case user.RoleStudent:
		title = "Student dashboard"
	case user.RoleParent:
		title = "Parent dashboard"
	default:
		return errHttpForbidden
	}

	v := h.view(title)
	for _, sec := range sections {
		if portal.CheckAccess(h.portal, sec.requirement) == portal.DecisionAllow {
			v.Links = append(v.Links, link{Path: sec.path, Label: sec.title})
		}
	}
	return ctx.Render(http.StatusOK, tmplDashboard, v)
}

func (h *handlers) section(sec section) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.Render(http.StatusOK, tmplSection, h.view(sec.title))
	}
}

type meResponse struct {
	User        user.User         `json:"user"`
	Permissions []user.Permission `json:"permissions"`
}

func (h *handlers) me(ctx echo.Context) error {
	usr, _ := h.portal.User()
	return ctx.JSON(http.StatusOK, meResponse{User: usr, Permissions: h.portal.Permissions().Slice()})
}
