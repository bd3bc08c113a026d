package echoweb

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-portal/core/portal"
)

// requireAuth renders the sign-in page for anonymous requests.
func requireAuth(p Portal, metrics *Metrics, appName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			d := portal.CheckAuthenticated(p)
			metrics.observeDecision(ctx.Path(), d)
			if d == portal.DecisionAllow {
				return next(ctx)
			}

			if wantsJSON(ctx) {
				return errUnauthorized
			}
			v := view{AppName: appName, Title: "Sign in", Next: safeNext(ctx.Request().URL.RequestURI())}
			return ctx.Render(http.StatusUnauthorized, tmplLogin, v)
		}
	}
}

// requireAccess renders the access-denied page when the signed-in user does not meet req.
// It must be composed after requireAuth.
func requireAccess(p Portal, req portal.Requirement, metrics *Metrics, appName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			d := portal.CheckAccess(p, req)
			metrics.observeDecision(ctx.Path(), d)
			if d == portal.DecisionAllow {
				return next(ctx)
			}

			if wantsJSON(ctx) {
				return errHttpForbidden
			}
			usr, _ := p.User()
			v := view{
				AppName:       appName,
				Title:         "Access Denied",
				Authenticated: true,
				User:          usr,
				Back:          safeNext(refererPath(ctx)),
				Fallback:      req.FallbackPath(),
			}
			return ctx.Render(http.StatusForbidden, tmplDenied, v)
		}
	}
}

func wantsJSON(ctx echo.Context) bool {
	return strings.Contains(ctx.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// refererPath keeps the path of a same-host referer.
func refererPath(ctx echo.Context) string {
	ref := ctx.Request().Referer()
	if ref == "" {
		return ""
	}
	host := "//" + ctx.Request().Host
	if i := strings.Index(ref, host); i >= 0 {
		return ref[i+len(host):]
	}
	return ""
}
