package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
	"github.com/Skotchmaster/trends_dashboard/internal/session"
)

const (
	HeaderAPIEnvironment = "X-Api-Environment"

	sessionKey = "session"
)

type Identifier interface {
	Identify(ctx context.Context, token, env string, jar session.Jar) (session.UIState, bool)
}

// Guard admits requests that belong to a live dashboard session.
type Guard struct {
	Sessions Identifier
	Codec    *cookie.Codec
}

func NewGuard(sessions Identifier, codec *cookie.Codec) *Guard {
	return &Guard{Sessions: sessions, Codec: codec}
}

func (g *Guard) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return g.require(next, nil)
}

func (g *Guard) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return g.require(next, func(ui session.UIState) error {
		if !roles.CanSeeAdminFields(ui.Role) {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

// RequireSuperAdmin admits accounts that may edit other users.
func (g *Guard) RequireSuperAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return g.require(next, func(ui session.UIState) error {
		if !roles.CanEditUsers(ui.Role) {
			return echo.NewHTTPError(http.StatusForbidden, "superadmin access required")
		}
		return nil
	})
}

func (g *Guard) require(next echo.HandlerFunc, validate func(session.UIState) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		jar := cookie.NewJar(g.Codec, c.Response(), req)

		ui, ok := g.Sessions.Identify(req.Context(), BearerToken(req), req.Header.Get(HeaderAPIEnvironment), jar)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		if validate != nil {
			if err := validate(ui); err != nil {
				return err
			}
		}

		SetSession(c, ui)
		return next(c)
	}
}

func SetSession(c echo.Context, ui session.UIState) {
	c.Set(sessionKey, ui)
}

// Session returns the UIState the guard admitted.
func Session(c echo.Context) (session.UIState, bool) {
	ui, ok := c.Get(sessionKey).(session.UIState)
	return ui, ok
}

func BearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
