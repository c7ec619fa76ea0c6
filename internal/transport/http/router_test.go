package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/trends_dashboard/internal/config"
	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
	"github.com/Skotchmaster/trends_dashboard/internal/grid"
	"github.com/Skotchmaster/trends_dashboard/internal/handlers"
	"github.com/Skotchmaster/trends_dashboard/internal/middleware/auth"
	"github.com/Skotchmaster/trends_dashboard/internal/middleware/csrf"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
	"github.com/Skotchmaster/trends_dashboard/internal/session"
	"github.com/Skotchmaster/trends_dashboard/internal/trendsapi"
)

type denyAll struct{}

func (denyAll) Identify(context.Context, string, string, session.Jar) (session.UIState, bool) {
	return session.UIState{}, false
}

type allowAs roles.Role

func (a allowAs) Identify(context.Context, string, string, session.Jar) (session.UIState, bool) {
	return session.UIState{Token: "tok", Role: roles.Role(a), APIEnvironment: "production"}, true
}

func newRouter() *echo.Echo {
	return newRouterWith(denyAll{}, &csrf.Config{})
}

func newRouterWith(id auth.Identifier, csrfCfg *csrf.Config) *echo.Echo {
	codec := cookie.NewCodec(0, false, "production")
	api := trendsapi.NewClient(trendsapi.Options{
		Environments:       map[string]config.APIEnvironment{"production": {Name: "production", Base: "http://127.0.0.1:1/api/v1", Auth: "http://127.0.0.1:1/auth"}},
		DefaultEnvironment: "production",
	})
	ctrl := session.NewController(session.Options{API: api, Codec: codec, DefaultEnvironment: "production"})

	e := echo.New()
	Register(e, &Deps{
		Guard:          auth.NewGuard(id, codec),
		SessionHandler: &handlers.SessionHandler{Sessions: ctrl, Codec: codec, DefaultEnv: "production"},
		ProfileHandler: &handlers.ProfileHandler{Profiles: ctrl, Codec: codec},
		GridHandler:    &handlers.GridHandler{API: api, Tables: grid.DefaultRegistry(), DefaultPageSize: 100, RowPageSize: 50},
		ActionHandler:  &handlers.ActionHandler{API: api},
		HealthHandler:  &handlers.HealthHandler{Started: time.Now()},
		CSRF:           csrfCfg,
	})
	return e
}

func TestRoutes(t *testing.T) {
	e := newRouter()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/session", http.StatusOK},
		{http.MethodGet, "/api/grid/executions/columns", http.StatusUnauthorized},
		{http.MethodGet, "/api/profile", http.StatusUnauthorized},
		{http.MethodPost, "/api/session/logout", http.StatusForbidden},
		{http.MethodGet, "/api/executions/e1/logs", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/rate-limit", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

// Admitted requests reach the handler, which fails against the unreachable
// upstream with 502; refused ones stop at the guard.
func TestRoutes_RoleGates(t *testing.T) {
	tests := []struct {
		role   roles.Role
		method string
		path   string
		want   int
	}{
		{roles.User, http.MethodGet, "/api/executions/e1", http.StatusBadGateway},
		{roles.User, http.MethodGet, "/api/executions/e1/docker-logs", http.StatusForbidden},
		{roles.Admin, http.MethodGet, "/api/executions/e1/docker-logs", http.StatusBadGateway},
		{roles.User, http.MethodGet, "/api/scripts/s1/logs", http.StatusBadGateway},
		{roles.User, http.MethodPatch, "/api/scripts/s1", http.StatusForbidden},
		{roles.Admin, http.MethodPatch, "/api/users/u1", http.StatusForbidden},
		{roles.SuperAdmin, http.MethodPatch, "/api/users/u1", http.StatusBadRequest},
		{roles.Admin, http.MethodGet, "/api/admin/rate-limit", http.StatusForbidden},
		{roles.SuperAdmin, http.MethodGet, "/api/admin/rate-limit", http.StatusBadGateway},
		{roles.Admin, http.MethodPost, "/api/admin/rate-limit/reset", http.StatusForbidden},
		{roles.SuperAdmin, http.MethodPost, "/api/admin/rate-limit/reset", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.role.String()+" "+tt.method+" "+tt.path, func(t *testing.T) {
			e := newRouterWith(allowAs(tt.role), nil)
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
