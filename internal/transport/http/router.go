package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/trends_dashboard/internal/handlers"
	"github.com/Skotchmaster/trends_dashboard/internal/middleware/auth"
	"github.com/Skotchmaster/trends_dashboard/internal/middleware/csrf"
)

type Deps struct {
	Guard          *auth.Guard
	SessionHandler *handlers.SessionHandler
	ProfileHandler *handlers.ProfileHandler
	GridHandler    *handlers.GridHandler
	ActionHandler  *handlers.ActionHandler
	HealthHandler  *handlers.HealthHandler

	CSRF *csrf.Config
}

// CSRFExempt lists the routes a page may call before it holds a token.
var CSRFExempt = []string{
	"/api/session/login",
	"/api/session/forgot-password",
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health", d.HealthHandler.Health)
	e.GET("/health/live", d.HealthHandler.Live)
	e.GET("/health/ready", d.HealthHandler.Ready)

	api := e.Group("/api")
	if d.CSRF != nil {
		cfg := *d.CSRF
		cfg.SkipPaths = append(cfg.SkipPaths, CSRFExempt...)
		api.Use(csrf.Middleware(cfg))
	}

	s := api.Group("/session")
	s.GET("", d.SessionHandler.Resolve)
	s.POST("/login", d.SessionHandler.Login)
	s.POST("/refresh", d.SessionHandler.Refresh)
	s.POST("/logout", d.SessionHandler.Logout)
	s.POST("/logout-all", d.SessionHandler.LogoutAll)
	s.POST("/forgot-password", d.SessionHandler.ForgotPassword)

	profile := api.Group("/profile", d.Guard.RequireSession)
	profile.GET("", d.ProfileHandler.Get)
	profile.PATCH("", d.ProfileHandler.Update)
	profile.POST("/password", d.ProfileHandler.ChangePassword)

	g := api.Group("/grid/:table", d.Guard.RequireSession)
	g.GET("/columns", d.GridHandler.Columns)
	g.POST("", d.GridHandler.Rows)
	g.POST("/refresh", d.GridHandler.Refresh)
	g.POST("/row", d.GridHandler.Row)

	a := d.ActionHandler
	api.GET("/executions/:id", a.ExecutionDetail, d.Guard.RequireSession)
	api.GET("/executions/:id/logs", a.ExecutionLogs, d.Guard.RequireSession)
	api.GET("/executions/:id/docker-logs", a.DockerLogs, d.Guard.RequireAdmin)
	api.GET("/scripts/:id/logs", a.ScriptLogs, d.Guard.RequireSession)
	api.PATCH("/scripts/:id", a.UpdateScript, d.Guard.RequireAdmin)
	api.PATCH("/users/:id", a.UpdateUser, d.Guard.RequireSuperAdmin)

	admin := api.Group("/admin/rate-limit", d.Guard.RequireSuperAdmin)
	admin.GET("", a.RateLimitStatus)
	admin.POST("/reset", a.ResetRateLimits)
}
