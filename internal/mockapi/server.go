// Package mockapi is an offline stand-in for the Trends.Earth API, used for
// local development and end-to-end tests of the dashboard.
package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/trends_dashboard/internal/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/models"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
	"github.com/Skotchmaster/trends_dashboard/internal/tokens"
)

const (
	defaultPerPage = 20
	maxPerPage     = 1000

	claimsKey = "claims"
)

type Server struct {
	Repo          *GormRepo
	JWTSecret     []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// Limiter throttles POST /auth per client IP when set.
	Limiter *RateLimiter
	Now     func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var (
	executionsResource = Resource{
		Table: "executions",
		Columns: set("id", "script_name", "user_name", "user_email", "status",
			"start_date", "end_date", "duration", "progress"),
		Dates:       set("start_date", "end_date"),
		DefaultSort: "start_date DESC",
	}
	usersResource = Resource{
		Table: "users",
		Columns: set("id", "email", "name", "institution", "country", "role",
			"created_at", "updated_at"),
		Dates:       set("created_at", "updated_at"),
		DefaultSort: "created_at DESC",
	}
	scriptsResource = Resource{
		Table: "scripts",
		Columns: set("id", "name", "slug", "user_name", "description", "status",
			"created_at", "updated_at"),
		Dates:       set("created_at", "updated_at"),
		DefaultSort: "created_at DESC",
	}
)

func set(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"status": code, "msg": msg})
}

func (s *Server) Register(e *echo.Echo) {
	a := e.Group("/auth")
	if s.Limiter != nil {
		a.POST("", s.Login, s.Limiter.Middleware())
	} else {
		a.POST("", s.Login)
	}
	a.POST("/refresh", s.Refresh)
	a.POST("/logout", s.Logout, s.RequireAccess)
	a.POST("/logout-all", s.LogoutAll, s.RequireAccess)

	v1 := e.Group("/api/v1")
	v1.POST("/user/:email/recover-password", s.RecoverPassword)

	authed := v1.Group("", s.RequireAccess)
	authed.GET("/user/me", s.Me)
	authed.PATCH("/user/me", s.UpdateMe)
	authed.PATCH("/user/me/change-password", s.ChangePassword)
	authed.GET("/user", s.ListUsers)
	authed.GET("/script", s.ListScripts)
	authed.GET("/execution", s.ListExecutions)
	authed.GET("/execution/:id", s.GetExecution)
	authed.GET("/execution/:id/log", s.ExecutionLog)
	authed.GET("/execution/:id/docker-logs", s.DockerLogs)
	authed.GET("/log", s.LogCollection)
	authed.GET("/script/:id/log", s.ScriptLog)
	authed.PATCH("/script/:id", s.UpdateScript)
	authed.PATCH("/user/:id", s.UpdateUser)
	authed.GET("/rate-limit/status", s.RateLimitStatus)
	authed.POST("/rate-limit/reset", s.RateLimitReset)
}

func bearer(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (s *Server) RequireAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearer(c.Request())
		if raw == "" {
			return fail(c, http.StatusUnauthorized, "Missing Authorization Header")
		}
		claims, err := tokens.AccessClaimsFromToken(raw, s.JWTSecret)
		if err != nil {
			return fail(c, http.StatusUnauthorized, "Token is invalid or expired")
		}
		c.Set(claimsKey, claims)
		return next(c)
	}
}

func claimsOf(c echo.Context) *tokens.AccessClaims {
	cl, _ := c.Get(claimsKey).(*tokens.AccessClaims)
	return cl
}

func (s *Server) issue(c echo.Context, user *models.User) error {
	ctx := c.Request().Context()
	now := s.now()

	access, err := tokens.SignAccess(s.JWTSecret, user.ID, user.Email, user.Role, now, s.AccessTTL)
	if err != nil {
		return err
	}
	refresh, jti, err := tokens.SignRefresh(s.RefreshSecret, user.ID, now, s.RefreshTTL)
	if err != nil {
		return err
	}
	if err := s.Repo.SaveRefresh(ctx, refresh, jti, user.ID, now.Add(s.RefreshTTL)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"user_id":       user.ID,
		"expires_in":    int(s.AccessTTL.Seconds()),
	})
}

func (s *Server) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "mock_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	user, err := s.Repo.Authenticate(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			l.Warn("login_failed", "status", 401)
			return fail(c, http.StatusUnauthorized, "Bad username or password")
		}
		l.Error("login_failed", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "internal error")
	}
	l.Info("login_successful", "user_id", user.ID)
	return s.issue(c, user)
}

func (s *Server) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return fail(c, http.StatusBadRequest, "refresh_token is required")
	}

	claims, err := tokens.RefreshClaimsFromToken(req.RefreshToken, s.RefreshSecret)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid refresh token")
	}
	if _, err := s.Repo.ActiveRefresh(ctx, req.RefreshToken, s.now()); err != nil {
		return fail(c, http.StatusUnauthorized, "Refresh token expired or revoked")
	}
	user, err := s.Repo.UserByID(ctx, claims.Subject)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "User not found")
	}

	access, err := tokens.SignAccess(s.JWTSecret, user.ID, user.Email, user.Role, s.now(), s.AccessTTL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": access,
		"expires_in":   int(s.AccessTTL.Seconds()),
	})
}

func (s *Server) Logout(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return fail(c, http.StatusBadRequest, "refresh_token is required")
	}
	if err := s.Repo.RevokeRefresh(c.Request().Context(), req.RefreshToken, claimsOf(c).Subject); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Logged out"})
}

func (s *Server) LogoutAll(c echo.Context) error {
	if err := s.Repo.RevokeAll(c.Request().Context(), claimsOf(c).Subject); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Logged out from all devices"})
}

func (s *Server) RecoverPassword(c echo.Context) error {
	email, err := url.PathUnescape(c.Param("email"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid email")
	}
	ok, err := s.Repo.UserExists(c.Request().Context(), email)
	if err != nil {
		return err
	}
	if !ok {
		return fail(c, http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Password recovery email sent"})
}

func (s *Server) Me(c echo.Context) error {
	user, err := s.Repo.UserByID(c.Request().Context(), claimsOf(c).Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": user})
}

func (s *Server) UpdateMe(c echo.Context) error {
	var req struct {
		Name        *string `json:"name"`
		Institution *string `json:"institution"`
		Country     *string `json:"country"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	fields := map[string]any{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return fail(c, http.StatusUnprocessableEntity, "Name cannot be empty")
		}
		fields["name"] = *req.Name
	}
	if req.Institution != nil {
		fields["institution"] = *req.Institution
	}
	if req.Country != nil {
		fields["country"] = *req.Country
	}
	user, err := s.Repo.UpdateProfile(c.Request().Context(), claimsOf(c).Subject, fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": user})
}

func (s *Server) ChangePassword(c echo.Context) error {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if len(req.NewPassword) < 6 {
		return fail(c, http.StatusUnprocessableEntity, "Password must be at least 6 characters long")
	}
	err := s.Repo.ChangePassword(c.Request().Context(), claimsOf(c).Subject, req.OldPassword, req.NewPassword)
	if errors.Is(err, ErrInvalidCredentials) {
		return fail(c, http.StatusUnauthorized, "Current password is incorrect")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Password changed"})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// listQuery translates page, per_page, sort, filter and date bounds.
func listQuery(c echo.Context, r Resource) (ListQuery, error) {
	q := ListQuery{
		Page:    max(parseIntDefault(c.QueryParam("page"), 1), 1),
		PerPage: min(max(parseIntDefault(c.QueryParam("per_page"), defaultPerPage), 1), maxPerPage),
	}
	order, err := r.ParseSort(c.QueryParam("sort"))
	if err != nil {
		return q, err
	}
	q.OrderBy = order

	where, err := r.ParseFilter(c.QueryParam("filter"))
	if err != nil {
		return q, err
	}
	dates, err := r.DateRange(c.QueryParam)
	if err != nil {
		return q, err
	}
	q.Where = append(where, dates...)
	return q, nil
}

// page writes the list envelope, dropping excluded fields.
func page[T any](c echo.Context, q ListQuery, items []T, total int64) error {
	exclude := map[string]bool{}
	for _, f := range strings.Split(c.QueryParam("exclude"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			exclude[f] = true
		}
	}

	rows := make([]map[string]any, 0, len(items))
	for _, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return err
		}
		var row map[string]any
		if err := json.Unmarshal(b, &row); err != nil {
			return err
		}
		for f := range exclude {
			delete(row, f)
		}
		rows = append(rows, row)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":     rows,
		"total":    total,
		"page":     q.Page,
		"per_page": q.PerPage,
	})
}

func (s *Server) ListUsers(c echo.Context) error {
	if !roles.CanSeeAdminFields(roles.Parse(claimsOf(c).Role)) {
		return fail(c, http.StatusForbidden, "Forbidden")
	}
	q, err := listQuery(c, usersResource)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	items, total, err := s.Repo.Users(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return page(c, q, items, total)
}

func (s *Server) ListScripts(c echo.Context) error {
	cl := claimsOf(c)
	q, err := listQuery(c, scriptsResource)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if !roles.CanSeeAdminFields(roles.Parse(cl.Role)) {
		q.Where = append(q.Where, condition{sql: "(public = ? OR user_id = ?)", args: []any{true, cl.Subject}})
	}
	items, total, err := s.Repo.Scripts(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return page(c, q, items, total)
}

func (s *Server) ListExecutions(c echo.Context) error {
	cl := claimsOf(c)
	q, err := listQuery(c, executionsResource)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if !roles.CanSeeAdminFields(roles.Parse(cl.Role)) {
		q.Where = append(q.Where, condition{sql: "user_id = ?", args: []any{cl.Subject}})
	}
	items, total, err := s.Repo.Executions(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return page(c, q, items, total)
}
