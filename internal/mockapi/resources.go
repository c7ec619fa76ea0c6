package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/trends_dashboard/internal/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/models"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
	"github.com/Skotchmaster/trends_dashboard/internal/tokens"
)

const fallbackLogLimit = 50

func roleOf(cl *tokens.AccessClaims) roles.Role {
	return roles.Parse(cl.Role)
}

// execution loads the execution named by :id when the caller may read it.
// Non-admins see their own executions only; others read as not found.
func (s *Server) execution(c echo.Context, id string) (*models.Execution, error) {
	cl := claimsOf(c)
	ex, err := s.Repo.ExecutionByID(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && ex.UserID != cl.Subject && !roles.CanSeeAdminFields(roleOf(cl))) {
		return nil, fail(c, http.StatusNotFound, "Execution not found")
	}
	if err != nil {
		return nil, err
	}
	return ex, nil
}

func (s *Server) GetExecution(c echo.Context) error {
	ex, err := s.execution(c, c.Param("id"))
	if ex == nil {
		return err
	}

	include := map[string]bool{}
	for _, f := range strings.Split(c.QueryParam("include"), ",") {
		include[strings.TrimSpace(f)] = true
	}
	row := map[string]any{
		"id":          ex.ID,
		"script_id":   ex.ScriptID,
		"script_name": ex.ScriptName,
		"status":      ex.Status,
		"progress":    ex.Progress,
		"start_date":  ex.StartDate,
		"end_date":    ex.EndDate,
		"duration":    ex.Duration,
	}
	for field, raw := range map[string]string{"params": ex.Params, "results": ex.Results} {
		if !include[field] {
			continue
		}
		var v any
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return err
			}
		}
		row[field] = v
	}
	return c.JSON(http.StatusOK, echo.Map{"data": row})
}

func (s *Server) ExecutionLog(c echo.Context) error {
	ex, err := s.execution(c, c.Param("id"))
	if ex == nil {
		return err
	}
	return s.writeLogs(c, models.LogExecution, ex.ID, 0)
}

// LogCollection serves GET /log?execution_id=, the older route the
// dashboard falls back to.
func (s *Server) LogCollection(c echo.Context) error {
	id := c.QueryParam("execution_id")
	if id == "" {
		return fail(c, http.StatusBadRequest, "execution_id is required")
	}
	ex, err := s.execution(c, id)
	if ex == nil {
		return err
	}
	limit := min(max(parseIntDefault(c.QueryParam("per_page"), fallbackLogLimit), 1), maxPerPage)
	return s.writeLogs(c, models.LogExecution, ex.ID, limit)
}

func (s *Server) DockerLogs(c echo.Context) error {
	if !roles.CanSeeAdminFields(roleOf(claimsOf(c))) {
		return fail(c, http.StatusForbidden, "Forbidden")
	}
	ex, err := s.execution(c, c.Param("id"))
	if ex == nil {
		return err
	}
	logs, err := s.Repo.Logs(c.Request().Context(), models.LogDocker, ex.ID, 0)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return fail(c, http.StatusNotFound, "No docker logs for this execution")
	}
	type dockerLine struct {
		CreatedAt time.Time `json:"created_at"`
		Text      string    `json:"text"`
	}
	out := make([]dockerLine, len(logs))
	for i, l := range logs {
		out[i] = dockerLine{CreatedAt: l.RegisterDate, Text: l.Text}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}

func (s *Server) ScriptLog(c echo.Context) error {
	cl := claimsOf(c)
	sc, err := s.Repo.ScriptByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !sc.Public && sc.UserID != cl.Subject && !roles.CanSeeAdminFields(roleOf(cl))) {
		return fail(c, http.StatusNotFound, "Script not found")
	}
	if err != nil {
		return err
	}
	return s.writeLogs(c, models.LogScript, sc.ID, 0)
}

func (s *Server) writeLogs(c echo.Context, source, parentID string, limit int) error {
	logs, err := s.Repo.Logs(c.Request().Context(), source, parentID, limit)
	if err != nil {
		return err
	}
	if logs == nil {
		logs = []models.Log{}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": logs})
}

// UpdateUser is the superadmin edit of another account.
func (s *Server) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	if !roles.CanEditUsers(roleOf(claimsOf(c))) {
		return fail(c, http.StatusForbidden, "Forbidden")
	}
	id := c.Param("id")
	if _, err := s.Repo.UserByID(ctx, id); errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "User not found")
	} else if err != nil {
		return err
	}

	var req struct {
		Name        *string `json:"name"`
		Email       *string `json:"email"`
		Institution *string `json:"institution"`
		Country     *string `json:"country"`
		Role        *string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		taken, err := s.Repo.EmailTaken(ctx, email, id)
		if err != nil {
			return err
		}
		if taken {
			return fail(c, http.StatusBadRequest, "Email already in use")
		}
		fields["email"] = email
	}
	if req.Institution != nil {
		fields["institution"] = *req.Institution
	}
	if req.Country != nil {
		fields["country"] = *req.Country
	}
	if req.Role != nil {
		r := roles.Parse(*req.Role)
		if r == roles.Unknown {
			return fail(c, http.StatusBadRequest, "Invalid role")
		}
		fields["role"] = r.String()
	}

	user, err := s.Repo.UpdateProfile(ctx, id, fields)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("user_updated", "user_id", id)
	return c.JSON(http.StatusOK, echo.Map{"data": user})
}

// UpdateScript lets admins and the owner rename or re-describe a script.
func (s *Server) UpdateScript(c echo.Context) error {
	ctx := c.Request().Context()
	cl := claimsOf(c)
	sc, err := s.Repo.ScriptByID(ctx, c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "Script not found")
	}
	if err != nil {
		return err
	}
	if sc.UserID != cl.Subject && !roles.CanSeeAdminFields(roleOf(cl)) {
		return fail(c, http.StatusForbidden, "Forbidden")
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Status != nil && *req.Status != "" {
		fields["status"] = strings.ToUpper(*req.Status)
	}
	updated, err := s.Repo.UpdateScript(ctx, sc.ID, fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": updated})
}

func (s *Server) requireLimiter(c echo.Context) error {
	if !roles.CanEditUsers(roleOf(claimsOf(c))) {
		return fail(c, http.StatusForbidden, "Forbidden")
	}
	if s.Limiter == nil {
		return fail(c, http.StatusNotFound, "Rate limiting is disabled")
	}
	return nil
}

func (s *Server) RateLimitStatus(c echo.Context) error {
	if err := s.requireLimiter(c); err != nil || c.Response().Committed {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": s.Limiter.Status()})
}

func (s *Server) RateLimitReset(c echo.Context) error {
	if err := s.requireLimiter(c); err != nil || c.Response().Committed {
		return err
	}
	n := s.Limiter.Reset()
	logging.FromContext(c.Request().Context()).Info("rate_limits_reset", "cleared", n)
	return c.JSON(http.StatusOK, echo.Map{"msg": "Rate limits reset", "cleared": n})
}
