package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/trends_dashboard/internal/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/logview"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
	"github.com/Skotchmaster/trends_dashboard/internal/trendsapi"
)

const (
	MsgDockerLogsDenied   = "Access denied. Docker logs are only available to admin and superadmin users."
	MsgDockerLogsMissing  = "Docker logs not found for this execution."
	MsgRateLimitsReset    = "Rate limits have been successfully reset for all users and endpoints."
	MsgUserUpdated        = "User updated successfully."
	MsgScriptUpdated      = "Script updated successfully."
	defaultLogFallbackLen = 50
)

// detailIncludes are the include values the execution modal asks for.
var detailIncludes = map[string]bool{"id": true, "script_name": true, "status": true, "params": true, "results": true}

type Resources interface {
	Resource(ctx context.Context, token, env, path string, params url.Values) trendsapi.ListOutcome
	DockerLogs(ctx context.Context, token, env, executionID string) trendsapi.ListOutcome
	Send(ctx context.Context, token, env, method, path string, payload any) trendsapi.ListOutcome
}

// ActionHandler backs the row actions of the grids: detail and log modals,
// user and script edits, and the rate-limit panel.
type ActionHandler struct {
	API             Resources
	LogFallbackSize int
}

type logsResponse struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *ActionHandler) ExecutionDetail(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	params := url.Values{}
	if inc := includeParam(c.QueryParam("include")); inc != "" {
		params.Set("include", inc)
	}

	ctx := c.Request().Context()
	out := h.API.Resource(ctx, ui.Token, ui.APIEnvironment, "/execution/"+url.PathEscape(id), params)
	if err := upstreamError(ctx, "execution_fetch_failed", out.Outcome); err != nil {
		return err
	}
	detail, err := unwrapData(out.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "invalid execution response")
	}
	return c.JSON(http.StatusOK, detail)
}

// ExecutionLogs reads /execution/{id}/log and falls back to the /log
// collection when the direct route is refused.
func (h *ActionHandler) ExecutionLogs(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	ctx := c.Request().Context()

	out := h.API.Resource(ctx, ui.Token, ui.APIEnvironment, "/execution/"+url.PathEscape(id)+"/log", nil)
	if out.Kind == trendsapi.KindAuth && out.Status != http.StatusUnauthorized {
		logging.FromContext(ctx).Info("execution_log_fallback", "execution_id", id, "status", out.Status)
		out = h.API.Resource(ctx, ui.Token, ui.APIEnvironment, "/log", url.Values{
			"execution_id": {id},
			"per_page":     {strconv.Itoa(h.fallbackSize())},
			"sort":         {"register_date"},
		})
	}
	if err := upstreamError(ctx, "execution_log_failed", out.Outcome); err != nil {
		return err
	}
	return h.logs(c, fmt.Sprintf("Execution %s - Logs", id), out.Body, logview.Regular)
}

func (h *ActionHandler) DockerLogs(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	ctx := c.Request().Context()

	out := h.API.DockerLogs(ctx, ui.Token, ui.APIEnvironment, id)
	if out.Kind == trendsapi.KindAuth {
		switch out.Status {
		case http.StatusForbidden:
			return echo.NewHTTPError(http.StatusForbidden, MsgDockerLogsDenied)
		case http.StatusNotFound:
			return echo.NewHTTPError(http.StatusNotFound, MsgDockerLogsMissing)
		}
	}
	if err := upstreamError(ctx, "docker_log_failed", out.Outcome); err != nil {
		return err
	}
	return h.logs(c, fmt.Sprintf("Execution %s - Docker Logs", id), out.Body, logview.Docker)
}

func (h *ActionHandler) ScriptLogs(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	ctx := c.Request().Context()

	out := h.API.Resource(ctx, ui.Token, ui.APIEnvironment, "/script/"+url.PathEscape(id)+"/log", nil)
	if err := upstreamError(ctx, "script_log_failed", out.Outcome); err != nil {
		return err
	}
	return h.logs(c, fmt.Sprintf("Script %s - Logs", id), out.Body, logview.Regular)
}

type userEdit struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Institution string `json:"institution"`
	Country     string `json:"country"`
	Role        string `json:"role"`
}

// UpdateUser edits another account. Only superadmins reach it.
func (h *ActionHandler) UpdateUser(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	var req userEdit
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user update")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		return errorResponse(c, http.StatusBadRequest, "Name and email are required.")
	}
	role := roles.Parse(req.Role)
	if role == roles.Unknown {
		return errorResponse(c, http.StatusBadRequest, "Role must be USER, ADMIN or SUPERADMIN.")
	}
	req.Role = role.String()

	id := c.Param("id")
	ctx := c.Request().Context()
	out := h.API.Send(ctx, ui.Token, ui.APIEnvironment, http.MethodPatch, "/user/"+url.PathEscape(id), req)
	if err := upstreamError(ctx, "user_update_failed", out.Outcome); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("user_updated", "user_id", id, "role", req.Role)
	return c.JSON(http.StatusOK, messageResponse{Status: "success", Message: MsgUserUpdated})
}

type scriptEdit struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func (h *ActionHandler) UpdateScript(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	var req scriptEdit
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid script update")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return errorResponse(c, http.StatusBadRequest, "Script name is required.")
	}
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))

	id := c.Param("id")
	ctx := c.Request().Context()
	out := h.API.Send(ctx, ui.Token, ui.APIEnvironment, http.MethodPatch, "/script/"+url.PathEscape(id), req)
	if err := upstreamError(ctx, "script_update_failed", out.Outcome); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Status: "success", Message: MsgScriptUpdated})
}

func (h *ActionHandler) RateLimitStatus(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	out := h.API.Resource(ctx, ui.Token, ui.APIEnvironment, "/rate-limit/status", nil)
	if err := upstreamError(ctx, "rate_limit_status_failed", out.Outcome); err != nil {
		return err
	}
	status, err := unwrapData(out.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "invalid rate limit response")
	}
	return c.JSON(http.StatusOK, status)
}

func (h *ActionHandler) ResetRateLimits(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	out := h.API.Send(ctx, ui.Token, ui.APIEnvironment, http.MethodPost, "/rate-limit/reset", nil)
	if err := upstreamError(ctx, "rate_limit_reset_failed", out.Outcome); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("rate_limits_reset", "role", ui.Role.String())
	return c.JSON(http.StatusOK, messageResponse{Status: "success", Message: MsgRateLimitsReset})
}

func (h *ActionHandler) logs(c echo.Context, title string, body []byte, kind logview.Kind) error {
	lines, err := logview.Lines(body, kind, logview.Location(c.QueryParam("tz")))
	if err != nil {
		logging.FromContext(c.Request().Context()).Warn("log_payload_invalid", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "invalid log response")
	}
	if lines == nil {
		lines = []string{}
	}
	return c.JSON(http.StatusOK, logsResponse{Title: title, Lines: lines})
}

func (h *ActionHandler) fallbackSize() int {
	if h.LogFallbackSize > 0 {
		return h.LogFallbackSize
	}
	return defaultLogFallbackLen
}

func includeParam(raw string) string {
	var keep []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); detailIncludes[f] {
			keep = append(keep, f)
		}
	}
	return strings.Join(keep, ",")
}

// unwrapData returns the "data" member of a body when present, else the
// whole object.
func unwrapData(body []byte) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if inner, ok := obj["data"].(map[string]any); ok {
		return inner, nil
	}
	return obj, nil
}

// upstreamError maps a failed API outcome onto the dashboard's HTTP error.
func upstreamError(ctx context.Context, event string, out trendsapi.Outcome) error {
	l := logging.FromContext(ctx)
	switch out.Kind {
	case trendsapi.KindOK:
		return nil
	case trendsapi.KindNetwork:
		l.Warn(event, "timeout", out.Timeout, "error", out.Err)
		if out.Timeout {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "data request timed out")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "data service unreachable")
	case trendsapi.KindInvalid:
		l.Warn(event, "status", out.Status, "error", out.Err)
		return echo.NewHTTPError(http.StatusBadGateway, "invalid data response")
	}

	l.Warn(event, "status", out.Status)
	switch out.Status {
	case http.StatusUnauthorized:
		return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	case http.StatusForbidden, http.StatusNotFound, http.StatusBadRequest, http.StatusConflict:
		msg := out.APIMessage
		if msg == "" {
			msg = strings.ToLower(http.StatusText(out.Status))
		}
		return echo.NewHTTPError(out.Status, msg)
	default:
		return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("data service returned %d", out.Status))
	}
}
