package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
	"github.com/Skotchmaster/trends_dashboard/internal/middleware/csrf"
	"github.com/Skotchmaster/trends_dashboard/internal/session"
	"github.com/Skotchmaster/trends_dashboard/internal/tokens"
)

type Sessions interface {
	Resolve(ctx context.Context, in session.UIState, jar session.Jar) session.Decision
	Tick(ctx context.Context, in session.UIState, jar session.Jar) session.TickResult
	Login(ctx context.Context, in session.LoginInput, jar session.Jar) session.LoginResult
	Logout(ctx context.Context, in session.UIState, jar session.Jar) session.LogoutResult
	LogoutAll(ctx context.Context, in session.UIState, jar session.Jar) session.LogoutResult
	RecoverPassword(ctx context.Context, email, env string) session.RecoveryResult
}

type SessionHandler struct {
	Sessions        Sessions
	Codec           *cookie.Codec
	Environments    []string
	DefaultEnv      string
	RefreshInterval time.Duration
}

type resolveResponse struct {
	session.Decision
	Environments      []string `json:"environments"`
	DefaultEnv        string   `json:"default_api_environment"`
	RefreshIntervalMs int64    `json:"refresh_interval_ms"`
	// TokenInfo describes the access token's unverified claims.
	TokenInfo *tokens.Info `json:"token_info,omitempty"`
	CSRFToken string       `json:"csrf_token,omitempty"`
}

func (h *SessionHandler) Resolve(c echo.Context) error {
	ui, err := bindUI(c)
	if err != nil {
		return err
	}
	d := h.Sessions.Resolve(c.Request().Context(), ui, jar(c, h.Codec))
	resp := resolveResponse{
		Decision:          d,
		Environments:      h.Environments,
		DefaultEnv:        h.DefaultEnv,
		RefreshIntervalMs: h.RefreshInterval.Milliseconds(),
		CSRFToken:         csrf.Token(c),
	}
	if d.UI.LoggedIn() {
		if info, err := tokens.Inspect(d.UI.Token, time.Now()); err == nil {
			resp.TokenInfo = &info
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) Login(c echo.Context) error {
	var in session.LoginInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid login payload")
	}
	res := h.Sessions.Login(c.Request().Context(), in, jar(c, h.Codec))
	return c.JSON(http.StatusOK, res)
}

func (h *SessionHandler) Refresh(c echo.Context) error {
	ui, err := bindUI(c)
	if err != nil {
		return err
	}
	res := h.Sessions.Tick(c.Request().Context(), ui, jar(c, h.Codec))
	return c.JSON(http.StatusOK, res)
}

func (h *SessionHandler) Logout(c echo.Context) error {
	ui, err := bindUI(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.Sessions.Logout(c.Request().Context(), ui, jar(c, h.Codec)))
}

func (h *SessionHandler) LogoutAll(c echo.Context) error {
	ui, err := bindUI(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.Sessions.LogoutAll(c.Request().Context(), ui, jar(c, h.Codec)))
}

func (h *SessionHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email          string `json:"email"`
		APIEnvironment string `json:"api_environment"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	env := req.APIEnvironment
	if env == "" {
		env = h.DefaultEnv
	}
	return c.JSON(http.StatusOK, h.Sessions.RecoverPassword(c.Request().Context(), req.Email, env))
}
