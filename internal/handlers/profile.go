package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
	"github.com/Skotchmaster/trends_dashboard/internal/session"
)

type Profiles interface {
	UpdateProfile(ctx context.Context, in session.UIState, jar session.Jar, upd session.ProfileInput) session.ProfileResult
	ChangePassword(ctx context.Context, in session.UIState, pw session.PasswordInput) session.PasswordResult
}

type ProfileHandler struct {
	Profiles Profiles
	Codec    *cookie.Codec
}

func (h *ProfileHandler) Get(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	if ui.User == nil {
		return errorResponse(c, http.StatusNotFound, "user data not available")
	}
	return c.JSON(http.StatusOK, ui.User)
}

func (h *ProfileHandler) Update(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	var in session.ProfileInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid profile payload")
	}
	return c.JSON(http.StatusOK, h.Profiles.UpdateProfile(c.Request().Context(), ui, jar(c, h.Codec), in))
}

func (h *ProfileHandler) ChangePassword(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	var in session.PasswordInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid password payload")
	}
	return c.JSON(http.StatusOK, h.Profiles.ChangePassword(c.Request().Context(), ui, in))
}
