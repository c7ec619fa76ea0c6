package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
	"github.com/Skotchmaster/trends_dashboard/internal/middleware/auth"
	"github.com/Skotchmaster/trends_dashboard/internal/session"
)

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorResponse(c echo.Context, code int, msg string) error {
	return c.JSON(code, errorBody{Status: "error", Message: msg})
}

func jar(c echo.Context, codec *cookie.Codec) *cookie.Jar {
	return cookie.NewJar(codec, c.Response(), c.Request())
}

// bindUI reads the page's UIState from the body. A bearer token takes the
// place of a missing body token.
func bindUI(c echo.Context) (session.UIState, error) {
	var ui session.UIState
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&ui); err != nil {
			return ui, echo.NewHTTPError(http.StatusBadRequest, "invalid session state")
		}
	}
	if ui.Token == "" {
		ui.Token = auth.BearerToken(c.Request())
	}
	if ui.APIEnvironment == "" {
		ui.APIEnvironment = c.Request().Header.Get(auth.HeaderAPIEnvironment)
	}
	return ui, nil
}

func guarded(c echo.Context) (session.UIState, error) {
	ui, ok := auth.Session(c)
	if !ok {
		return ui, echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	}
	return ui, nil
}
