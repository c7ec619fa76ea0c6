package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/trends_dashboard/internal/config"
)

type HealthHandler struct {
	Deployment config.Deployment
	Started    time.Time
	// Graceful reports whether the previous process exited on request.
	Graceful bool
}

type healthResponse struct {
	Status          string            `json:"status"`
	Deployment      config.Deployment `json:"deployment"`
	UptimeSeconds   int64             `json:"uptime_seconds"`
	GracefulRestart bool              `json:"graceful_restart"`
}

func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:          "ok",
		Deployment:      h.Deployment,
		UptimeSeconds:   int64(time.Since(h.Started).Seconds()),
		GracefulRestart: h.Graceful,
	})
}

func (h *HealthHandler) Live(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *HealthHandler) Ready(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
