package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/trends_dashboard/internal/grid"
	"github.com/Skotchmaster/trends_dashboard/internal/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
	"github.com/Skotchmaster/trends_dashboard/internal/session"
	"github.com/Skotchmaster/trends_dashboard/internal/trendsapi"
)

type Lister interface {
	List(ctx context.Context, token, env, endpoint string, params url.Values) trendsapi.ListOutcome
}

type GridHandler struct {
	API             Lister
	Tables          grid.Registry
	DefaultPageSize int
	RowPageSize     int
}

type rowsResponse struct {
	Rows       []map[string]any `json:"rows"`
	TotalCount int              `json:"total_count"`
	TableState grid.TableState  `json:"table_state"`
}

func (h *GridHandler) table(c echo.Context, ui session.UIState) (*grid.Table, error) {
	t, err := h.Tables.Get(c.Param("table"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if t.AdminOnly && !roles.CanSeeAdminFields(ui.Role) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "admin access required")
	}
	return t, nil
}

func (h *GridHandler) Columns(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	t, err := h.table(c, ui)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t.VisibleColumns(ui.Role))
}

func (h *GridHandler) Rows(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	t, err := h.table(c, ui)
	if err != nil {
		return err
	}
	var req grid.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid grid request")
	}

	admin := roles.CanSeeAdminFields(ui.Role)
	q := grid.BuildParams(t, req, h.DefaultPageSize, admin)
	resp, err := h.fetch(c.Request().Context(), ui, t, q.Params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rowsResponse{
		Rows:       t.Rows(resp.Rows, admin),
		TotalCount: resp.TotalCount,
		TableState: q.State,
	})
}

// Refresh reloads the first page with the grid's last query.
func (h *GridHandler) Refresh(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	t, err := h.table(c, ui)
	if err != nil {
		return err
	}
	var req struct {
		TableState grid.TableState `json:"table_state"`
		PerPage    int             `json:"per_page"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid refresh request")
	}
	if req.PerPage <= 0 {
		req.PerPage = h.DefaultPageSize
	}

	admin := roles.CanSeeAdminFields(ui.Role)
	q := grid.RefreshParams(t, req.TableState, req.PerPage, admin)
	resp, err := h.fetch(c.Request().Context(), ui, t, q.Params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rowsResponse{
		Rows:       t.Rows(resp.Rows, admin),
		TotalCount: resp.TotalCount,
		TableState: q.State,
	})
}

func (h *GridHandler) Row(c echo.Context) error {
	ui, err := guarded(c)
	if err != nil {
		return err
	}
	t, err := h.table(c, ui)
	if err != nil {
		return err
	}
	var req struct {
		Cell       grid.Cell       `json:"cell"`
		TableState grid.TableState `json:"table_state"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid row request")
	}

	ctx := c.Request().Context()
	fetch := func(ctx context.Context, params url.Values) (grid.Response, error) {
		return h.fetch(ctx, ui, t, params)
	}
	row, err := grid.ResolveRow(ctx, fetch, t, req.Cell, req.TableState, h.RowPageSize, roles.CanSeeAdminFields(ui.Role))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, row)
	case errors.Is(err, grid.ErrRowOutOfRange), errors.Is(err, grid.ErrMissingIdentifier):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, grid.ErrMissingRowIndex), errors.Is(err, grid.ErrNegativeRowIndex):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (h *GridHandler) fetch(ctx context.Context, ui session.UIState, t *grid.Table, params url.Values) (grid.Response, error) {
	l := logging.FromContext(ctx).With("table", t.Name)

	out := h.API.List(ctx, ui.Token, ui.APIEnvironment, t.Endpoint, params)
	if err := upstreamError(logging.IntoContext(ctx, l), "grid_fetch_failed", out.Outcome); err != nil {
		return grid.Response{}, err
	}

	resp, err := grid.ParseResponse(out.Body)
	if err != nil {
		l.Warn("grid_fetch_failed", "error", err)
		return grid.Response{}, echo.NewHTTPError(http.StatusBadGateway, "invalid data response")
	}
	return resp, nil
}
