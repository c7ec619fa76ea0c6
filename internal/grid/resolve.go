package grid

import (
	"context"
	"net/url"
)

// Fetcher loads one page of a table with the given query parameters.
type Fetcher func(ctx context.Context, params url.Values) (Response, error)

// Cell identifies a clicked grid cell. Data is the row the grid already
// holds, if any.
type Cell struct {
	RowIndex *int           `json:"row_index,omitempty"`
	ColID    string         `json:"col_id"`
	Data     map[string]any `json:"data,omitempty"`
}

// ResolveRow returns the full record behind a clicked cell. Rows the grid
// already holds with an id are returned directly. Otherwise the page
// containing the row is fetched with the table's current sort and filter
// models, re-translated for the caller's role.
func ResolveRow(ctx context.Context, fetch Fetcher, t *Table, cell Cell, state TableState, pageSize int, admin bool) (map[string]any, error) {
	if hasID(cell.Data) {
		return cell.Data, nil
	}
	if cell.RowIndex == nil {
		return nil, ErrMissingRowIndex
	}

	page, offset, err := Locate(*cell.RowIndex, pageSize)
	if err != nil {
		return nil, err
	}

	state = translate(t, state.SortModel, state.FilterModel, admin)
	resp, err := fetch(ctx, stateParams(t, state, page, pageSize, admin))
	if err != nil {
		return nil, err
	}
	if offset >= len(resp.Rows) {
		return nil, ErrRowOutOfRange
	}
	row := resp.Rows[offset]
	if !hasID(row) {
		return nil, ErrMissingIdentifier
	}
	return row, nil
}

func hasID(row map[string]any) bool {
	if row == nil {
		return false
	}
	switch id := row["id"].(type) {
	case nil:
		return false
	case string:
		return id != ""
	default:
		return true
	}
}
