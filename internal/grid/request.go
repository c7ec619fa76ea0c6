// Package grid translates server-side data grid requests into Trends.Earth
// list queries and maps the paged answers back.
package grid

import "errors"

var (
	ErrUnknownTable      = errors.New("unknown table")
	ErrRowOutOfRange     = errors.New("row index out of range for fetched page")
	ErrMissingRowIndex   = errors.New("row index not provided")
	ErrMissingIdentifier = errors.New("resolved record has no identifier")
	ErrNegativeRowIndex  = errors.New("negative row index")
)

// Request mirrors the grid's getRows payload.
type Request struct {
	StartRow    int               `json:"startRow"`
	EndRow      *int              `json:"endRow,omitempty"`
	SortModel   []SortEntry       `json:"sortModel,omitempty"`
	FilterModel map[string]Filter `json:"filterModel,omitempty"`
}

type SortEntry struct {
	ColID string `json:"colId"`
	Sort  string `json:"sort"`
}

const (
	FilterSet    = "set"
	FilterNumber = "number"
	FilterText   = "text"
	FilterDate   = "date"
)

// Filter is one column's filter model. Filter holds either a number or a
// string depending on FilterType.
type Filter struct {
	FilterType string `json:"filterType"`
	Type       string `json:"type,omitempty"`
	Filter     any    `json:"filter,omitempty"`
	Values     []any  `json:"values,omitempty"`
	DateFrom   string `json:"dateFrom,omitempty"`
	DateTo     string `json:"dateTo,omitempty"`
}
