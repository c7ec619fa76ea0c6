package grid

import (
	"encoding/json"
	"fmt"
)

// Response is what the grid receives for one block of rows.
type Response struct {
	Rows       []map[string]any `json:"rows"`
	TotalCount int              `json:"total_count"`
}

type listBody struct {
	Data  []map[string]any `json:"data"`
	Total *int             `json:"total"`
}

// ParseResponse reads an API list body. The total is passed through as
// reported; when missing it falls back to the number of rows.
func ParseResponse(body []byte) (Response, error) {
	var lb listBody
	if err := json.Unmarshal(body, &lb); err != nil {
		return Response{}, fmt.Errorf("decode list response: %w", err)
	}
	rows := lb.Data
	if rows == nil {
		rows = []map[string]any{}
	}
	total := len(rows)
	if lb.Total != nil {
		total = *lb.Total
	}
	return Response{Rows: rows, TotalCount: total}, nil
}
