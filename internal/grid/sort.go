package grid

import "strings"

// SortClause joins "<col> ASC|DESC" entries in the grid's precedence order.
// Columns outside allowed are skipped when allowed is non-nil.
func SortClause(entries []SortEntry, allowed map[string]bool) string {
	clauses := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.ColID == "" {
			continue
		}
		if allowed != nil && !allowed[e.ColID] {
			continue
		}
		dir := "ASC"
		if strings.EqualFold(e.Sort, "desc") {
			dir = "DESC"
		}
		clauses = append(clauses, e.ColID+" "+dir)
	}
	return strings.Join(clauses, ", ")
}
