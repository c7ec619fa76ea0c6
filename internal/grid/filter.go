package grid

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// AndJoiner is the API's separator for AND-combined clauses.
const AndJoiner = ","

// Handler translates one column's filter itself. It may return a clause,
// extra query parameters, or both.
type Handler func(f Filter) (clause string, params map[string]string)

var numberOps = map[string]string{
	"equals":             "=",
	"notEqual":           "!=",
	"greaterThan":        ">",
	"greaterThanOrEqual": ">=",
	"lessThan":           "<",
	"lessThanOrEqual":    "<=",
}

func quote(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// FilterClause builds the filter string and any extra parameters. Columns
// are visited in sorted order so equal models give equal output.
func FilterClause(model map[string]Filter, allowed map[string]bool, handlers map[string]Handler) (string, map[string]string) {
	if len(model) == 0 {
		return "", nil
	}

	cols := make([]string, 0, len(model))
	for col := range model {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var clauses []string
	extra := map[string]string{}
	for _, col := range cols {
		if allowed != nil && !allowed[col] {
			continue
		}
		f := model[col]
		if h, ok := handlers[col]; ok {
			clause, params := h(f)
			if clause != "" {
				clauses = append(clauses, clause)
			}
			for k, v := range params {
				extra[k] = v
			}
			continue
		}
		if clause := columnClause(col, f); clause != "" {
			clauses = append(clauses, clause)
		}
	}
	if len(extra) == 0 {
		extra = nil
	}
	return strings.Join(clauses, AndJoiner), extra
}

func columnClause(col string, f Filter) string {
	switch f.FilterType {
	case FilterSet:
		return setClause(col, f.Values)
	case FilterNumber:
		return numberClause(col, f)
	case FilterText:
		return textClause(col, f)
	}
	return ""
}

func setClause(col string, values []any) string {
	var ors []string
	for _, v := range values {
		s := scalarString(v)
		if s == "" {
			continue
		}
		ors = append(ors, fmt.Sprintf("%s='%s'", col, quote(s)))
	}
	if len(ors) == 0 {
		return ""
	}
	return "(" + strings.Join(ors, " OR ") + ")"
}

func numberClause(col string, f Filter) string {
	if f.Filter == nil {
		return ""
	}
	num, ok := formatNumber(f.Filter)
	if !ok {
		return ""
	}
	typ := f.Type
	if typ == "" {
		typ = "equals"
	}
	op, ok := numberOps[typ]
	if !ok {
		return ""
	}
	return col + op + num
}

// formatNumber prints integral values without a fractional part.
func formatNumber(v any) (string, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return "", false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", false
		}
		n = parsed
	default:
		return "", false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "", false
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10), true
	}
	return strconv.FormatFloat(n, 'f', -1, 64), true
}

func textClause(col string, f Filter) string {
	val := quote(strings.TrimSpace(scalarString(f.Filter)))
	if val == "" {
		return ""
	}
	switch f.Type {
	case "equals":
		return fmt.Sprintf("%s='%s'", col, val)
	case "notEquals":
		return fmt.Sprintf("%s!='%s'", col, val)
	case "startsWith":
		return fmt.Sprintf("%s like '%s%%'", col, val)
	case "endsWith":
		return fmt.Sprintf("%s like '%%%s'", col, val)
	default:
		return fmt.Sprintf("%s like '%%%s%%'", col, val)
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		s, _ := formatNumber(x)
		return s
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
