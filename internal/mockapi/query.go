package mockapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

var ErrBadQuery = errors.New("bad query")

// Resource is a listable collection and the columns clients may touch.
type Resource struct {
	Table   string
	Columns map[string]bool
	Dates   map[string]bool
	// DefaultSort applies when the client sends none.
	DefaultSort string
}

type condition struct {
	sql  string
	args []any
}

// splitTop splits s on sep outside quotes and parentheses.
func splitTop(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch == '\'':
			inQuote = !inQuote
		case inQuote:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// ParseSort accepts "col ASC, other desc" and returns a whitelisted ORDER BY.
func (r Resource) ParseSort(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return r.DefaultSort, nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		col := fields[0]
		if !r.Columns[col] {
			return "", fmt.Errorf("%w: cannot sort by %q", ErrBadQuery, col)
		}
		dir := "ASC"
		if len(fields) > 1 {
			switch strings.ToUpper(fields[1]) {
			case "ASC":
			case "DESC":
				dir = "DESC"
			default:
				return "", fmt.Errorf("%w: sort direction %q", ErrBadQuery, fields[1])
			}
		}
		out = append(out, col+" "+dir)
	}
	if len(out) == 0 {
		return r.DefaultSort, nil
	}
	return strings.Join(out, ", "), nil
}

// ParseFilter turns the comma-joined clause list into bound conditions.
func (r Resource) ParseFilter(raw string) ([]condition, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var conds []condition
	for _, clause := range splitTop(raw, ',') {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		c, err := r.parseClause(clause)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func (r Resource) parseClause(clause string) (condition, error) {
	if strings.HasPrefix(clause, "(") && strings.HasSuffix(clause, ")") {
		inner := clause[1 : len(clause)-1]
		var sqls []string
		var args []any
		for _, alt := range splitOr(inner) {
			c, err := r.parseClause(strings.TrimSpace(alt))
			if err != nil {
				return condition{}, err
			}
			sqls = append(sqls, c.sql)
			args = append(args, c.args...)
		}
		return condition{sql: "(" + strings.Join(sqls, " OR ") + ")", args: args}, nil
	}

	if col, val, ok := cutFold(clause, " like "); ok && !strings.ContainsAny(col, "'=<>!") {
		col = strings.TrimSpace(col)
		if !r.Columns[col] {
			return condition{}, fmt.Errorf("%w: cannot filter by %q", ErrBadQuery, col)
		}
		v, err := literal(val)
		if err != nil {
			return condition{}, err
		}
		return condition{sql: "LOWER(" + col + ") LIKE LOWER(?)", args: []any{v}}, nil
	}

	i := strings.IndexAny(clause, "!<>=")
	if i <= 0 {
		return condition{}, fmt.Errorf("%w: %q", ErrBadQuery, clause)
	}
	op := clause[i : i+1]
	if i+1 < len(clause) && clause[i+1] == '=' {
		op = clause[i : i+2]
	}
	if op == "!" {
		return condition{}, fmt.Errorf("%w: %q", ErrBadQuery, clause)
	}
	col := strings.TrimSpace(clause[:i])
	if !r.Columns[col] {
		return condition{}, fmt.Errorf("%w: cannot filter by %q", ErrBadQuery, col)
	}
	v, err := literal(clause[i+len(op):])
	if err != nil {
		return condition{}, err
	}
	return condition{sql: col + " " + op + " ?", args: []any{v}}, nil
}

// splitOr splits on " OR " outside quotes.
func splitOr(s string) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if !inQuote && i+4 <= len(s) && strings.EqualFold(s[i:i+4], " OR ") {
			parts = append(parts, s[start:i])
			start = i + 4
			i += 3
		}
	}
	return append(parts, s[start:])
}

func cutFold(s, sep string) (before, after string, found bool) {
	i := strings.Index(strings.ToLower(s), sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func literal(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return strings.ReplaceAll(raw[1:len(raw)-1], "''", "'"), nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: literal %q", ErrBadQuery, raw)
}

// DateRange reads <col>_gte and <col>_lte day bounds.
func (r Resource) DateRange(get func(string) string) ([]condition, error) {
	var conds []condition
	for col := range r.Dates {
		if v := get(col + "_gte"); v != "" {
			day, err := time.Parse("2006-01-02", v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s_gte", ErrBadQuery, col)
			}
			conds = append(conds, condition{sql: col + " >= ?", args: []any{day}})
		}
		if v := get(col + "_lte"); v != "" {
			day, err := time.Parse("2006-01-02", v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s_lte", ErrBadQuery, col)
			}
			conds = append(conds, condition{sql: col + " < ?", args: []any{day.AddDate(0, 0, 1)}})
		}
	}
	return conds, nil
}

func apply(db *gorm.DB, conds []condition) *gorm.DB {
	for _, c := range conds {
		db = db.Where(c.sql, c.args...)
	}
	return db
}
