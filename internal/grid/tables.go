package grid

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Skotchmaster/trends_dashboard/internal/roles"
)

// Column is a grid column definition as served to the page.
type Column struct {
	Field      string `json:"field"`
	HeaderName string `json:"headerName"`
	Sortable   bool   `json:"sortable"`
	Filter     string `json:"filter,omitempty"`

	adminOnly      bool
	superAdminOnly bool
}

// Table describes one backend collection the dashboard lists.
type Table struct {
	Name     string
	Endpoint string
	Columns  []Column
	Handlers map[string]Handler

	// Include and Exclude are sent with every request; AdminInclude only
	// when the caller may see admin fields.
	Include      []string
	AdminInclude []string
	Exclude      []string

	// AdminOnly tables are not listed for regular users.
	AdminOnly        bool
	AdminFiltersOnly bool

	Decorate func(row map[string]any)
}

func (t *Table) BaseParams(admin bool) url.Values {
	params := url.Values{}
	include := append([]string{}, t.Include...)
	if admin {
		include = append(include, t.AdminInclude...)
	}
	if len(include) > 0 {
		params.Set("include", strings.Join(include, ","))
	}
	if len(t.Exclude) > 0 {
		params.Set("exclude", strings.Join(t.Exclude, ","))
	}
	return params
}

func (t *Table) FiltersEnabled(admin bool) bool {
	return admin || !t.AdminFiltersOnly
}

// Sortable and Filterable are the allow-lists for the caller; admin-only
// columns are left out for regular users.
func (t *Table) Sortable(admin bool) map[string]bool {
	out := map[string]bool{}
	for _, c := range t.Columns {
		if c.Sortable && (admin || !c.adminOnly) {
			out[c.Field] = true
		}
	}
	return out
}

func (t *Table) Filterable(admin bool) map[string]bool {
	out := map[string]bool{}
	for _, c := range t.Columns {
		if c.Filter != "" && (admin || !c.adminOnly) {
			out[c.Field] = true
		}
	}
	return out
}

// VisibleColumns returns the columns role may see.
func (t *Table) VisibleColumns(role roles.Role) []Column {
	admin := roles.CanSeeAdminFields(role)
	out := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.adminOnly && !admin {
			continue
		}
		if c.superAdminOnly && !roles.CanEditUsers(role) {
			continue
		}
		if !t.FiltersEnabled(admin) {
			c.Filter = ""
		}
		out = append(out, c)
	}
	return out
}

// Rows applies the table's display decoration in place and drops admin
// fields the caller may not see.
func (t *Table) Rows(rows []map[string]any, admin bool) []map[string]any {
	for _, r := range rows {
		if t.Decorate != nil {
			t.Decorate(r)
		}
		if admin {
			continue
		}
		for _, c := range t.Columns {
			if c.adminOnly {
				delete(r, c.Field)
			}
		}
	}
	return rows
}

type Registry map[string]*Table

func (r Registry) Get(name string) (*Table, error) {
	t, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return t, nil
}

// DefaultRegistry returns the executions, users and scripts tables.
func DefaultRegistry() Registry {
	return Registry{
		"executions": executionsTable(),
		"users":      usersTable(),
		"scripts":    scriptsTable(),
	}
}

func sortable(field, header, filter string) Column {
	return Column{Field: field, HeaderName: header, Sortable: true, Filter: filter}
}

func action(field, header string) Column {
	return Column{Field: field, HeaderName: header}
}

func executionsTable() *Table {
	userName := sortable("user_name", "User", FilterText)
	userName.adminOnly = true
	userEmail := sortable("user_email", "User Email", FilterText)
	userEmail.adminOnly = true
	dockerLogs := action("docker_logs", "Docker Logs")
	dockerLogs.adminOnly = true

	return &Table{
		Name:     "executions",
		Endpoint: "/execution",
		Columns: []Column{
			sortable("script_name", "Script", FilterText),
			userName,
			userEmail,
			sortable("status", "Status", FilterText),
			sortable("start_date", "Start", FilterDate),
			sortable("end_date", "End", FilterDate),
			sortable("duration", "Duration", FilterNumber),
			sortable("progress", "Progress", FilterNumber),
			sortable("id", "ID", FilterText),
			action("params", "Params"),
			action("results", "Results"),
			action("logs", "Logs"),
			dockerLogs,
			action("map", "Map"),
		},
		Handlers: map[string]Handler{
			"start_date": dateRange("start_date"),
			"end_date":   dateRange("end_date"),
			"status":     statusText,
		},
		Include:  []string{"script_name", "user_name", "user_email", "duration"},
		Exclude:  []string{"params", "results"},
		Decorate: decorateExecution,
	}
}

func usersTable() *Table {
	edit := action("edit", "Edit")
	edit.superAdminOnly = true
	return &Table{
		Name:     "users",
		Endpoint: "/user",
		Columns: []Column{
			sortable("email", "Email", FilterText),
			sortable("name", "Name", FilterText),
			sortable("institution", "Institution", FilterText),
			sortable("country", "Country", FilterText),
			sortable("role", "Role", FilterSet),
			sortable("created_at", "Created", FilterDate),
			sortable("updated_at", "Updated", FilterDate),
			sortable("id", "ID", FilterText),
			edit,
		},
		Handlers: map[string]Handler{
			"created_at": dateRange("created_at"),
			"updated_at": dateRange("updated_at"),
		},
		AdminOnly:        true,
		AdminFiltersOnly: true,
		Decorate: func(row map[string]any) {
			formatDates(row, "created_at", "updated_at")
			row["edit"] = "Edit"
		},
	}
}

func scriptsTable() *Table {
	return &Table{
		Name:     "scripts",
		Endpoint: "/script",
		Columns: []Column{
			sortable("name", "Name", FilterText),
			sortable("user_name", "User", FilterText),
			sortable("description", "Description", FilterText),
			sortable("status", "Status", FilterSet),
			sortable("created_at", "Created", FilterDate),
			sortable("updated_at", "Updated", FilterDate),
			sortable("id", "ID", FilterText),
			action("logs", "Logs"),
			action("edit", "Edit"),
		},
		Handlers: map[string]Handler{
			"created_at": dateRange("created_at"),
			"updated_at": dateRange("updated_at"),
		},
		AdminInclude: []string{"user_name"},
		Decorate: func(row map[string]any) {
			formatDates(row, "created_at", "updated_at")
			row["logs"] = "Show Logs"
			row["edit"] = "Edit"
		},
	}
}

// dateRange turns a date filter into <col>_gte / <col>_lte parameters.
func dateRange(col string) Handler {
	return func(f Filter) (string, map[string]string) {
		from := datePart(f.DateFrom)
		to := datePart(f.DateTo)
		params := map[string]string{}
		switch f.Type {
		case "lessThan":
			if from != "" {
				params[col+"_lte"] = from
			}
		case "greaterThan":
			if from != "" {
				params[col+"_gte"] = from
			}
		case "inRange":
			if from != "" {
				params[col+"_gte"] = from
			}
			if to != "" {
				params[col+"_lte"] = to
			}
		default:
			if from != "" {
				params[col+"_gte"] = from
				params[col+"_lte"] = from
			}
		}
		return "", params
	}
}

func datePart(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, " T"); i > 0 {
		return v[:i]
	}
	return v
}

var executionStatuses = map[string]bool{
	"PENDING":  true,
	"RUNNING":  true,
	"FINISHED": true,
	"FAILED":   true,
}

// statusText accepts only known execution statuses so free text never
// reaches the API as a partial match.
func statusText(f Filter) (string, map[string]string) {
	if f.FilterType == FilterSet {
		return setClause("status", f.Values), nil
	}
	v := strings.ToUpper(strings.TrimSpace(scalarString(f.Filter)))
	if !executionStatuses[v] {
		return "", nil
	}
	op := "="
	if f.Type == "notEqual" || f.Type == "notEquals" {
		op = "!="
	}
	return fmt.Sprintf("status%s'%s'", op, v), nil
}

const displayLayout = "2006-01-02 15:04:05"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func formatDates(row map[string]any, cols ...string) {
	for _, col := range cols {
		s, ok := row[col].(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				row[col] = t.UTC().Format(displayLayout)
				break
			}
		}
	}
}

// FormatDuration renders seconds as H:MM:SS, or "-" when unknown.
func FormatDuration(v any) string {
	var secs float64
	switch d := v.(type) {
	case float64:
		secs = d
	case int:
		secs = float64(d)
	case int64:
		secs = float64(d)
	default:
		return "-"
	}
	if secs <= 0 {
		return "-"
	}
	total := int64(secs)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func decorateExecution(row map[string]any) {
	formatDates(row, "start_date", "end_date")
	row["duration"] = FormatDuration(row["duration"])
	row["params"] = "Show Params"
	row["results"] = "Show Results"
	row["logs"] = "Show Logs"
	row["docker_logs"] = "Show Docker Logs"
	row["map"] = "Show Map"
}
