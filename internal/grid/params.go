package grid

import (
	"net/url"
	"sort"
	"strconv"
)

// TableState is the last query a grid issued. The page keeps it so refreshes
// and row resolution reuse the same sort, filter and extra parameters.
type TableState struct {
	SortModel      []SortEntry       `json:"sort_model"`
	FilterModel    map[string]Filter `json:"filter_model"`
	SortSQL        string            `json:"sort_sql,omitempty"`
	FilterSQL      string            `json:"filter_sql,omitempty"`
	ExtraParams    map[string]string `json:"extra_params,omitempty"`
	ExtraParamKeys []string          `json:"extra_param_keys,omitempty"`
}

// Query is a translated grid request.
type Query struct {
	Page    int
	PerPage int
	Params  url.Values
	State   TableState
}

// BuildParams translates req for table t.
func BuildParams(t *Table, req Request, defaultSize int, admin bool) Query {
	page, size := Paginate(req.StartRow, req.EndRow, defaultSize)
	state := translate(t, req.SortModel, req.FilterModel, admin)
	return Query{Page: page, PerPage: size, Params: stateParams(t, state, page, size, admin), State: state}
}

// RefreshParams rebuilds the query for a refresh of page 1 with the given
// page size. Only the stored sort and filter models are trusted; the
// translated strings a page sends back are recomputed.
func RefreshParams(t *Table, state TableState, perPage int, admin bool) Query {
	perPage = max(perPage, 1)
	fresh := translate(t, state.SortModel, state.FilterModel, admin)
	return Query{Page: 1, PerPage: perPage, Params: stateParams(t, fresh, 1, perPage, admin), State: fresh}
}

// translate runs the models through the table's allow-lists and handlers
// for the caller's role.
func translate(t *Table, sortModel []SortEntry, filterModel map[string]Filter, admin bool) TableState {
	state := TableState{SortModel: sortModel, FilterModel: filterModel}
	state.SortSQL = SortClause(sortModel, t.Sortable(admin))
	if t.FiltersEnabled(admin) {
		state.FilterSQL, state.ExtraParams = FilterClause(filterModel, t.Filterable(admin), t.Handlers)
		state.ExtraParamKeys = sortedKeys(state.ExtraParams)
	}
	return state
}

func stateParams(t *Table, state TableState, page, perPage int, admin bool) url.Values {
	params := t.BaseParams(admin)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(max(perPage, 1)))
	if state.SortSQL != "" {
		params.Set("sort", state.SortSQL)
	}
	if state.FilterSQL != "" {
		params.Set("filter", state.FilterSQL)
	}
	for _, k := range state.ExtraParamKeys {
		params.Set(k, state.ExtraParams[k])
	}
	return params
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
