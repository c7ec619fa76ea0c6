package mockapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSort(t *testing.T) {
	got, err := executionsResource.ParseSort("start_date DESC, status asc")
	require.NoError(t, err)
	assert.Equal(t, "start_date DESC, status ASC", got)

	got, err = executionsResource.ParseSort("")
	require.NoError(t, err)
	assert.Equal(t, "start_date DESC", got)

	_, err = executionsResource.ParseSort("params ASC")
	assert.ErrorIs(t, err, ErrBadQuery)

	_, err = executionsResource.ParseSort("status; DROP TABLE users")
	assert.ErrorIs(t, err, ErrBadQuery)
}

func TestParseFilter(t *testing.T) {
	conds, err := executionsResource.ParseFilter("duration>3600,(status='FINISHED' OR status='FAILED')")
	require.NoError(t, err)
	require.Len(t, conds, 2)

	assert.Equal(t, "duration > ?", conds[0].sql)
	assert.Equal(t, []any{float64(3600)}, conds[0].args)
	assert.Equal(t, "(status = ? OR status = ?)", conds[1].sql)
	assert.Equal(t, []any{"FINISHED", "FAILED"}, conds[1].args)
}

func TestParseFilter_Operators(t *testing.T) {
	tests := []struct {
		raw  string
		sql  string
		args []any
	}{
		{"progress>=50", "progress >= ?", []any{float64(50)}},
		{"progress<=10.5", "progress <= ?", []any{10.5}},
		{"status!='FAILED'", "status != ?", []any{"FAILED"}},
		{"script_name like '%O''Brien%'", "LOWER(script_name) LIKE LOWER(?)", []any{"%O'Brien%"}},
		{"user_name='a=b, c'", "user_name = ?", []any{"a=b, c"}},
		{"script_name='I like it'", "script_name = ?", []any{"I like it"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			conds, err := executionsResource.ParseFilter(tt.raw)
			require.NoError(t, err)
			require.Len(t, conds, 1)
			assert.Equal(t, tt.sql, conds[0].sql)
			assert.Equal(t, tt.args, conds[0].args)
		})
	}
}

func TestParseFilter_Rejects(t *testing.T) {
	for _, raw := range []string{
		"password_hash='x'",
		"status=FINISHED",
		"status",
		"1=1",
		"id='1' OR 1=1",
	} {
		_, err := executionsResource.ParseFilter(raw)
		assert.ErrorIs(t, err, ErrBadQuery, raw)
	}
}

func TestDateRange(t *testing.T) {
	params := map[string]string{"start_date_gte": "2025-01-01", "start_date_lte": "2025-01-31"}
	conds, err := executionsResource.DateRange(func(k string) string { return params[k] })
	require.NoError(t, err)
	assert.Len(t, conds, 2)

	params = map[string]string{"end_date_lte": "yesterday"}
	_, err = executionsResource.DateRange(func(k string) string { return params[k] })
	assert.ErrorIs(t, err, ErrBadQuery)
}
