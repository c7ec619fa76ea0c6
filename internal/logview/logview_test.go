package logview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines_Regular(t *testing.T) {
	body := []byte(`{"data":[
		{"register_date":"2025-06-21T10:00:00Z","level":"INFO","text":"Starting execution"},
		{"register_date":"2025-06-21T10:02:00Z","level":"DEBUG","text":"Debug information"},
		{"register_date":"2025-06-21T10:01:00Z","text":"Processing data"}]}`)

	lines, err := Lines(body, Regular, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2025-06-21 10:02:00 - DEBUG - Debug information",
		"2025-06-21 10:01:00 - INFO - Processing data",
		"2025-06-21 10:00:00 - INFO - Starting execution",
	}, lines)
}

func TestLines_DockerInZone(t *testing.T) {
	body := []byte(`{"data":[{"created_at":"2025-06-21T08:00:00","text":"pull"},{"created_at":"bogus","text":"odd"}]}`)

	lines, err := Lines(body, Docker, time.FixedZone("UTC+2", 2*3600))
	require.NoError(t, err)
	assert.Equal(t, []string{"bogus - odd", "2025-06-21 10:00:00 - pull"}, lines)
}

func TestLines_EmptyAndMalformed(t *testing.T) {
	lines, err := Lines([]byte(`{"data":[]}`), Regular, nil)
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = Lines([]byte(`{}`), Regular, nil)
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = Lines([]byte(`{"data":{"text":"x"}}`), Regular, nil)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Lines([]byte(`<html>`), Regular, nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.UTC, Location(""))
	assert.Equal(t, time.UTC, Location("Mars/Olympus"))
}
