// Package lifecycle records whether the previous worker exited on purpose.
package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ExitSignal is a marker file shared by restarts of the same deployment.
// The signal handler is its only writer and startup its only reader.
type ExitSignal struct {
	path string
}

func NewExitSignal(dir, name string) *ExitSignal {
	if dir == "" {
		dir = os.TempDir()
	}
	return &ExitSignal{path: filepath.Join(dir, name+".graceful")}
}

// MarkGraceful records that the current process is stopping on request.
func (s *ExitSignal) MarkGraceful(now time.Time) error {
	ts := strconv.FormatInt(now.Unix(), 10)
	if err := os.WriteFile(s.path, []byte(ts), 0o600); err != nil {
		return fmt.Errorf("write exit marker: %w", err)
	}
	return nil
}

// ConsumeGraceful reports whether the previous process exited gracefully
// and resets the marker.
func (s *ExitSignal) ConsumeGraceful() (bool, time.Time, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, fmt.Errorf("read exit marker: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return true, time.Time{}, fmt.Errorf("remove exit marker: %w", err)
	}

	var at time.Time
	if sec, perr := strconv.ParseInt(string(b), 10, 64); perr == nil {
		at = time.Unix(sec, 0).UTC()
	}
	return true, at, nil
}
