// Package logview turns execution, docker and script log payloads into the
// plain text lines the log modal shows, newest first.
package logview

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
)

const displayLayout = "2006-01-02 15:04:05"

var ErrMalformed = errors.New("malformed log payload")

// Kind selects the entry shape. Regular logs carry register_date and level;
// docker logs carry created_at and no level.
type Kind int

const (
	Regular Kind = iota
	Docker
)

type entry struct {
	RegisterDate string `json:"register_date"`
	CreatedAt    string `json:"created_at"`
	Level        string `json:"level"`
	Text         string `json:"text"`
}

type line struct {
	key  string
	text string
}

// Lines decodes body ({"data": [...]}) and formats each entry. Dates are
// shown in loc; unparseable dates are printed as received.
func Lines(body []byte, kind Kind, loc *time.Location) ([]string, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, fmt.Errorf("%w: data is not a list", ErrMalformed)
	}
	if loc == nil {
		loc = time.UTC
	}

	out := make([]line, 0, len(raw))
	for _, r := range raw {
		var e entry
		if err := json.Unmarshal(r, &e); err != nil {
			out = append(out, line{text: strings.Trim(string(r), `"`)})
			continue
		}
		out = append(out, format(e, kind, loc))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].key > out[j].key })

	lines := make([]string, len(out))
	for i, l := range out {
		lines[i] = l.text
	}
	return lines, nil
}

func format(e entry, kind Kind, loc *time.Location) line {
	if kind == Docker {
		return line{key: e.CreatedAt, text: displayDate(e.CreatedAt, loc) + " - " + e.Text}
	}
	level := e.Level
	if level == "" {
		level = "INFO"
	}
	return line{key: e.RegisterDate, text: displayDate(e.RegisterDate, loc) + " - " + level + " - " + e.Text}
}

func displayDate(s string, loc *time.Location) string {
	t, err := cookie.ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.In(loc).Format(displayLayout)
}

// Location resolves an IANA zone name, falling back to UTC.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
