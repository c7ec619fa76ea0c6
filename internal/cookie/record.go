package cookie

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/trends_dashboard/internal/models"
)

// Record is the persisted session stored in the auth_token cookie.
type Record struct {
	AccessToken    string           `json:"access_token,omitempty"`
	RefreshToken   string           `json:"refresh_token,omitempty"`
	Email          string           `json:"email,omitempty"`
	UserData       *models.UserData `json:"user_data,omitempty"`
	APIEnvironment string           `json:"api_environment,omitempty"`
	ExpiresAt      Timestamp        `json:"expires_at"`
	CreatedAt      Timestamp        `json:"created_at"`
}

// Timestamp is an ISO-8601 instant. Values without a zone are read as UTC.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unsupported format", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Complete reports whether every field a session needs is present.
func (r *Record) Complete() bool {
	return r != nil &&
		r.AccessToken != "" &&
		r.RefreshToken != "" &&
		r.Email != "" &&
		r.UserData != nil &&
		!r.ExpiresAt.IsZero()
}
