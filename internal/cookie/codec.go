package cookie

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/trends_dashboard/internal/models"
)

const (
	DefaultName = "auth_token"
	DefaultTTL  = 30 * 24 * time.Hour
)

type Codec struct {
	Name               string
	TTL                time.Duration
	Secure             bool
	DefaultEnvironment string
	Now                func() time.Time
}

func NewCodec(ttl time.Duration, secure bool, defaultEnv string) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{
		Name:               DefaultName,
		TTL:                ttl,
		Secure:             secure,
		DefaultEnvironment: defaultEnv,
		Now:                time.Now,
	}
}

func (c *Codec) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

// Encode builds a fresh record expiring TTL from now.
func (c *Codec) Encode(access, refresh, email string, user *models.UserData, env string) Record {
	if env == "" {
		env = c.DefaultEnvironment
	}
	now := c.now()
	return Record{
		AccessToken:    access,
		RefreshToken:   refresh,
		Email:          email,
		UserData:       user,
		APIEnvironment: env,
		ExpiresAt:      Timestamp{now.Add(c.TTL)},
		CreatedAt:      Timestamp{now},
	}
}

// IsValid is false for nil, partial, or expired records.
func (c *Codec) IsValid(rec *Record) bool {
	if !rec.Complete() {
		return false
	}
	return c.now().Before(rec.ExpiresAt.Time)
}

// Decode accepts the escaped form written by Value, raw JSON, and
// backslash-quoted values. It never fails loudly.
func Decode(raw string) (*Record, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return nil, false
		}
		s = unq
	}
	if !strings.HasPrefix(s, "{") {
		unesc, err := url.QueryUnescape(s)
		if err != nil {
			return nil, false
		}
		s = unesc
	}
	var rec Record
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// Value serialises a record into a cookie-safe string.
func Value(rec Record) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal session record: %w", err)
	}
	return url.QueryEscape(string(b)), nil
}

// Email salvages the address from any decodable record, valid or not.
func Email(raw string) string {
	rec, ok := Decode(raw)
	if !ok {
		return ""
	}
	if rec.Email != "" {
		return rec.Email
	}
	if rec.UserData != nil {
		return rec.UserData.Email
	}
	return ""
}

func (c *Codec) secure(r *http.Request) bool {
	if c.Secure {
		return true
	}
	if r == nil {
		return false
	}
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func (c *Codec) Cookie(rec Record, r *http.Request) (*http.Cookie, error) {
	v, err := Value(rec)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     c.Name,
		Value:    v,
		Path:     "/",
		Expires:  rec.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Clear overwrites the cookie with an empty, already expired value.
func (c *Codec) Clear(r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// Raw returns the cookie value as sent by the browser.
func (c *Codec) Raw(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c *Codec) Read(r *http.Request) (*Record, bool) {
	return Decode(c.Raw(r))
}
