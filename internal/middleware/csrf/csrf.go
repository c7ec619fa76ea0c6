// Package csrf protects the dashboard's cookie-authenticated API with a
// double-submit token: the page reads XSRF-TOKEN and echoes it in a header.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const tokenKey = "csrf_token"

type Config struct {
	CookieName string
	HeaderName string
	Secure     bool
	TTL        time.Duration

	// TrustedOrigins are extra scheme://host values allowed to post, for a
	// page served from a different host than the API.
	TrustedOrigins []string

	// SkipPaths are exempt from token checks, e.g. login before any page
	// has loaded the token.
	SkipPaths []string
}

func DefaultConfig() Config {
	return Config{
		CookieName: "XSRF-TOKEN",
		HeaderName: "X-CSRF-Token",
		TTL:        24 * time.Hour,
	}
}

type guard struct {
	cfg     Config
	skip    map[string]bool
	trusted map[string]bool
}

func newGuard(cfg Config) *guard {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	g := &guard{cfg: cfg, skip: map[string]bool{}, trusted: map[string]bool{}}
	for _, p := range cfg.SkipPaths {
		g.skip[p] = true
	}
	for _, o := range cfg.TrustedOrigins {
		g.trusted[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return g
}

func Middleware(cfg Config) echo.MiddlewareFunc {
	g := newGuard(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if g.skip[c.Request().URL.Path] {
				return next(c)
			}
			token, err := g.issue(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to create CSRF token")
			}
			if safeMethod(c.Request().Method) {
				c.Response().Header().Set(g.cfg.HeaderName, token)
				return next(c)
			}
			if err := g.verify(c.Request(), token); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// issue reuses the browser's token or mints one, and refreshes the cookie.
func (g *guard) issue(c echo.Context) (string, error) {
	var token string
	if ck, err := c.Request().Cookie(g.cfg.CookieName); err == nil {
		token = ck.Value
	}
	if token == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		token = base64.RawURLEncoding.EncodeToString(b)
	}
	c.SetCookie(&http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Secure:   g.cfg.Secure,
		MaxAge:   int(g.cfg.TTL.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(tokenKey, token)
	return token, nil
}

func (g *guard) verify(r *http.Request, token string) error {
	if !g.fromPage(r) {
		return echo.NewHTTPError(http.StatusForbidden, "invalid origin")
	}
	sent := r.Header.Get(g.cfg.HeaderName)
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(sent)) != 1 {
		return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
	}
	return nil
}

// fromPage accepts browsers that declare a same-origin fetch, otherwise the
// Origin (or Referer) must be this host or a trusted one.
func (g *guard) fromPage(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Site") == "same-origin" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	u, err := url.Parse(origin)
	if origin == "" || err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) && strings.EqualFold(u.Scheme, requestScheme(r)) {
		return true
	}
	return g.trusted[strings.ToLower(u.Scheme+"://"+u.Host)]
}

// Token returns the token bound to the current request.
func Token(c echo.Context) string {
	s, _ := c.Get(tokenKey).(string)
	return s
}

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

func requestScheme(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
