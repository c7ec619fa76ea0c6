package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
	"github.com/Skotchmaster/trends_dashboard/internal/session"
)

type stubIdentifier struct {
	ui     session.UIState
	ok     bool
	gotTok string
	gotEnv string
}

func (s *stubIdentifier) Identify(_ context.Context, token, env string, _ session.Jar) (session.UIState, bool) {
	s.gotTok, s.gotEnv = token, env
	return s.ui, s.ok
}

func serve(t *testing.T, mw echo.MiddlewareFunc, header map[string]string) (*httptest.ResponseRecorder, *session.UIState, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/grid/executions/columns", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *session.UIState
	err := mw(func(c echo.Context) error {
		ui, ok := Session(c)
		require.True(t, ok)
		seen = &ui
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, seen, err
}

func TestRequireSession(t *testing.T) {
	id := &stubIdentifier{ui: session.UIState{Token: "tok", Role: roles.User}, ok: true}
	g := NewGuard(id, cookie.NewCodec(0, false, "production"))

	rec, seen, err := serve(t, g.RequireSession, map[string]string{
		echo.HeaderAuthorization: "Bearer tok",
		HeaderAPIEnvironment:     "staging",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", seen.Token)
	assert.Equal(t, "tok", id.gotTok)
	assert.Equal(t, "staging", id.gotEnv)
}

func TestRequireSession_Rejected(t *testing.T) {
	g := NewGuard(&stubIdentifier{}, cookie.NewCodec(0, false, "production"))

	_, seen, err := serve(t, g.RequireSession, nil)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
	assert.Nil(t, seen)
}

func TestRequireAdmin(t *testing.T) {
	id := &stubIdentifier{ui: session.UIState{Token: "tok", Role: roles.User}, ok: true}
	g := NewGuard(id, cookie.NewCodec(0, false, "production"))

	_, _, err := serve(t, g.RequireAdmin, nil)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)

	id.ui.Role = roles.Admin
	rec, _, err := serve(t, g.RequireAdmin, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSuperAdmin(t *testing.T) {
	id := &stubIdentifier{ui: session.UIState{Token: "tok", Role: roles.Admin}, ok: true}
	g := NewGuard(id, cookie.NewCodec(0, false, "production"))

	_, _, err := serve(t, g.RequireSuperAdmin, nil)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)

	id.ui.Role = roles.SuperAdmin
	rec, _, err := serve(t, g.RequireSuperAdmin, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(r))

	r.Header.Set(echo.HeaderAuthorization, "bearer  abc ")
	assert.Equal(t, "abc", BearerToken(r))

	r.Header.Set(echo.HeaderAuthorization, "Basic abc")
	assert.Empty(t, BearerToken(r))
}
