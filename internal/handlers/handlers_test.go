package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/trends_dashboard/internal/config"
	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
	"github.com/Skotchmaster/trends_dashboard/internal/grid"
	"github.com/Skotchmaster/trends_dashboard/internal/middleware/auth"
	"github.com/Skotchmaster/trends_dashboard/internal/middleware/csrf"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
	"github.com/Skotchmaster/trends_dashboard/internal/session"
	"github.com/Skotchmaster/trends_dashboard/internal/tokens"
	"github.com/Skotchmaster/trends_dashboard/internal/trendsapi"
)

func upstream(t *testing.T) (*trendsapi.Client, *atomic.Int32) {
	t.Helper()
	revokes := &atomic.Int32{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "acc-1", "refresh_token": "ref-1", "user_id": "u-1", "expires_in": 900,
		})
	})
	mux.HandleFunc("GET /api/v1/user/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id": "u-1", "email": "ana@example.org", "name": "Ana", "role": "ADMIN",
		}})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		revokes.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/v1/user/{email}/recover-password", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return trendsapi.NewClient(trendsapi.Options{
		Environments: map[string]config.APIEnvironment{
			"production": {Name: "production", Base: srv.URL + "/api/v1", Auth: srv.URL + "/auth"},
		},
		DefaultEnvironment: "production",
		AuthTimeout:        time.Second,
		DataTimeout:        time.Second,
	}), revokes
}

func newSessionHandler(t *testing.T) (*SessionHandler, *atomic.Int32) {
	t.Helper()
	api, revokes := upstream(t)
	codec := cookie.NewCodec(0, false, "production")
	ctrl := session.NewController(session.Options{API: api, Codec: codec, DefaultEnvironment: "production"})
	return &SessionHandler{
		Sessions:        ctrl,
		Codec:           codec,
		Environments:    []string{"production"},
		DefaultEnv:      "production",
		RefreshInterval: 5 * time.Minute,
	}, revokes
}

func call(t *testing.T, h echo.HandlerFunc, method, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func authCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookie.DefaultName {
			return c
		}
	}
	return nil
}

func TestSessionHandler_LoginResolveLogout(t *testing.T) {
	h, revokes := newSessionHandler(t)

	rec := call(t, h.Login, http.MethodPost, `{"email":"ana@example.org","password":"pw","remember_me":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var login session.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, session.Authenticated, login.State)
	assert.Equal(t, roles.Admin, login.UI.Role)
	assert.Equal(t, session.MsgLoginSuccess, login.Alert.Message)

	persisted := authCookie(rec)
	require.NotNil(t, persisted)
	assert.True(t, persisted.HttpOnly)

	rec = call(t, h.Resolve, http.MethodGet, "", persisted)
	var resolved struct {
		State    string `json:"state"`
		Hydrated bool   `json:"hydrated"`
		UI       struct {
			Token string `json:"token"`
		} `json:"ui"`
		RefreshIntervalMs int64 `json:"refresh_interval_ms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, "authenticated", resolved.State)
	assert.True(t, resolved.Hydrated)
	assert.Equal(t, "acc-1", resolved.UI.Token)
	assert.Equal(t, int64(300000), resolved.RefreshIntervalMs)

	rec = call(t, h.Logout, http.MethodPost, `{"token":"acc-1"}`, persisted)
	var out session.LogoutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Revoked)
	assert.EqualValues(t, 1, revokes.Load())

	cleared := authCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

type resolveStub struct {
	Sessions
	d session.Decision
}

func (r resolveStub) Resolve(context.Context, session.UIState, session.Jar) session.Decision {
	return r.d
}

func TestSessionHandler_ResolveTokenInfoAndCSRF(t *testing.T) {
	now := time.Now()
	access, err := tokens.SignAccess([]byte("k"), "u-1", "ana@example.org", "USER", now, 10*time.Minute)
	require.NoError(t, err)
	h := &SessionHandler{
		Sessions: resolveStub{d: session.Decision{State: session.Authenticated, UI: session.UIState{Token: access}}},
		Codec:    cookie.NewCodec(0, false, "production"),
	}

	e := echo.New()
	e.GET("/api/session", h.Resolve, csrf.Middleware(csrf.DefaultConfig()))
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: "page-token"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		CSRFToken string       `json:"csrf_token"`
		TokenInfo *tokens.Info `json:"token_info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "page-token", body.CSRFToken)
	require.NotNil(t, body.TokenInfo)
	assert.Equal(t, "u-1", body.TokenInfo.Subject)
	assert.False(t, body.TokenInfo.Expired)
	require.NotNil(t, body.TokenInfo.ExpiresAt)
	assert.WithinDuration(t, now.Add(10*time.Minute), *body.TokenInfo.ExpiresAt, time.Second)
}

func TestSessionHandler_LoginWithoutRememberMe(t *testing.T) {
	h, _ := newSessionHandler(t)

	rec := call(t, h.Login, http.MethodPost, `{"email":"ana@example.org","password":"pw"}`)
	assert.Nil(t, authCookie(rec))

	rec = call(t, h.Login, http.MethodPost, `{"email":"ana@example.org","password":"bad"}`)
	var res session.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, session.MsgInvalidCredentials, res.Alert.Message)
}

func TestSessionHandler_ForgotPassword(t *testing.T) {
	h, _ := newSessionHandler(t)

	rec := call(t, h.ForgotPassword, http.MethodPost, `{"email":"ghost@example.org"}`)
	var res session.RecoveryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, session.ColorSuccess, res.Color)
	assert.Empty(t, res.Email)
	assert.Equal(t, "Close", res.CancelLabel)
}

type fakeLister struct {
	out      trendsapi.ListOutcome
	endpoint string
	params   url.Values
}

func (f *fakeLister) List(_ context.Context, _, _, endpoint string, params url.Values) trendsapi.ListOutcome {
	f.endpoint, f.params = endpoint, params
	return f.out
}

func gridCall(t *testing.T, h echo.HandlerFunc, table string, ui session.UIState, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/grid/"+table, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("table")
	c.SetParamValues(table)
	auth.SetSession(c, ui)
	return rec, h(c)
}

func newGridHandler(out trendsapi.ListOutcome) (*GridHandler, *fakeLister) {
	f := &fakeLister{out: out}
	return &GridHandler{API: f, Tables: grid.DefaultRegistry(), DefaultPageSize: 100, RowPageSize: 50}, f
}

func okList(body string) trendsapi.ListOutcome {
	return trendsapi.ListOutcome{Outcome: trendsapi.Outcome{Kind: trendsapi.KindOK, Status: 200}, Body: []byte(body)}
}

func TestGridHandler_Rows(t *testing.T) {
	h, f := newGridHandler(okList(`{"data":[{"id":"e1","status":"FINISHED","duration":61,"user_email":"a@b.org"}],"total":321}`))
	ui := session.UIState{Token: "tok", Role: roles.User}

	rec, err := gridCall(t, h.Rows, "executions", ui, `{"startRow":50,"endRow":100,"sortModel":[{"colId":"start_date","sort":"desc"}],
		"filterModel":{"status":{"filterType":"set","values":["FINISHED","FAILED"]},"duration":{"filterType":"number","type":"greaterThan","filter":3600}}}`)
	require.NoError(t, err)

	assert.Equal(t, "/execution", f.endpoint)
	assert.Equal(t, "2", f.params.Get("page"))
	assert.Equal(t, "50", f.params.Get("per_page"))
	assert.Equal(t, "start_date DESC", f.params.Get("sort"))
	assert.Equal(t, "duration>3600,(status='FINISHED' OR status='FAILED')", f.params.Get("filter"))

	var body struct {
		Rows       []map[string]any `json:"rows"`
		TotalCount int              `json:"total_count"`
		TableState grid.TableState  `json:"table_state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 321, body.TotalCount)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "0:01:01", body.Rows[0]["duration"])
	assert.NotContains(t, body.Rows[0], "user_email")
	assert.Equal(t, "start_date DESC", body.TableState.SortSQL)
}

func TestGridHandler_Errors(t *testing.T) {
	ui := session.UIState{Token: "tok", Role: roles.User}

	h, _ := newGridHandler(okList(`{}`))
	_, err := gridCall(t, h.Rows, "users", ui, `{}`)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)

	_, err = gridCall(t, h.Rows, "payments", ui, `{}`)
	he, ok = err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Code)

	h, _ = newGridHandler(trendsapi.ListOutcome{Outcome: trendsapi.Outcome{Kind: trendsapi.KindNetwork, Timeout: true}})
	_, err = gridCall(t, h.Rows, "scripts", ui, `{}`)
	he, ok = err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusGatewayTimeout, he.Code)

	h, _ = newGridHandler(trendsapi.ListOutcome{Outcome: trendsapi.Outcome{Kind: trendsapi.KindAuth, Status: 401}})
	_, err = gridCall(t, h.Rows, "scripts", ui, `{}`)
	he, ok = err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestGridHandler_Row(t *testing.T) {
	h, f := newGridHandler(okList(`{"data":[{"id":"e50"},{"id":"e51"}],"total":120}`))
	ui := session.UIState{Token: "tok", Role: roles.Admin}

	rec, err := gridCall(t, h.Row, "executions", ui, `{"cell":{"row_index":51,"col_id":"params"},"table_state":{"sort_model":[{"colId":"status","sort":"asc"}]}}`)
	require.NoError(t, err)
	assert.Equal(t, "2", f.params.Get("page"))
	assert.Equal(t, "status ASC", f.params.Get("sort"))

	var row map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, "e51", row["id"])

	_, err = gridCall(t, h.Row, "executions", ui, `{"cell":{"row_index":10}}`)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestGridHandler_Columns(t *testing.T) {
	h, _ := newGridHandler(okList(`{}`))

	rec, err := gridCall(t, h.Columns, "executions", session.UIState{Token: "t", Role: roles.Admin}, "")
	require.NoError(t, err)
	var cols []grid.Column
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cols))
	assert.Len(t, cols, len(grid.DefaultRegistry()["executions"].Columns))
}

func TestGridHandler_Refresh(t *testing.T) {
	h, f := newGridHandler(okList(`{"data":[],"total":0}`))
	ui := session.UIState{Token: "tok", Role: roles.Admin}

	rec, err := gridCall(t, h.Refresh, "executions", ui, `{"table_state":{"filter_model":{
		"status":{"filterType":"text","type":"equals","filter":"running"},
		"start_date":{"filterType":"date","type":"greaterThan","dateFrom":"2025-01-01 00:00:00"}}},"per_page":25}`)
	require.NoError(t, err)
	assert.Equal(t, "1", f.params.Get("page"))
	assert.Equal(t, "25", f.params.Get("per_page"))
	assert.Equal(t, "status='RUNNING'", f.params.Get("filter"))
	assert.Equal(t, "2025-01-01", f.params.Get("start_date_gte"))

	var body struct {
		TableState grid.TableState `json:"table_state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "status='RUNNING'", body.TableState.FilterSQL)
}

func TestGridHandler_RefreshForgedState(t *testing.T) {
	h, f := newGridHandler(okList(`{"data":[{"id":"e0"}],"total":1}`))
	ui := session.UIState{Token: "tok", Role: roles.User}

	rec, err := gridCall(t, h.Refresh, "executions", ui, `{"table_state":{
		"sort_sql":"user_email DESC","filter_sql":"user_email like '%boss%'",
		"extra_params":{"user_id":"boss"},"extra_param_keys":["user_id"]}}`)
	require.NoError(t, err)
	assert.Empty(t, f.params.Get("sort"))
	assert.Empty(t, f.params.Get("filter"))
	assert.Empty(t, f.params.Get("user_id"))

	var body struct {
		TableState grid.TableState `json:"table_state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.TableState.FilterSQL)
	assert.Empty(t, body.TableState.ExtraParams)

	_, err = gridCall(t, h.Row, "executions", ui, `{"cell":{"row_index":0},"table_state":{"sort_sql":"user_email DESC"}}`)
	require.NoError(t, err)
	assert.Empty(t, f.params.Get("sort"))
}

func TestHealth(t *testing.T) {
	h := &HealthHandler{Deployment: config.Deployment{Branch: "main", CommitSHA: "abc", Environment: "staging"}, Started: time.Now()}
	rec := call(t, h.Health, http.MethodGet, "")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "abc", body["deployment"].(map[string]any)["commit_sha"])
}
