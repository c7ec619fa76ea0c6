package mockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/trends_dashboard/internal/config"
	"github.com/Skotchmaster/trends_dashboard/internal/db"
	"github.com/Skotchmaster/trends_dashboard/internal/grid"
	"github.com/Skotchmaster/trends_dashboard/internal/trendsapi"
)

func newMock(t *testing.T) *trendsapi.Client {
	t.Helper()
	return newMockWith(t, nil)
}

func newMockWith(t *testing.T, configure func(*Server)) *trendsapi.Client {
	t.Helper()
	gdb, err := db.Open(context.Background(), "", "file::memory:")
	require.NoError(t, err)

	repo := &GormRepo{DB: gdb}
	require.NoError(t, repo.Migrate())
	require.NoError(t, repo.Seed(context.Background(), time.Now()))

	e := echo.New()
	srv := &Server{
		Repo:          repo,
		JWTSecret:     []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	}
	if configure != nil {
		configure(srv)
	}
	srv.Register(e)

	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)

	return trendsapi.NewClient(trendsapi.Options{
		Environments: map[string]config.APIEnvironment{
			"local": {Name: "local", Base: ts.URL + "/api/v1", Auth: ts.URL + "/auth"},
		},
		DefaultEnvironment: "local",
		AuthTimeout:        5 * time.Second,
		DataTimeout:        5 * time.Second,
	})
}

func login(t *testing.T, api *trendsapi.Client, email string) trendsapi.LoginOutcome {
	t.Helper()
	out := api.Login(context.Background(), email, SeedPassword, "local")
	require.True(t, out.OK(), out.String())
	return out
}

func TestSeed_Idempotent(t *testing.T) {
	gdb, err := db.Open(context.Background(), "", "file::memory:")
	require.NoError(t, err)
	repo := &GormRepo{DB: gdb}
	require.NoError(t, repo.Migrate())
	require.NoError(t, repo.Seed(context.Background(), time.Now()))
	require.NoError(t, repo.Seed(context.Background(), time.Now()))

	_, total, err := repo.Executions(context.Background(), ListQuery{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 150, total)
}

func TestAuthFlow(t *testing.T) {
	api := newMock(t)
	ctx := context.Background()

	bad := api.Login(ctx, "user@example.org", "nope", "local")
	assert.Equal(t, trendsapi.KindAuth, bad.Kind)
	assert.Equal(t, http.StatusUnauthorized, bad.Status)

	out := login(t, api, "user@example.org")
	assert.NotEmpty(t, out.RefreshToken)
	assert.Equal(t, 900, out.ExpiresIn)

	me := api.Me(ctx, out.AccessToken, "local")
	require.True(t, me.OK())
	assert.Equal(t, "USER", me.User.Role)
	assert.Equal(t, "user@example.org", me.User.Email)

	ref := api.Refresh(ctx, out.RefreshToken, "local")
	require.True(t, ref.OK())
	assert.NotEmpty(t, ref.AccessToken)

	assert.True(t, api.Logout(ctx, out.AccessToken, out.RefreshToken, "local"))
	ref = api.Refresh(ctx, out.RefreshToken, "local")
	assert.Equal(t, trendsapi.KindAuth, ref.Kind)
	assert.Equal(t, http.StatusUnauthorized, ref.Status)
}

func TestLogoutAll(t *testing.T) {
	api := newMock(t)
	ctx := context.Background()

	first := login(t, api, "admin@example.org")
	second := login(t, api, "admin@example.org")

	assert.True(t, api.LogoutAll(ctx, second.AccessToken, "local"))
	assert.Equal(t, trendsapi.KindAuth, api.Refresh(ctx, first.RefreshToken, "local").Kind)
	assert.Equal(t, trendsapi.KindAuth, api.Refresh(ctx, second.RefreshToken, "local").Kind)
}

func TestRecoverPassword(t *testing.T) {
	api := newMock(t)
	ctx := context.Background()

	assert.True(t, api.RecoverPassword(ctx, "user@example.org", "local").OK())
	out := api.RecoverPassword(ctx, "ghost@example.org", "local")
	assert.Equal(t, http.StatusNotFound, out.Status)
}

func TestProfileAndPassword(t *testing.T) {
	api := newMock(t)
	ctx := context.Background()
	out := login(t, api, "user@example.org")

	upd := api.UpdateProfile(ctx, out.AccessToken, "local", trendsapi.ProfileUpdate{Name: "Renamed", Institution: "Lab", Country: "PT"})
	require.True(t, upd.OK(), upd.String())
	me := api.Me(ctx, out.AccessToken, "local")
	assert.Equal(t, "Renamed", me.User.Name)
	assert.Equal(t, "PT", me.User.Country)

	wrong := api.ChangePassword(ctx, out.AccessToken, "local", "bad-old", "new-password")
	assert.Equal(t, http.StatusUnauthorized, wrong.Status)
	assert.Equal(t, "Current password is incorrect", wrong.APIMessage)

	require.True(t, api.ChangePassword(ctx, out.AccessToken, "local", SeedPassword, "new-password").OK())
	assert.True(t, api.Login(ctx, "user@example.org", "new-password", "local").OK())
}

func listed(t *testing.T, out trendsapi.ListOutcome) grid.Response {
	t.Helper()
	require.True(t, out.OK(), out.String())
	resp, err := grid.ParseResponse(out.Body)
	require.NoError(t, err)
	return resp
}

func TestListExecutions_GridQuery(t *testing.T) {
	api := newMock(t)
	ctx := context.Background()
	admin := login(t, api, "admin@example.org")
	user := login(t, api, "user@example.org")

	tbl := grid.DefaultRegistry()["executions"]
	req := grid.Request{
		StartRow:  0,
		SortModel: []grid.SortEntry{{ColID: "duration", Sort: "desc"}},
		FilterModel: map[string]grid.Filter{
			"status":   {FilterType: grid.FilterSet, Values: []any{"FINISHED", "FAILED"}},
			"duration": {FilterType: grid.FilterNumber, Type: "greaterThan", Filter: float64(0)},
		},
	}
	end := 25
	req.EndRow = &end

	q := grid.BuildParams(tbl, req, 100, true)
	resp := listed(t, api.List(ctx, admin.AccessToken, "local", tbl.Endpoint, q.Params))
	finished := 0
	for i := range seedExecutions {
		if st := seedStatuses[i%len(seedStatuses)]; st == "FINISHED" || st == "FAILED" {
			finished++
		}
	}
	assert.Equal(t, 74, finished)
	assert.Equal(t, finished, resp.TotalCount)
	require.Len(t, resp.Rows, 25)
	assert.NotContains(t, resp.Rows[0], "params")
	first := resp.Rows[0]["duration"].(float64)
	last := resp.Rows[24]["duration"].(float64)
	assert.GreaterOrEqual(t, first, last)

	all := listed(t, api.List(ctx, user.AccessToken, "local", tbl.Endpoint, url.Values{"per_page": {"5"}}))
	assert.Equal(t, 50, all.TotalCount, "regular users see their own executions")
	for _, r := range all.Rows {
		assert.Equal(t, "user@example.org", r["user_email"])
	}
}

func TestListUsers_AdminOnly(t *testing.T) {
	api := newMock(t)
	ctx := context.Background()

	user := login(t, api, "user@example.org")
	out := api.List(ctx, user.AccessToken, "local", "/user", nil)
	assert.Equal(t, http.StatusForbidden, out.Status)

	admin := login(t, api, "superadmin@example.org")
	resp := listed(t, api.List(ctx, admin.AccessToken, "local", "/user", url.Values{"filter": {"email like '%admin%'"}}))
	assert.Equal(t, 2, resp.TotalCount)
	for _, r := range resp.Rows {
		assert.NotContains(t, r, "password_hash")
	}
}

func TestList_BadQuery(t *testing.T) {
	api := newMock(t)
	admin := login(t, api, "admin@example.org")

	out := api.List(context.Background(), admin.AccessToken, "local", "/script", url.Values{"sort": {"password_hash ASC"}})
	assert.Equal(t, http.StatusBadRequest, out.Status)
}

func TestList_RequiresToken(t *testing.T) {
	api := newMock(t)
	out := api.List(context.Background(), "", "local", "/execution", nil)
	assert.Equal(t, http.StatusUnauthorized, out.Status)
}
