package session

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/trends_dashboard/internal/audit"
	"github.com/Skotchmaster/trends_dashboard/internal/config"
	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
	"github.com/Skotchmaster/trends_dashboard/internal/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
	"github.com/Skotchmaster/trends_dashboard/internal/tokens"
	"github.com/Skotchmaster/trends_dashboard/internal/trendsapi"
)

type API interface {
	Lookup(name string) (config.APIEnvironment, error)
	Login(ctx context.Context, email, password, env string) trendsapi.LoginOutcome
	Refresh(ctx context.Context, refreshToken, env string) trendsapi.RefreshOutcome
	Logout(ctx context.Context, accessToken, refreshToken, env string) bool
	LogoutAll(ctx context.Context, accessToken, env string) bool
	Me(ctx context.Context, token, env string) trendsapi.UserOutcome
	Profile(ctx context.Context, token, env string) trendsapi.UserOutcome
	RecoverPassword(ctx context.Context, email, env string) trendsapi.Outcome
	UpdateProfile(ctx context.Context, token, env string, upd trendsapi.ProfileUpdate) trendsapi.Outcome
	ChangePassword(ctx context.Context, token, env, oldPassword, newPassword string) trendsapi.Outcome
}

type Options struct {
	API                API
	Codec              *cookie.Codec
	Events             audit.Publisher
	RefreshBuffer      time.Duration
	DefaultEnvironment string
	Now                func() time.Time
}

type Controller struct {
	api        API
	codec      *cookie.Codec
	events     audit.Publisher
	buffer     time.Duration
	defaultEnv string
	now        func() time.Time

	refreshes  singleflight.Group
	identities *identityCache
}

func NewController(opts Options) *Controller {
	if opts.Events == nil {
		opts.Events = audit.Nop{}
	}
	if opts.RefreshBuffer <= 0 {
		opts.RefreshBuffer = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		api:        opts.API,
		codec:      opts.Codec,
		events:     opts.Events,
		buffer:     opts.RefreshBuffer,
		defaultEnv: opts.DefaultEnvironment,
		now:        opts.Now,
		identities: newIdentityCache(),
	}
}

type Decision struct {
	State    State   `json:"state"`
	UI       UIState `json:"ui"`
	Hydrated bool    `json:"hydrated"`
	// LoginEmail pre-fills the login form after a session ended.
	LoginEmail string `json:"login_email,omitempty"`
}

// Resolve decides between the dashboard and the login view.
func (c *Controller) Resolve(ctx context.Context, in UIState, jar Jar) (d Decision) {
	l := logging.FromContext(ctx).With("component", "session.resolve")
	defer func() {
		if r := recover(); r != nil {
			l.Error("session_panic", "panic", r)
			jar.Clear()
			d = Decision{State: LoggedOut}
		}
	}()

	if in.LoggedIn() {
		return Decision{State: Authenticated, UI: in}
	}

	if rec, ui, ok := c.hydrate(jar); ok {
		l.Info("session_hydrated", "api_environment", ui.APIEnvironment)
		c.events.Publish(ctx, audit.Event{Type: audit.EventHydrated, Email: rec.Email, APIEnvironment: ui.APIEnvironment})
		return Decision{State: Authenticated, UI: ui, Hydrated: true}
	}

	raw := jar.Raw()
	if raw == "" {
		return Decision{State: LoggedOut}
	}
	email := cookie.Email(raw)
	jar.Clear()
	l.Info("stale_session_cleared")
	c.events.Publish(ctx, audit.Event{Type: audit.EventExpired, Email: email})
	return Decision{State: LoggedOut, LoginEmail: email}
}

// hydrate rebuilds the UIState from a valid persisted record.
func (c *Controller) hydrate(jar Jar) (*cookie.Record, UIState, bool) {
	rec, ok := jar.Load()
	if !ok {
		return nil, UIState{}, false
	}
	return rec, fromRecord(rec, c.defaultEnv), true
}

type TickResult struct {
	// Updated is false for the no-op tick; nothing was written.
	Updated bool    `json:"updated"`
	State   State   `json:"state"`
	UI      UIState `json:"ui"`
	Alert   *Alert  `json:"alert,omitempty"`
	// Retry is set when a network failure left the session in place.
	Retry bool `json:"retry,omitempty"`
}

// Tick refreshes the access token when it is inside the refresh buffer.
func (c *Controller) Tick(ctx context.Context, in UIState, jar Jar) (res TickResult) {
	l := logging.FromContext(ctx).With("component", "session.tick")
	defer func() {
		if r := recover(); r != nil {
			l.Error("session_panic", "panic", r)
			res = c.expire(ctx, jar, "", "panic")
		}
	}()

	if !in.LoggedIn() {
		return TickResult{State: LoggedOut}
	}
	now := c.now()
	if !tokens.ShouldRefresh(in.Token, c.buffer, now) {
		return TickResult{State: Authenticated, UI: in}
	}

	rec, ok := jar.Load()
	if !ok {
		if accessDead(in.Token, now) {
			l.Info("session_ended", "reason", "no persisted refresh token")
			return c.expire(ctx, jar, "", "no_refresh_token")
		}
		return TickResult{State: Authenticated, UI: in}
	}

	env := rec.APIEnvironment
	if env == "" {
		env = c.defaultEnv
	}

	v, _, shared := c.refreshes.Do(rec.RefreshToken, func() (any, error) {
		return c.api.Refresh(context.WithoutCancel(ctx), rec.RefreshToken, env), nil
	})
	out := v.(trendsapi.RefreshOutcome)

	switch out.Kind {
	case trendsapi.KindOK:
		next := c.codec.Encode(out.AccessToken, rec.RefreshToken, rec.Email, rec.UserData, env)
		if err := jar.Save(next); err != nil {
			l.Error("session_save_failed", "error", err)
		}
		ui := in
		ui.Token = out.AccessToken
		ui.APIEnvironment = env
		if ui.User == nil {
			ui.User = rec.UserData
			ui.Role = roles.OrUser(rec.UserData.Role)
		}
		l.Info("token_refreshed", "expires_in", out.ExpiresIn, "shared", shared)
		if !shared {
			c.events.Publish(ctx, audit.Event{Type: audit.EventRefreshed, Email: rec.Email, APIEnvironment: env})
		}
		return TickResult{Updated: true, State: Authenticated, UI: ui}

	case trendsapi.KindNetwork:
		if !accessDead(in.Token, now) {
			l.Warn("refresh_deferred", "timeout", out.Timeout, "error", out.Err)
			return TickResult{State: Authenticated, UI: in, Retry: true}
		}
	}

	l.Warn("refresh_failed", "kind", out.Kind.String(), "status", out.Status, "error", out.Err)
	return c.expire(ctx, jar, rec.Email, out.Kind.String())
}

func (c *Controller) expire(ctx context.Context, jar Jar, email, reason string) TickResult {
	jar.Clear()
	c.events.Publish(ctx, audit.Event{Type: audit.EventRefreshFailed, Email: email, Reason: reason})
	return TickResult{
		Updated: true,
		State:   LoggedOut,
		Alert:   &Alert{Message: MsgSessionExpired, Color: ColorWarning},
	}
}

// accessDead is true once the token is past exp or unreadable.
func accessDead(token string, now time.Time) bool {
	exp, err := tokens.Expiration(token)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}

type LoginInput struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	APIEnvironment string `json:"api_environment"`
	RememberMe     bool   `json:"remember_me"`
}

type LoginResult struct {
	State State   `json:"state"`
	UI    UIState `json:"ui"`
	Alert Alert   `json:"alert"`
	// Persisted reports whether a session record was written.
	Persisted bool `json:"persisted"`
}

func (c *Controller) Login(ctx context.Context, in LoginInput, jar Jar) (res LoginResult) {
	l := logging.FromContext(ctx).With("component", "session.login")
	defer func() {
		if r := recover(); r != nil {
			l.Error("session_panic", "panic", r)
			jar.Clear()
			res = LoginResult{State: LoggedOut, Alert: Alert{Message: MsgUserInfoFailed, Color: ColorDanger}}
		}
	}()

	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return loginFailure(MsgMissingCredentials, ColorWarning)
	}
	env := in.APIEnvironment
	if env == "" {
		env = c.defaultEnv
	}
	if _, err := c.api.Lookup(env); err != nil {
		l.Warn("login_rejected", "error", err)
		return loginFailure(MsgUnknownEnvironment, ColorWarning)
	}

	out := c.api.Login(ctx, email, in.Password, env)
	switch out.Kind {
	case trendsapi.KindOK:
	case trendsapi.KindNetwork:
		l.Warn("login_failed", "timeout", out.Timeout, "error", out.Err)
		c.events.Publish(ctx, audit.Event{Type: audit.EventLoginFailed, Email: email, APIEnvironment: env, Reason: "network"})
		if out.Timeout {
			return loginFailure(MsgLoginTimeout, ColorDanger)
		}
		return loginFailure(MsgLoginUnreachable, ColorDanger)
	case trendsapi.KindAuth:
		l.Warn("login_failed", "status", out.Status)
		c.events.Publish(ctx, audit.Event{Type: audit.EventLoginFailed, Email: email, APIEnvironment: env, Reason: "credentials"})
		return loginFailure(MsgInvalidCredentials, ColorDanger)
	default:
		l.Warn("login_failed", "kind", out.Kind.String(), "error", out.Err)
		return loginFailure(MsgUserInfoFailed, ColorDanger)
	}

	me := c.api.Me(ctx, out.AccessToken, env)
	if !me.OK() || me.User == nil {
		l.Warn("user_info_failed", "kind", me.Kind.String(), "status", me.Status)
		return loginFailure(MsgUserInfoFailed, ColorDanger)
	}

	persisted := false
	switch {
	case in.RememberMe && out.RefreshToken == "":
		l.Warn("session_not_persisted", "reason", "login response has no refresh_token")
		if jar.Raw() != "" {
			jar.Clear()
		}
	case in.RememberMe:
		rec := c.codec.Encode(out.AccessToken, out.RefreshToken, email, me.User, env)
		if err := jar.Save(rec); err != nil {
			l.Error("session_save_failed", "error", err)
		} else {
			persisted = true
		}
	case jar.Raw() != "":
		jar.Clear()
	}

	l.Info("login_succeeded", "user_id", me.User.ID, "remember_me", in.RememberMe)
	c.events.Publish(ctx, audit.Event{Type: audit.EventLogin, Email: email, UserID: me.User.ID, APIEnvironment: env})

	return LoginResult{
		State: Authenticated,
		UI: UIState{
			Token:          out.AccessToken,
			Role:           roles.OrUser(me.User.Role),
			User:           me.User,
			APIEnvironment: env,
		},
		Alert:     Alert{Message: MsgLoginSuccess, Color: ColorSuccess},
		Persisted: persisted,
	}
}

func loginFailure(msg, color string) LoginResult {
	return LoginResult{State: LoggedOut, Alert: Alert{Message: msg, Color: color}}
}

type LogoutResult struct {
	State State `json:"state"`
	// Revoked reports whether the API confirmed the revocation.
	Revoked bool `json:"revoked"`
}

// Logout revokes the refresh token and always clears local state.
func (c *Controller) Logout(ctx context.Context, in UIState, jar Jar) LogoutResult {
	return c.logout(ctx, in, jar, false)
}

// LogoutAll revokes every refresh token of the user.
func (c *Controller) LogoutAll(ctx context.Context, in UIState, jar Jar) LogoutResult {
	return c.logout(ctx, in, jar, true)
}

func (c *Controller) logout(ctx context.Context, in UIState, jar Jar, all bool) (res LogoutResult) {
	l := logging.FromContext(ctx).With("component", "session.logout", "all", all)
	defer func() {
		if r := recover(); r != nil {
			l.Error("session_panic", "panic", r)
			res = LogoutResult{State: LoggedOut}
		}
		jar.Clear()
	}()

	access := in.Token
	var refresh, email string
	env := in.APIEnvironment
	if rec, ok := cookie.Decode(jar.Raw()); ok {
		refresh = rec.RefreshToken
		email = rec.Email
		if access == "" {
			access = rec.AccessToken
		}
		if env == "" {
			env = rec.APIEnvironment
		}
	}
	if env == "" {
		env = c.defaultEnv
	}
	if email == "" && in.User != nil {
		email = in.User.Email
	}

	revoked := false
	switch {
	case all && access != "":
		revoked = c.api.LogoutAll(ctx, access, env)
	case !all && access != "" && refresh != "":
		revoked = c.api.Logout(ctx, access, refresh, env)
	}
	if !revoked {
		l.Warn("revoke_failed")
	}

	ev := audit.EventLogout
	if all {
		ev = audit.EventLogoutAll
	}
	c.events.Publish(ctx, audit.Event{Type: ev, Email: email, APIEnvironment: env})
	return LogoutResult{State: LoggedOut, Revoked: revoked}
}
