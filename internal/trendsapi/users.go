package trendsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Skotchmaster/trends_dashboard/internal/models"
)

// Profile fetches the caller's own record from /user/me only.
func (c *Client) Profile(ctx context.Context, token, env string) UserOutcome {
	resp, err := c.call(ctx, c.dataTimeout, http.MethodGet, c.Environment(env).Base+"/user/me", token, nil)
	if err != nil {
		return UserOutcome{Outcome: networkOutcome(err)}
	}
	if resp.status != http.StatusOK {
		return UserOutcome{Outcome: authOutcome(resp.status, resp.apiMessage())}
	}
	var payload struct {
		Data *models.UserData `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return UserOutcome{Outcome: invalidOutcome(resp.status, fmt.Errorf("decode user/me: %w", err))}
	}
	if payload.Data == nil {
		payload.Data = &models.UserData{}
	}
	return UserOutcome{Outcome: okOutcome(resp.status), User: payload.Data}
}

// Me is Profile for the login flow: when /user/me is not answered with 200
// the first element of GET /user is used instead.
func (c *Client) Me(ctx context.Context, token, env string) UserOutcome {
	out := c.Profile(ctx, token, env)
	if out.OK() || out.Kind == KindNetwork || out.Kind == KindInvalid {
		return out
	}

	resp, err := c.call(ctx, c.dataTimeout, http.MethodGet, c.Environment(env).Base+"/user", token, nil)
	if err != nil {
		return UserOutcome{Outcome: networkOutcome(err)}
	}
	if resp.status != http.StatusOK {
		return UserOutcome{Outcome: authOutcome(resp.status, resp.apiMessage())}
	}
	var list struct {
		Data []models.UserData `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &list); err != nil {
		return UserOutcome{Outcome: invalidOutcome(resp.status, fmt.Errorf("decode user list: %w", err))}
	}
	if len(list.Data) == 0 {
		return UserOutcome{Outcome: invalidOutcome(resp.status, errors.New("user list is empty"))}
	}
	return UserOutcome{Outcome: okOutcome(resp.status), User: &list.Data[0]}
}

type ProfileUpdate struct {
	Name        string `json:"name"`
	Institution string `json:"institution"`
	Country     string `json:"country,omitempty"`
}

func (c *Client) UpdateProfile(ctx context.Context, token, env string, upd ProfileUpdate) Outcome {
	e := c.Environment(env)
	resp, err := c.call(ctx, c.dataTimeout, http.MethodPatch, e.Base+"/user/me", token, upd)
	if err != nil {
		return networkOutcome(err)
	}
	if resp.status != http.StatusOK {
		return authOutcome(resp.status, resp.apiMessage())
	}
	return okOutcome(resp.status)
}

func (c *Client) ChangePassword(ctx context.Context, token, env, oldPassword, newPassword string) Outcome {
	e := c.Environment(env)
	payload := map[string]string{"old_password": oldPassword, "new_password": newPassword}
	resp, err := c.call(ctx, c.dataTimeout, http.MethodPatch, e.Base+"/user/me/change-password", token, payload)
	if err != nil {
		return networkOutcome(err)
	}
	if resp.status != http.StatusOK {
		return authOutcome(resp.status, resp.apiMessage())
	}
	return okOutcome(resp.status)
}

// RecoverPassword asks the API to mail reset instructions. Status is kept
// on the outcome so callers can treat 404 like 200.
func (c *Client) RecoverPassword(ctx context.Context, email, env string) Outcome {
	e := c.Environment(env)
	u := e.Base + "/user/" + url.PathEscape(email) + "/recover-password"
	resp, err := c.call(ctx, c.dataTimeout, http.MethodPost, u, "", nil)
	if err != nil {
		return networkOutcome(err)
	}
	if !resp.success() {
		return authOutcome(resp.status, resp.apiMessage())
	}
	return okOutcome(resp.status)
}
