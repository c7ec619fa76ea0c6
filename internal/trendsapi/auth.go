package trendsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (c *Client) Login(ctx context.Context, email, password, env string) LoginOutcome {
	e := c.Environment(env)
	resp, err := c.call(ctx, c.authTimeout, http.MethodPost, e.Auth, "", loginRequest{Email: email, Password: password})
	if err != nil {
		return LoginOutcome{Outcome: networkOutcome(err)}
	}
	if resp.status != http.StatusOK {
		return LoginOutcome{Outcome: authOutcome(resp.status, resp.apiMessage())}
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return LoginOutcome{Outcome: invalidOutcome(resp.status, fmt.Errorf("decode login response: %w", err))}
	}
	if tr.AccessToken == "" {
		return LoginOutcome{Outcome: invalidOutcome(resp.status, errors.New("login response has no access_token"))}
	}
	return LoginOutcome{
		Outcome:      okOutcome(resp.status),
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		UserID:       tr.UserID,
	}
}

// Refresh exchanges a refresh token for a new access token. It does not retry.
func (c *Client) Refresh(ctx context.Context, refreshToken, env string) RefreshOutcome {
	e := c.Environment(env)
	resp, err := c.call(ctx, c.authTimeout, http.MethodPost, e.Auth+"/refresh", "", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return RefreshOutcome{Outcome: networkOutcome(err)}
	}
	if resp.status != http.StatusOK {
		return RefreshOutcome{Outcome: authOutcome(resp.status, resp.apiMessage())}
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return RefreshOutcome{Outcome: invalidOutcome(resp.status, fmt.Errorf("decode refresh response: %w", err))}
	}
	if tr.AccessToken == "" {
		return RefreshOutcome{Outcome: invalidOutcome(resp.status, errors.New("refresh response has no access_token"))}
	}
	return RefreshOutcome{
		Outcome:     okOutcome(resp.status),
		AccessToken: tr.AccessToken,
		ExpiresIn:   tr.ExpiresIn,
	}
}

// Logout revokes one refresh token. True only on a 2xx answer.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken, env string) bool {
	e := c.Environment(env)
	resp, err := c.call(ctx, c.authTimeout, http.MethodPost, e.Auth+"/logout", accessToken, refreshRequest{RefreshToken: refreshToken})
	return err == nil && resp.success()
}

// LogoutAll revokes every refresh token of the user.
func (c *Client) LogoutAll(ctx context.Context, accessToken, env string) bool {
	e := c.Environment(env)
	resp, err := c.call(ctx, c.authTimeout, http.MethodPost, e.Auth+"/logout-all", accessToken, nil)
	return err == nil && resp.success()
}
