package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/trends_dashboard/internal/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/tokens"
	"github.com/Skotchmaster/trends_dashboard/internal/trendsapi"
)

const minPasswordLength = 6

type ProfileInput struct {
	Name        string `json:"name"`
	Institution string `json:"institution"`
	Country     string `json:"country"`
}

type ProfileResult struct {
	Alert Alert   `json:"alert"`
	UI    UIState `json:"ui"`
}

// UpdateProfile patches the profile and keeps the persisted copy of
// user_data in step with it.
func (c *Controller) UpdateProfile(ctx context.Context, in UIState, jar Jar, upd ProfileInput) ProfileResult {
	l := logging.FromContext(ctx).With("component", "session.profile")

	if strings.TrimSpace(upd.Name) == "" {
		return ProfileResult{Alert: Alert{Message: "Name is required.", Color: ColorDanger}, UI: in}
	}
	if in.User == nil || in.User.ID == "" {
		return ProfileResult{Alert: Alert{Message: "User ID not found in user data.", Color: ColorDanger}, UI: in}
	}

	out := c.api.UpdateProfile(ctx, in.Token, in.APIEnvironment, trendsapi.ProfileUpdate{
		Name:        upd.Name,
		Institution: upd.Institution,
		Country:     upd.Country,
	})
	switch out.Kind {
	case trendsapi.KindOK:
	case trendsapi.KindNetwork:
		l.Warn("profile_update_failed", "error", out.Err)
		return ProfileResult{Alert: Alert{Message: fmt.Sprintf("Network error: %v", out.Err), Color: ColorDanger}, UI: in}
	default:
		l.Warn("profile_update_failed", "status", out.Status)
		msg := "Failed to update profile."
		if out.APIMessage != "" {
			msg = out.APIMessage
		}
		return ProfileResult{Alert: Alert{Message: msg, Color: ColorDanger}, UI: in}
	}

	user := *in.User
	user.Name = upd.Name
	user.Institution = upd.Institution
	if upd.Country != "" {
		user.Country = upd.Country
	}
	ui := in
	ui.User = &user
	if exp, err := tokens.Expiration(in.Token); err == nil {
		c.identities.put(in.Token, in.APIEnvironment, &user, exp, c.now())
	}

	if rec, ok := jar.Load(); ok {
		rec.UserData = &user
		if err := jar.Save(*rec); err != nil {
			l.Error("session_save_failed", "error", err)
		}
	}
	return ProfileResult{Alert: Alert{Message: "Profile updated successfully!", Color: ColorSuccess}, UI: ui}
}

type PasswordInput struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
	Confirm string `json:"confirm_password"`
}

type PasswordResult struct {
	Alert Alert `json:"alert"`
	// ClearFields tells the page to empty the three inputs.
	ClearFields bool `json:"clear_fields"`
}

func (c *Controller) ChangePassword(ctx context.Context, in UIState, pw PasswordInput) PasswordResult {
	l := logging.FromContext(ctx).With("component", "session.password")

	switch {
	case pw.Current == "" || pw.New == "" || pw.Confirm == "":
		return PasswordResult{Alert: Alert{Message: "All password fields are required.", Color: ColorDanger}}
	case pw.New != pw.Confirm:
		return PasswordResult{Alert: Alert{Message: "New passwords do not match.", Color: ColorDanger}}
	case len(pw.New) < minPasswordLength:
		return PasswordResult{Alert: Alert{Message: "Password must be at least 6 characters long.", Color: ColorDanger}}
	}

	out := c.api.ChangePassword(ctx, in.Token, in.APIEnvironment, pw.Current, pw.New)
	switch out.Kind {
	case trendsapi.KindOK:
		return PasswordResult{Alert: Alert{Message: "Password changed successfully!", Color: ColorSuccess}, ClearFields: true}
	case trendsapi.KindNetwork:
		l.Warn("password_change_failed", "error", out.Err)
		return PasswordResult{Alert: Alert{Message: fmt.Sprintf("Network error: %v", out.Err), Color: ColorDanger}}
	default:
		l.Warn("password_change_failed", "status", out.Status)
		msg := "Failed to change password."
		if out.APIMessage != "" {
			msg = out.APIMessage
		}
		return PasswordResult{Alert: Alert{Message: fmt.Sprintf("%s (Status: %d)", msg, out.Status), Color: ColorDanger}}
	}
}
