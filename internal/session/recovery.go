package session

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/Skotchmaster/trends_dashboard/internal/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/trendsapi"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const (
	MsgRecoveryEmpty       = "Please enter your email address."
	MsgRecoveryInvalid     = "Please enter a valid email address."
	MsgRecoveryTimeout     = "Request timed out. Please try again later."
	MsgRecoveryUnreachable = "Cannot connect to the server. Please try again later."
	MsgRecoveryFailed      = "Failed to send reset instructions. Please try again later."
)

// RecoveryResult carries every field the forgot-password modal renders.
type RecoveryResult struct {
	Message      string `json:"message"`
	Color        string `json:"color"`
	AlertOpen    bool   `json:"alert_open"`
	Email        string `json:"email"`
	ModalOpen    bool   `json:"modal_open"`
	SendDisabled bool   `json:"send_disabled"`
	CancelLabel  string `json:"cancel_label"`
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func recoverySent(email string) RecoveryResult {
	return RecoveryResult{
		Message:      fmt.Sprintf("If an account exists with %s, you will receive password reset instructions shortly.", email),
		Color:        ColorSuccess,
		AlertOpen:    true,
		Email:        "",
		ModalOpen:    true,
		SendDisabled: true,
		CancelLabel:  "Close",
	}
}

func recoveryProblem(email, msg, color string) RecoveryResult {
	return RecoveryResult{
		Message:     msg,
		Color:       color,
		AlertOpen:   true,
		Email:       email,
		ModalOpen:   true,
		CancelLabel: "Cancel",
	}
}

// RecoverPassword answers identically whether or not the account exists.
func (c *Controller) RecoverPassword(ctx context.Context, email, env string) (res RecoveryResult) {
	l := logging.FromContext(ctx).With("component", "session.recover")
	defer func() {
		if r := recover(); r != nil {
			l.Error("session_panic", "panic", r)
			res = recoveryProblem(email, MsgRecoveryFailed, ColorDanger)
		}
	}()

	email = strings.TrimSpace(email)
	if email == "" {
		return recoveryProblem(email, MsgRecoveryEmpty, ColorWarning)
	}
	if !ValidEmail(email) {
		return recoveryProblem(email, MsgRecoveryInvalid, ColorWarning)
	}
	if env == "" {
		env = c.defaultEnv
	}

	out := c.api.RecoverPassword(ctx, email, env)
	switch {
	case out.OK(), out.Kind == trendsapi.KindAuth && out.Status == http.StatusNotFound:
		return recoverySent(email)
	case out.Kind == trendsapi.KindNetwork && out.Timeout:
		l.Warn("recover_password_failed", "timeout", true)
		return recoveryProblem(email, MsgRecoveryTimeout, ColorDanger)
	case out.Kind == trendsapi.KindNetwork:
		l.Warn("recover_password_failed", "error", out.Err)
		return recoveryProblem(email, MsgRecoveryUnreachable, ColorDanger)
	default:
		l.Warn("recover_password_failed", "status", out.Status)
		msg := MsgRecoveryFailed
		if out.APIMessage != "" {
			msg = fmt.Sprintf("Failed to send reset instructions: %s", out.APIMessage)
		}
		return recoveryProblem(email, msg, ColorDanger)
	}
}
