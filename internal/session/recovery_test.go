package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/trends_dashboard/internal/trendsapi"
)

func TestRecoverPassword_AntiEnumeration(t *testing.T) {
	api := &fakeAPI{recover: map[string]trendsapi.Outcome{
		"known@example.org": {Kind: trendsapi.KindOK, Status: http.StatusOK},
		"ghost@example.org": {Kind: trendsapi.KindAuth, Status: http.StatusNotFound},
	}}
	c, _ := newController(api)

	known := c.RecoverPassword(context.Background(), "known@example.org", "")
	ghost := c.RecoverPassword(context.Background(), "ghost@example.org", "")

	assert.Equal(t,
		strings.Replace(known.Message, "known@example.org", "<email>", 1),
		strings.Replace(ghost.Message, "ghost@example.org", "<email>", 1))
	assert.True(t, strings.HasPrefix(known.Message, "If an account exists with"))

	known.Message, ghost.Message = "", ""
	assert.Equal(t, known, ghost)
	assert.Equal(t, RecoveryResult{
		Color:        ColorSuccess,
		AlertOpen:    true,
		Email:        "",
		ModalOpen:    true,
		SendDisabled: true,
		CancelLabel:  "Close",
	}, known)
}

func TestRecoverPassword_Problems(t *testing.T) {
	api := &fakeAPI{recover: map[string]trendsapi.Outcome{
		"slow@example.org": {Kind: trendsapi.KindNetwork, Timeout: true, Err: errors.New("deadline")},
		"down@example.org": {Kind: trendsapi.KindNetwork, Err: errors.New("refused")},
		"boom@example.org": {Kind: trendsapi.KindAuth, Status: http.StatusInternalServerError},
	}}
	c, _ := newController(api)

	tests := []struct {
		email    string
		contains string
		color    string
	}{
		{"", MsgRecoveryEmpty, ColorWarning},
		{"invalid-email", MsgRecoveryInvalid, ColorWarning},
		{"a@b.c", MsgRecoveryInvalid, ColorWarning},
		{"slow@example.org", "Request timed out", ColorDanger},
		{"down@example.org", "Cannot connect to the server", ColorDanger},
		{"boom@example.org", "Failed to send reset instructions", ColorDanger},
	}
	for _, tt := range tests {
		res := c.RecoverPassword(context.Background(), tt.email, "")
		assert.Contains(t, res.Message, tt.contains, tt.email)
		assert.Equal(t, tt.color, res.Color, tt.email)
		assert.True(t, res.AlertOpen)
		assert.False(t, res.SendDisabled)
		assert.Equal(t, "Cancel", res.CancelLabel)
	}
}

func TestValidEmail(t *testing.T) {
	for _, e := range []string{"user@example.com", "first.last+tag@sub.domain.org", "x_y%z@a-b.io"} {
		assert.True(t, ValidEmail(e), e)
	}
	for _, e := range []string{"plain", "@example.com", "user@", "user@domain", "user@domain.c", "us er@example.com"} {
		assert.False(t, ValidEmail(e), e)
	}
}
