package trendsapi

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/Skotchmaster/trends_dashboard/internal/models"
)

type Kind int

const (
	KindOK Kind = iota
	// KindNetwork covers timeouts and unreachable hosts.
	KindNetwork
	// KindAuth is any non-2xx answer.
	KindAuth
	// KindInvalid is a 2xx answer whose body could not be used.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome replaces error returns for calls whose failures are expected.
type Outcome struct {
	Kind    Kind
	Status  int
	Timeout bool
	// APIMessage is the "msg" field of an error body, when present.
	APIMessage string
	Err        error
}

func (o Outcome) OK() bool { return o.Kind == KindOK }

func (o Outcome) String() string {
	switch o.Kind {
	case KindOK:
		return "ok"
	case KindNetwork:
		if o.Timeout {
			return "network: timeout"
		}
		return fmt.Sprintf("network: %v", o.Err)
	case KindAuth:
		return fmt.Sprintf("auth: status %d", o.Status)
	default:
		return fmt.Sprintf("%s: %v", o.Kind, o.Err)
	}
}

func okOutcome(status int) Outcome {
	return Outcome{Kind: KindOK, Status: status}
}

func networkOutcome(err error) Outcome {
	return Outcome{Kind: KindNetwork, Timeout: isTimeout(err), Err: err}
}

func invalidOutcome(status int, err error) Outcome {
	return Outcome{Kind: KindInvalid, Status: status, Err: err}
}

func authOutcome(status int, msg string) Outcome {
	return Outcome{
		Kind:       KindAuth,
		Status:     status,
		APIMessage: msg,
		Err:        fmt.Errorf("unexpected status %d", status),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

type RefreshOutcome struct {
	Outcome
	AccessToken string
	ExpiresIn   int
}

type LoginOutcome struct {
	Outcome
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	UserID       string
}

type UserOutcome struct {
	Outcome
	User *models.UserData
}

type ListOutcome struct {
	Outcome
	Body []byte
}
