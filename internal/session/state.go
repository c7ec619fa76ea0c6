package session

import (
	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
	"github.com/Skotchmaster/trends_dashboard/internal/models"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
)

type State int

const (
	LoggedOut State = iota
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "logged_out"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "authenticated":
		*s = Authenticated
	case "refreshing":
		*s = Refreshing
	default:
		*s = LoggedOut
	}
	return nil
}

// UIState is what the live page holds in memory between requests.
type UIState struct {
	Token          string           `json:"token,omitempty"`
	Role           roles.Role       `json:"role"`
	User           *models.UserData `json:"user,omitempty"`
	APIEnvironment string           `json:"api_environment,omitempty"`
}

func (s UIState) LoggedIn() bool { return s.Token != "" }

func fromRecord(rec *cookie.Record, defaultEnv string) UIState {
	env := rec.APIEnvironment
	if env == "" {
		env = defaultEnv
	}
	return UIState{
		Token:          rec.AccessToken,
		Role:           roles.OrUser(rec.UserData.Role),
		User:           rec.UserData,
		APIEnvironment: env,
	}
}

// Jar is the persisted side of the session store.
type Jar interface {
	Raw() string
	Load() (*cookie.Record, bool)
	Save(rec cookie.Record) error
	Clear()
}

type Alert struct {
	Message string `json:"message"`
	Color   string `json:"color"`
}

const (
	ColorSuccess = "success"
	ColorWarning = "warning"
	ColorDanger  = "danger"
)

const (
	MsgMissingCredentials = "Please enter both email and password."
	MsgInvalidCredentials = "Invalid credentials."
	MsgLoginTimeout       = "Login failed: Connection timeout. Please try again later."
	MsgLoginUnreachable   = "Login failed: Cannot connect to authentication server. Please check the server status."
	MsgUserInfoFailed     = "Failed to retrieve user information."
	MsgLoginSuccess       = "Login successful!"
	MsgSessionExpired     = "Your session has expired. Please log in again."
	MsgUnknownEnvironment = "Unknown API environment."
)
