package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/Skotchmaster/trends_dashboard/internal/logging"
)

type EventType string

const (
	EventLogin         EventType = "login"
	EventLoginFailed   EventType = "login_failed"
	EventRefreshed     EventType = "token_refreshed"
	EventRefreshFailed EventType = "refresh_failed"
	EventLogout        EventType = "logout"
	EventLogoutAll     EventType = "logout_all"
	EventHydrated      EventType = "session_hydrated"
	EventExpired       EventType = "session_expired"
)

// Event never carries tokens.
type Event struct {
	Type           EventType `json:"type"`
	Email          string    `json:"email,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	APIEnvironment string    `json:"api_environment,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	At             time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type producer interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// KafkaPublisher writes session events to one topic keyed by email.
// Delivery failures are logged and dropped.
type KafkaPublisher struct {
	producer producer
	topic    string
}

func NewKafkaPublisher(p producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (k *KafkaPublisher) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := k.producer.PublishEvent(ctx, k.topic, ev.Email, ev); err != nil {
		logging.FromContext(ctx).Warn("audit_publish_failed", "type", ev.Type, "error", err)
	}
}

// LogPublisher is used when no brokers are configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, ev Event) {
	l := p.Logger
	if l == nil {
		l = logging.FromContext(ctx)
	}
	l.Info("session_event", "type", ev.Type, "email", ev.Email, "api_environment", ev.APIEnvironment, "reason", ev.Reason)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
