package audit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/trends_dashboard/internal/logging"
)

type recordingProducer struct {
	topic, key string
	event      any
	err        error
}

func (r *recordingProducer) PublishEvent(_ context.Context, topic, key string, event any) error {
	r.topic, r.key, r.event = topic, key, event
	return r.err
}

func TestKafkaPublisher(t *testing.T) {
	p := &recordingProducer{}
	pub := NewKafkaPublisher(p, "session_events")

	pub.Publish(context.Background(), Event{Type: EventLogin, Email: "a@b.co"})

	assert.Equal(t, "session_events", p.topic)
	assert.Equal(t, "a@b.co", p.key)
	ev, ok := p.event.(Event)
	require.True(t, ok)
	assert.Equal(t, EventLogin, ev.Type)
	assert.False(t, ev.At.IsZero())
}

func TestKafkaPublisher_FailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.IntoContext(context.Background(), logging.NewWithWriter(&buf, "info"))
	pub := NewKafkaPublisher(&recordingProducer{err: errors.New("down")}, "t")

	pub.Publish(ctx, Event{Type: EventLogout})
	assert.Contains(t, buf.String(), "audit_publish_failed")
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	LogPublisher{Logger: logging.NewWithWriter(&buf, "info")}.Publish(context.Background(), Event{Type: EventRefreshFailed, Reason: "auth"})
	assert.Contains(t, buf.String(), `"type":"refresh_failed"`)
}
