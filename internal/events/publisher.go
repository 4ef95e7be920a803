// Package events publishes build state transitions to NATS so other services
// can react to completed builds without polling the HTTP API.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/apkbuilder/internal/logfields"
)

// TransitionEvent is the wire payload published on every state change.
type TransitionEvent struct {
	BuildID   string    `json:"build_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes transition events. The zero value is disabled.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher connects to NATS. An empty URL returns a disabled publisher;
// a connection failure disables publishing with a warning rather than failing
// startup, because eventing is best-effort.
func NewPublisher(natsURL, subject string) *Publisher {
	if natsURL == "" {
		return &Publisher{}
	}
	conn, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		slog.Warn("NATS connection failed, transition events disabled",
			logfields.URL(natsURL), logfields.Error(err))
		return &Publisher{}
	}
	slog.Info("NATS transition publisher connected", logfields.URL(natsURL), slog.String("subject", subject))
	return &Publisher{conn: conn, subject: subject}
}

// Publish sends a transition event. Failures are logged, never propagated.
func (p *Publisher) Publish(buildID, status, message string) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(TransitionEvent{
		BuildID:   buildID,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		slog.Warn("Failed to publish transition event", logfields.BuildID(buildID), logfields.Error(err))
	}
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}
