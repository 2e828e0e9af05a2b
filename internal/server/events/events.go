// Package events publishes authentication audit events. Publishing is best
// effort: failures are logged and never change the outcome of the request
// that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/logging"
	"github.com/nats-io/nats.go"
)

// Type names an audit event. It is also the last token of the NATS subject.
type Type string

const (
	LoginSucceeded Type = "login.succeeded"
	LoginFailed    Type = "login.failed"
	UserRegistered Type = "user.registered"
	UserLoggedOut  Type = "user.logout"
	UserCreated    Type = "user.created"
	UserUpdated    Type = "user.updated"
	UserDeleted    Type = "user.deleted"
)

// Event is the JSON payload of an audit message.
type Event struct {
	Type     Type      `json:"type"`
	UserID   int64     `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	ActorID  int64     `json:"actor_id,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// NATSPublisher publishes events as JSON on "<prefix>.<type>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger logging.Logger
}

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "auth"

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, prefix string, logger logging.Logger) (*NATSPublisher, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	conn, err := nats.Connect(url,
		nats.Name("cinecritic-auth"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(context.Background(), "nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info(context.Background(), "nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject an event of type t is published on.
func (p *NATSPublisher) Subject(t Type) string {
	return p.prefix + "." + string(t)
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		p.logger.Error(ctx, "event marshal failed", "type", e.Type, "error", err)
		return
	}

	if err := p.conn.Publish(p.Subject(e.Type), data); err != nil {
		p.logger.Warn(ctx, "event publish failed", "type", e.Type, "error", err)
	}
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
