// Package events announces pipeline results on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectPersonaGenerated is published after a persona upsert.
const SubjectPersonaGenerated = "persona.generated"

// PersonaGenerated is the payload of SubjectPersonaGenerated.
type PersonaGenerated struct {
	Username    string    `json:"username"`
	AnalysisID  string    `json:"analysis_id"`
	Complete    bool      `json:"complete"`
	Resolved    int       `json:"citations_resolved"`
	Unresolved  int       `json:"citations_unresolved"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	PersonaGenerated(ctx context.Context, ev PersonaGenerated) error
	Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) PersonaGenerated(context.Context, PersonaGenerated) error { return nil }
func (Nop) Close() {}

// Client publishes JSON events to NATS.
type Client struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect dials url. Subjects are prefixed with prefix plus a dot when prefix
// is non-empty.
func Connect(url, token, prefix string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := []nats.Option{
		nats.Name("redditpersona"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, prefix: prefix, logger: logger}, nil
}

// Subject returns the full subject for name.
func (c *Client) Subject(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + "." + name
}

// PersonaGenerated publishes ev.
func (c *Client) PersonaGenerated(_ context.Context, ev PersonaGenerated) error {
	return c.publish(c.Subject(SubjectPersonaGenerated), ev)
}

func (c *Client) publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (c *Client) Close() {
	if err := c.conn.Flush(); err != nil {
		c.logger.Warn("nats flush failed", "error", err)
	}
	c.conn.Close()
}
