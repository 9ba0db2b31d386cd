// Package hermes announces computed statistics on the NATS event bus.
package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	clientName   = "chatstats"
	flushTimeout = 5 * time.Second
)

// Client publishes chatstats events on NATS.
type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewClient connects to url. The connection attempt is bounded by ctx's
// deadline when it has one.
func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, logger: logger}, nil
}

// Publish sends data as JSON on subject.
func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	c.logger.Debug("event published", "subject", subject, "bytes", len(payload))
	return nil
}

// SubscribeAnalyzed decodes every AnalyzedEvent published on subject, which may
// be a wildcard. Undecodable payloads are logged and dropped.
func (c *Client) SubscribeAnalyzed(subject string, handler func(AnalyzedEvent)) error {
	_, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev AnalyzedEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			c.logger.Warn("dropping undecodable event", "subject", msg.Subject, "error", err)
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Connected reports whether the bus connection is currently up.
func (c *Client) Connected() bool {
	return c.conn.IsConnected()
}

// Close flushes pending events, then closes the connection.
func (c *Client) Close() {
	if c.conn.IsConnected() {
		if err := c.conn.FlushTimeout(flushTimeout); err != nil {
			c.logger.Warn("nats flush failed", "error", err)
		}
	}
	c.conn.Close()
}
