// Package audit publishes a fire-and-forget feed of world events to NATS
// for offline tooling (analytics, moderation review). It is strictly an
// export side channel: nothing in the model ever blocks on it, waits for
// it, or changes behavior based on its presence, and it has no part in
// replicating state between server instances.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Event is one audited world occurrence.
type Event struct {
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// Publisher accepts audit events. Publish must never block the caller on
// network I/O; the NATS implementation relies on the client library's
// async Publish for that.
type Publisher interface {
	Publish(ev Event)
	Close() error
}

// noop discards every event; used when no NATS URL is configured.
type noop struct{}

func (noop) Publish(Event) {}
func (noop) Close() error  { return nil }

// NewNoop returns a Publisher that discards everything.
func NewNoop() Publisher { return noop{} }

const subject = "craftd.world.events"

// natsPublisher publishes events as JSON to a single NATS subject.
type natsPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// Connect dials url and returns a Publisher backed by it. If url is empty,
// a no-op Publisher is returned instead and no connection is attempted.
func Connect(url string, logger zerolog.Logger) (Publisher, error) {
	if url == "" {
		return NewNoop(), nil
	}

	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("audit: disconnected from nats")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("audit: reconnected to nats")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Warn().Err(err).Msg("audit: nats error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &natsPublisher{conn: conn, logger: logger}, nil
}

// Publish marshals ev and publishes it; a marshal or publish failure is
// logged and otherwise swallowed, since audit export must never be able to
// affect the authoritative event stream.
func (p *natsPublisher) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn().Err(err).Str("kind", ev.Kind).Msg("audit: marshal failed")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn().Err(err).Str("kind", ev.Kind).Msg("audit: publish failed")
	}
}

func (p *natsPublisher) Close() error {
	p.conn.Close()
	return nil
}
