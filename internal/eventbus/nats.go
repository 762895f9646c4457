/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_panel/internal/events"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "grimnir.panel",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSMirror copies every event published on the wrapped broker to the
// subject <prefix>.<event type>. Subscriptions stay local.
type NATSMirror struct {
	events.Broker
	conn   *nats.Conn
	prefix string
	nodeID string
	logger zerolog.Logger
}

// NewNATSMirror connects to NATS and wraps inner.
func NewNATSMirror(inner events.Broker, cfg NATSConfig, nodeID string, logger zerolog.Logger) (*NATSMirror, error) {
	logger = logger.With().Str("component", "eventbus").Str("transport", "nats").Logger()

	opts := []nats.Option{
		nats.Name("grimnir-panel " + nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultNATSConfig().SubjectPrefix
	}
	logger.Info().Str("url", conn.ConnectedUrl()).Str("prefix", prefix).Msg("nats event mirror connected")
	return &NATSMirror{Broker: inner, conn: conn, prefix: prefix, nodeID: nodeID, logger: logger}, nil
}

// Subject returns the NATS subject for eventType.
func (m *NATSMirror) Subject(eventType events.EventType) string {
	return m.prefix + "." + string(eventType)
}

// Publish delivers locally, then mirrors to NATS.
func (m *NATSMirror) Publish(eventType events.EventType, payload events.Payload) {
	m.Broker.Publish(eventType, payload)

	data, err := marshalMessage(eventType, payload, m.nodeID)
	if err != nil {
		m.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to encode event")
		return
	}
	if err := m.conn.Publish(m.Subject(eventType), data); err != nil {
		m.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("failed to mirror event to nats")
	}
}

// Close drains the connection.
func (m *NATSMirror) Close() error {
	if err := m.conn.Drain(); err != nil {
		m.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
