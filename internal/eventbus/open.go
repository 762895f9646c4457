/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_panel/internal/config"
	"github.com/friendsincode/grimnir_panel/internal/events"
)

// Open builds the configured broker. The returned closers run in order on
// shutdown.
func Open(cfg *config.Config, logger zerolog.Logger) (events.Broker, []func() error) {
	nodeID := NodeID(cfg.InstanceID)
	var broker events.Broker
	var closers []func() error

	switch cfg.EventBus {
	case "redis":
		rc := DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		rb := NewRedisBus(rc, nodeID, logger)
		broker = rb
		closers = append(closers, rb.Close)
	default:
		broker = events.NewBus()
	}

	if cfg.NATSURL != "" {
		nc := DefaultNATSConfig()
		nc.URL = cfg.NATSURL
		mirror, err := NewNATSMirror(broker, nc, nodeID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats mirror disabled")
		} else {
			broker = mirror
			closers = append([]func() error{mirror.Close}, closers...)
		}
	}
	return broker, closers
}
