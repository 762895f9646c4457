/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package snapshot

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_panel/internal/config"
)

// Open returns the configured snapshot store.
func Open(cfg *config.Config, db *gorm.DB, logger zerolog.Logger) (KV, error) {
	switch cfg.SnapshotBackend {
	case config.SnapshotBackendRedis:
		kv, err := NewRedisKV(RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.InstanceID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis snapshot store: %w", err)
		}
		return kv, nil
	case config.SnapshotBackendDB, "":
		if db == nil {
			return nil, fmt.Errorf("database snapshot store requires a database connection")
		}
		return NewDBKV(db), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot backend %q", cfg.SnapshotBackend)
	}
}
