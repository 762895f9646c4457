/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package assetstore

import (
	"context"
	"fmt"

	"github.com/friendsincode/grimnir_panel/internal/config"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Open builds the configured backend and wraps it with Instrument.
func Open(ctx context.Context, cfg *config.Config, db *gorm.DB, logger zerolog.Logger) (Store, error) {
	var store Store

	switch cfg.AssetBackend {
	case config.AssetBackendS3:
		s3cfg := S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
		}
		s3Store, err := NewS3Store(ctx, s3cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 asset store: %w", err)
		}
		store = s3Store
	case config.AssetBackendFilesystem:
		fsStore, err := NewFilesystemStore(cfg.MediaRoot, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize filesystem asset store: %w", err)
		}
		store = fsStore
	case config.AssetBackendDB, "":
		if db == nil {
			return nil, fmt.Errorf("database asset store requires a database connection")
		}
		store = NewDBStore(db, logger)
	default:
		return nil, fmt.Errorf("unknown asset backend: %s", cfg.AssetBackend)
	}

	logger.Info().Str("backend", string(cfg.AssetBackend)).Msg("asset store ready")
	return Instrument(store, string(cfg.AssetBackend)), nil
}
