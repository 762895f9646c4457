/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package assetstore

import (
	"context"
	"fmt"

	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBStore keeps payloads in the asset_payloads table.
type DBStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewDBStore creates a database-backed store. The table must already be migrated.
func NewDBStore(db *gorm.DB, logger zerolog.Logger) *DBStore {
	return &DBStore{db: db, logger: logger.With().Str("component", "assetstore.db").Logger()}
}

func (s *DBStore) Put(ctx context.Context, rec models.AssetPayload) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert payload: %w", err)
	}
	s.logger.Debug().Str("audio_id", rec.ID).Int64("size", rec.FileSize).Msg("payload stored")
	return nil
}

func (s *DBStore) Get(ctx context.Context, id string) (models.AssetPayload, bool, error) {
	var rec models.AssetPayload
	res := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rec)
	if res.Error != nil {
		return models.AssetPayload{}, false, fmt.Errorf("load payload: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.AssetPayload{}, false, nil
	}
	return rec, true, nil
}

func (s *DBStore) GetAll(ctx context.Context) (map[string]models.AssetPayload, error) {
	var recs []models.AssetPayload
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list payloads: %w", err)
	}
	out := make(map[string]models.AssetPayload, len(recs))
	for _, rec := range recs {
		out[rec.ID] = rec
	}
	return out, nil
}

func (s *DBStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.AssetPayload{}).Error; err != nil {
		return fmt.Errorf("delete payload: %w", err)
	}
	return nil
}

func (s *DBStore) FindByFileName(ctx context.Context, fileName string) ([]models.AssetPayload, error) {
	var recs []models.AssetPayload
	err := s.db.WithContext(ctx).
		Where("file_name = ?", fileName).
		Order("date_stored ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("find payloads by file name: %w", err)
	}
	return recs, nil
}

// Close is a no-op; the shared *gorm.DB is closed by its owner.
func (s *DBStore) Close() error { return nil }
