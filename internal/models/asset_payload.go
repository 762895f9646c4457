/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AssetPayload is the Asset Store record for an uploaded clip.
type AssetPayload struct {
	ID         string    `gorm:"type:varchar(64);primaryKey"`
	FileName   string    `gorm:"type:varchar(512);index:idx_asset_payloads_file_name"`
	FileType   string    `gorm:"type:varchar(128)"`
	FileSize   int64     `gorm:"not null;default:0"`
	Payload    []byte    `gorm:"not null"`
	DateStored time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (AssetPayload) TableName() string {
	return "asset_payloads"
}

// SnapshotEntry holds one key of the persisted metadata snapshot.
type SnapshotEntry struct {
	Key       string `gorm:"type:varchar(128);primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (SnapshotEntry) TableName() string {
	return "snapshot_entries"
}
