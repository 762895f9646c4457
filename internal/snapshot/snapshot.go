/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package snapshot persists panel metadata (catalog, schedule rules, current
// selection and settings) as a small set of JSON keys.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/friendsincode/grimnir_panel/internal/models"
)

// Snapshot keys.
const (
	KeyAudios            = "audioPanel_audios"
	KeySchedules         = "audioPanel_schedules"
	KeyCurrentAudio      = "audioPanel_currentAudio"
	KeyPauseOtherMedia   = "audioPanel_pauseOtherMedia"
	KeyShowNotifications = "audioPanel_showNotifications"
	KeyUseMediaSession   = "audioPanel_useMediaSession"
)

// Snapshot is the metadata persisted across restarts. Payloads are never part of it.
type Snapshot struct {
	Audios         []models.AudioAsset
	Rules          []models.ScheduleRule
	CurrentAudioID string
	// Settings is nil when no settings were ever saved.
	Settings *models.PanelSettings
}

// Load reads every key. Absent keys yield zero values; a key holding
// malformed JSON is an error.
func Load(ctx context.Context, kv KV) (Snapshot, error) {
	var snap Snapshot

	if err := loadJSON(ctx, kv, KeyAudios, &snap.Audios); err != nil {
		return Snapshot{}, err
	}
	if err := loadJSON(ctx, kv, KeySchedules, &snap.Rules); err != nil {
		return Snapshot{}, err
	}

	current, ok, err := kv.Get(ctx, KeyCurrentAudio)
	if err != nil {
		return Snapshot{}, err
	}
	if ok {
		snap.CurrentAudioID = string(current)
	}

	settings, err := loadSettings(ctx, kv)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Settings = settings

	return snap, nil
}

// Save writes every key. An empty current id removes the key.
func Save(ctx context.Context, kv KV, snap Snapshot) error {
	audios := snap.Audios
	if audios == nil {
		audios = []models.AudioAsset{}
	}
	rules := snap.Rules
	if rules == nil {
		rules = []models.ScheduleRule{}
	}

	if err := saveJSON(ctx, kv, KeyAudios, audios); err != nil {
		return err
	}
	if err := saveJSON(ctx, kv, KeySchedules, rules); err != nil {
		return err
	}

	if snap.CurrentAudioID != "" {
		if err := kv.Set(ctx, KeyCurrentAudio, []byte(snap.CurrentAudioID)); err != nil {
			return err
		}
	} else if err := kv.Delete(ctx, KeyCurrentAudio); err != nil {
		return err
	}

	if snap.Settings != nil {
		for key, val := range map[string]bool{
			KeyPauseOtherMedia:   snap.Settings.PauseOtherMedia,
			KeyShowNotifications: snap.Settings.ShowNotifications,
			KeyUseMediaSession:   snap.Settings.UseMediaSession,
		} {
			if err := kv.Set(ctx, key, []byte(strconv.FormatBool(val))); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadJSON(ctx context.Context, kv KV, key string, dest any) error {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func saveJSON(ctx context.Context, kv KV, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, raw)
}

// loadSettings returns nil when none of the setting keys exist. A missing
// individual key defaults to true.
func loadSettings(ctx context.Context, kv KV) (*models.PanelSettings, error) {
	found := false
	read := func(key string) (bool, error) {
		raw, ok, err := kv.Get(ctx, key)
		if err != nil || !ok {
			return true, err
		}
		found = true
		val, err := strconv.ParseBool(string(raw))
		if err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		return val, nil
	}

	var settings models.PanelSettings
	var err error
	if settings.PauseOtherMedia, err = read(KeyPauseOtherMedia); err != nil {
		return nil, err
	}
	if settings.ShowNotifications, err = read(KeyShowNotifications); err != nil {
		return nil, err
	}
	if settings.UseMediaSession, err = read(KeyUseMediaSession); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &settings, nil
}
