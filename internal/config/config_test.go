package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TZ", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("DBBackend = %q, want %q", cfg.DBBackend, DatabaseSQLite)
	}
	if cfg.AssetBackend != AssetBackendDB {
		t.Fatalf("AssetBackend = %q, want %q", cfg.AssetBackend, AssetBackendDB)
	}
	if cfg.SchedulerTick != 60*time.Second {
		t.Fatalf("SchedulerTick = %s, want 60s", cfg.SchedulerTick)
	}
	if !cfg.PauseOtherMedia || !cfg.ShowNotifications || !cfg.UseMediaSession {
		t.Fatal("expected panel settings to default to enabled")
	}
	if cfg.Location() != time.Local {
		t.Fatalf("Location = %v, want Local", cfg.Location())
	}
}

func TestLoadReadsPanelKeysBeforeSharedKeys(t *testing.T) {
	t.Setenv("GRIMNIR_DB_DSN", "shared.db")
	t.Setenv("GRIMNIR_PANEL_DB_DSN", "panel.db")
	t.Setenv("GRIMNIR_PANEL_TIMEZONE", "UTC")
	t.Setenv("GRIMNIR_PANEL_PAUSE_OTHER_MEDIA", "no")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN != "panel.db" {
		t.Fatalf("DBDSN = %q, want panel.db", cfg.DBDSN)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("Location = %v, want UTC", cfg.Location())
	}
	if cfg.PauseOtherMedia {
		t.Fatal("expected PauseOtherMedia to be disabled")
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "db backend", key: "GRIMNIR_PANEL_DB_BACKEND", val: "oracle"},
		{name: "asset backend", key: "GRIMNIR_PANEL_ASSET_BACKEND", val: "floppy"},
		{name: "s3 without bucket", key: "GRIMNIR_PANEL_ASSET_BACKEND", val: "s3"},
		{name: "snapshot backend", key: "GRIMNIR_PANEL_SNAPSHOT_BACKEND", val: "cookies"},
		{name: "audio output", key: "GRIMNIR_PANEL_AUDIO_OUTPUT", val: "hdmi"},
		{name: "spotify without credentials", key: "GRIMNIR_PANEL_EXTERNAL_PLAYER", val: "spotify"},
		{name: "timezone", key: "GRIMNIR_PANEL_TIMEZONE", val: "Mars/Olympus"},
		{name: "tick", key: "GRIMNIR_PANEL_SCHEDULER_TICK_SECONDS", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoadProductionRequiresSigningKey(t *testing.T) {
	t.Setenv("GRIMNIR_PANEL_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail with the default signing key")
	}

	t.Setenv("GRIMNIR_PANEL_JWT_SIGNING_KEY", "supersecret")
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config load with signing key to succeed: %v", err)
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "legacy")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}
