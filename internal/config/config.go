/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// AssetBackend selects where audio payloads are kept.
type AssetBackend string

const (
	AssetBackendDB         AssetBackend = "db"
	AssetBackendFilesystem AssetBackend = "filesystem"
	AssetBackendS3         AssetBackend = "s3"
)

// SnapshotBackend selects where the metadata snapshot is kept.
type SnapshotBackend string

const (
	SnapshotBackendDB    SnapshotBackend = "db"
	SnapshotBackendRedis SnapshotBackend = "redis"
)

// Audio output devices.
const (
	AudioOutputSpeaker   = "speaker"
	AudioOutputSimulated = "simulated"
)

// External players.
const (
	ExternalPlayerNone    = "none"
	ExternalPlayerSpotify = "spotify"
)

const defaultJWTSigningKey = "grimnir-panel-dev-key"

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment     string
	HTTPBind        string
	HTTPPort        int
	DBBackend       DatabaseBackend
	DBDSN           string
	JWTSigningKey   string
	AuthRequired    bool
	MetricsBind     string
	MaxUploadSizeMB int

	// Asset Store
	AssetBackend AssetBackend
	MediaRoot    string

	// S3 Object Storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Prefix          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO

	// Metadata snapshot + event fan-out
	SnapshotBackend SnapshotBackend
	EventBus        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	NATSURL         string
	InstanceID      string

	// Scheduler
	SchedulerTick     time.Duration
	ScheduleTimezone  string
	scheduleLocation  *time.Location
	AudioOutput       string
	DeviceSampleRate  int
	DeviceBufferMilli int

	// External player coordination
	ExternalPlayer      string
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRefreshToken string
	SpotifyAccessToken  string
	SpotifyAPIBase      string
	SpotifyTokenURL     string
	ExternalTimeout     time.Duration

	// Panel settings (operator-adjustable at runtime)
	PauseOtherMedia   bool
	ShowNotifications bool
	UseMediaSession   bool

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
// A .env file in the working directory is honoured when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Environment:     getEnvAny([]string{"GRIMNIR_PANEL_ENV", "GRIMNIR_ENV"}, "development"),
		HTTPBind:        getEnvAny([]string{"GRIMNIR_PANEL_HTTP_BIND", "GRIMNIR_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:        getEnvIntAny([]string{"GRIMNIR_PANEL_HTTP_PORT", "GRIMNIR_HTTP_PORT"}, 8090),
		DBBackend:       DatabaseBackend(getEnvAny([]string{"GRIMNIR_PANEL_DB_BACKEND", "GRIMNIR_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:           getEnvAny([]string{"GRIMNIR_PANEL_DB_DSN", "GRIMNIR_DB_DSN"}, "grimnir_panel.db"),
		JWTSigningKey:   getEnvAny([]string{"GRIMNIR_PANEL_JWT_SIGNING_KEY", "GRIMNIR_JWT_SIGNING_KEY"}, defaultJWTSigningKey),
		AuthRequired:    getEnvBoolAny([]string{"GRIMNIR_PANEL_AUTH_REQUIRED"}, false),
		MetricsBind:     getEnvAny([]string{"GRIMNIR_PANEL_METRICS_BIND", "GRIMNIR_METRICS_BIND"}, ""),
		MaxUploadSizeMB: getEnvIntAny([]string{"GRIMNIR_PANEL_MAX_UPLOAD_SIZE_MB", "GRIMNIR_MAX_UPLOAD_SIZE_MB"}, 200),

		AssetBackend: AssetBackend(getEnvAny([]string{"GRIMNIR_PANEL_ASSET_BACKEND"}, string(AssetBackendDB))),
		MediaRoot:    getEnvAny([]string{"GRIMNIR_PANEL_MEDIA_ROOT", "GRIMNIR_MEDIA_ROOT"}, "./media"),

		S3AccessKeyID:     getEnvAny([]string{"GRIMNIR_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"GRIMNIR_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"GRIMNIR_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"GRIMNIR_PANEL_S3_BUCKET", "GRIMNIR_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Prefix:          getEnvAny([]string{"GRIMNIR_PANEL_S3_PREFIX"}, "panel/"),
		S3Endpoint:        getEnvAny([]string{"GRIMNIR_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"GRIMNIR_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		SnapshotBackend: SnapshotBackend(getEnvAny([]string{"GRIMNIR_PANEL_SNAPSHOT_BACKEND"}, string(SnapshotBackendDB))),
		EventBus:        getEnvAny([]string{"GRIMNIR_PANEL_EVENT_BUS"}, "memory"),
		RedisAddr:       getEnvAny([]string{"GRIMNIR_PANEL_REDIS_ADDR", "GRIMNIR_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:   getEnvAny([]string{"GRIMNIR_PANEL_REDIS_PASSWORD", "GRIMNIR_REDIS_PASSWORD"}, ""),
		RedisDB:         getEnvIntAny([]string{"GRIMNIR_PANEL_REDIS_DB", "GRIMNIR_REDIS_DB"}, 0),
		NATSURL:         getEnvAny([]string{"GRIMNIR_PANEL_NATS_URL", "GRIMNIR_NATS_URL"}, ""),
		InstanceID:      getEnvAny([]string{"GRIMNIR_PANEL_INSTANCE_ID", "GRIMNIR_INSTANCE_ID"}, ""),

		SchedulerTick:     time.Duration(getEnvIntAny([]string{"GRIMNIR_PANEL_SCHEDULER_TICK_SECONDS"}, 60)) * time.Second,
		ScheduleTimezone:  getEnvAny([]string{"GRIMNIR_PANEL_TIMEZONE", "TZ"}, "Local"),
		AudioOutput:       getEnvAny([]string{"GRIMNIR_PANEL_AUDIO_OUTPUT"}, AudioOutputSpeaker),
		DeviceSampleRate:  getEnvIntAny([]string{"GRIMNIR_PANEL_SAMPLE_RATE"}, 44100),
		DeviceBufferMilli: getEnvIntAny([]string{"GRIMNIR_PANEL_BUFFER_MS"}, 100),

		ExternalPlayer:      getEnvAny([]string{"GRIMNIR_PANEL_EXTERNAL_PLAYER"}, ExternalPlayerNone),
		SpotifyClientID:     getEnvAny([]string{"GRIMNIR_PANEL_SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_ID"}, ""),
		SpotifyClientSecret: getEnvAny([]string{"GRIMNIR_PANEL_SPOTIFY_CLIENT_SECRET", "SPOTIFY_CLIENT_SECRET"}, ""),
		SpotifyRefreshToken: getEnvAny([]string{"GRIMNIR_PANEL_SPOTIFY_REFRESH_TOKEN", "SPOTIFY_REFRESH_TOKEN"}, ""),
		SpotifyAccessToken:  getEnvAny([]string{"GRIMNIR_PANEL_SPOTIFY_ACCESS_TOKEN", "SPOTIFY_ACCESS_TOKEN"}, ""),
		SpotifyAPIBase:      getEnvAny([]string{"GRIMNIR_PANEL_SPOTIFY_API_BASE"}, "https://api.spotify.com"),
		SpotifyTokenURL:     getEnvAny([]string{"GRIMNIR_PANEL_SPOTIFY_TOKEN_URL"}, "https://accounts.spotify.com/api/token"),
		ExternalTimeout:     time.Duration(getEnvIntAny([]string{"GRIMNIR_PANEL_EXTERNAL_TIMEOUT_MS"}, 3000)) * time.Millisecond,

		PauseOtherMedia:   getEnvBoolAny([]string{"GRIMNIR_PANEL_PAUSE_OTHER_MEDIA"}, true),
		ShowNotifications: getEnvBoolAny([]string{"GRIMNIR_PANEL_SHOW_NOTIFICATIONS"}, true),
		UseMediaSession:   getEnvBoolAny([]string{"GRIMNIR_PANEL_USE_MEDIA_SESSION"}, true),

		TracingEnabled:    getEnvBoolAny([]string{"GRIMNIR_PANEL_TRACING_ENABLED", "GRIMNIR_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"GRIMNIR_PANEL_OTLP_ENDPOINT", "GRIMNIR_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"GRIMNIR_PANEL_TRACING_SAMPLE_RATE", "GRIMNIR_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("GRIMNIR_PANEL_DB_DSN or GRIMNIR_DB_DSN must be provided")
	}

	switch cfg.AssetBackend {
	case AssetBackendDB, AssetBackendFilesystem:
	case AssetBackendS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("GRIMNIR_PANEL_S3_BUCKET must be set when the asset backend is s3")
		}
	default:
		return nil, fmt.Errorf("unsupported asset backend %q", cfg.AssetBackend)
	}

	if cfg.SnapshotBackend != SnapshotBackendDB && cfg.SnapshotBackend != SnapshotBackendRedis {
		return nil, fmt.Errorf("unsupported snapshot backend %q", cfg.SnapshotBackend)
	}

	if cfg.EventBus != "memory" && cfg.EventBus != "redis" {
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	if cfg.AudioOutput != AudioOutputSpeaker && cfg.AudioOutput != AudioOutputSimulated {
		return nil, fmt.Errorf("unsupported audio output %q", cfg.AudioOutput)
	}

	switch cfg.ExternalPlayer {
	case ExternalPlayerNone:
	case ExternalPlayerSpotify:
		if cfg.SpotifyAccessToken == "" && (cfg.SpotifyRefreshToken == "" || cfg.SpotifyClientID == "") {
			return nil, fmt.Errorf("spotify external player needs an access token or a client id plus refresh token")
		}
	default:
		return nil, fmt.Errorf("unsupported external player %q", cfg.ExternalPlayer)
	}

	if cfg.SchedulerTick <= 0 {
		return nil, fmt.Errorf("scheduler tick must be positive, got %s", cfg.SchedulerTick)
	}

	loc, err := loadLocation(cfg.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", cfg.ScheduleTimezone, err)
	}
	cfg.scheduleLocation = loc

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.JWTSigningKey == "" || cfg.JWTSigningKey == defaultJWTSigningKey {
			return nil, fmt.Errorf("GRIMNIR_PANEL_JWT_SIGNING_KEY must be set to a non-default value in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// Location returns the timezone schedule rules are evaluated in.
func (c *Config) Location() *time.Location {
	if c == nil || c.scheduleLocation == nil {
		return time.Local
	}
	return c.scheduleLocation
}

// MaxUploadSizeBytes returns the configured upload limit in bytes.
func (c *Config) MaxUploadSizeBytes() int64 {
	if c == nil || c.MaxUploadSizeMB <= 0 {
		return 200 << 20
	}
	return int64(c.MaxUploadSizeMB) << 20
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"AUDIO_PANEL_PAUSE_OTHER_MEDIA": "use GRIMNIR_PANEL_PAUSE_OTHER_MEDIA",
		"JWT_SIGNING_KEY":               "use GRIMNIR_PANEL_JWT_SIGNING_KEY",
		"TRACING_ENABLED":               "use GRIMNIR_PANEL_TRACING_ENABLED",
		"OTLP_ENDPOINT":                 "use GRIMNIR_PANEL_OTLP_ENDPOINT",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
