/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KV is the key-value store backing the snapshot.
type KV interface {
	// Get reports found=false with a nil error for absent keys.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// DBKV stores snapshot keys in the snapshot_entries table.
type DBKV struct {
	db *gorm.DB
}

// NewDBKV returns a KV over db. The table must already be migrated.
func NewDBKV(db *gorm.DB) *DBKV {
	return &DBKV{db: db}
}

func (k *DBKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.SnapshotEntry
	// Absent keys are normal on a fresh store; Find keeps them out of the gorm log.
	res := k.db.WithContext(ctx).Where(&models.SnapshotEntry{Key: key}).Limit(1).Find(&entry)
	if res.Error != nil {
		return nil, false, fmt.Errorf("load snapshot key %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (k *DBKV) Set(ctx context.Context, key string, value []byte) error {
	entry := models.SnapshotEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := k.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("store snapshot key %s: %w", key, err)
	}
	return nil
}

func (k *DBKV) Delete(ctx context.Context, key string) error {
	if err := k.db.WithContext(ctx).Where(&models.SnapshotEntry{Key: key}).Delete(&models.SnapshotEntry{}).Error; err != nil {
		return fmt.Errorf("delete snapshot key %s: %w", key, err)
	}
	return nil
}

func (k *DBKV) Close() error { return nil }

// RedisKeyPrefix namespaces snapshot keys in a shared Redis.
const RedisKeyPrefix = "grimnir:panel:"

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Namespace is appended to RedisKeyPrefix, typically the instance id.
	Namespace string
}

// RedisKV stores snapshot keys as plain Redis strings without expiry.
type RedisKV struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisKV connects to Redis. Unlike a cache, the snapshot cannot run
// without its store, so an unreachable server is an error.
func NewRedisKV(cfg RedisConfig, logger zerolog.Logger) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     4,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("Redis snapshot store initialized")
	return NewRedisKVWithClient(client, cfg.Namespace, logger), nil
}

// NewRedisKVWithClient wraps an existing client.
func NewRedisKVWithClient(client *redis.Client, namespace string, logger zerolog.Logger) *RedisKV {
	prefix := RedisKeyPrefix
	if namespace != "" {
		prefix += namespace + ":"
	}
	return &RedisKV{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "snapshot.redis").Logger(),
	}
}

func (k *RedisKV) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}
	k.logger.Debug().Err(err).Str("operation", operation).Msg("redis snapshot operation failed")
}

func (k *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := k.client.Get(ctx, k.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		k.handleError(err, "get")
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (k *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := k.client.Set(ctx, k.prefix+key, value, 0).Err(); err != nil {
		k.handleError(err, "set")
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (k *RedisKV) Delete(ctx context.Context, key string) error {
	if err := k.client.Del(ctx, k.prefix+key).Err(); err != nil {
		k.handleError(err, "delete")
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (k *RedisKV) Close() error {
	return k.client.Close()
}
