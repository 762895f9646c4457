/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_panel/internal/events"
)

const redisChannelPrefix = "grimnir:panel:events:"

// RedisBus delivers events locally and through Redis pub/sub so several
// processes watching the same panel see each other's events. After
// MaxFailures consecutive Redis errors it keeps working in-process only.
type RedisBus struct {
	client *redis.Client
	local  *events.Bus
	logger zerolog.Logger
	nodeID string

	mu          sync.Mutex
	channels    map[events.EventType]*redis.PubSub
	useFallback bool
	failCount   int
	maxFails    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFailures  int
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxFailures:  5,
	}
}

// NewRedisBus connects to Redis. An unreachable server yields an in-process
// bus rather than an error.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}

	rb := &RedisBus{
		local:    events.NewBus(),
		logger:   logger.With().Str("component", "eventbus").Str("transport", "redis").Logger(),
		nodeID:   nodeID,
		channels: make(map[events.EventType]*redis.PubSub),
		maxFails: cfg.MaxFailures,
		ctx:      ctx,
		cancel:   cancel,
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		rb.logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, events stay in-process")
		_ = client.Close()
		rb.useFallback = true
		return rb
	}

	rb.client = client
	rb.logger.Info().Str("addr", cfg.Addr).Str("node_id", nodeID).Msg("redis event bus initialized")
	return rb
}

// Fallback reports whether the bus is running in-process only.
func (rb *RedisBus) Fallback() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.useFallback
}

// Subscribe registers a local subscriber and makes sure remote events of
// that type are received.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := rb.local.Subscribe(eventType)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.useFallback {
		return sub
	}
	if _, ok := rb.channels[eventType]; !ok {
		pubsub := rb.client.Subscribe(rb.ctx, redisChannelPrefix+string(eventType))
		rb.channels[eventType] = pubsub
		rb.wg.Add(1)
		go rb.receive(eventType, pubsub)
	}
	return sub
}

func (rb *RedisBus) receive(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()
	ch := pubsub.Channel()

	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				rb.logger.Debug().Str("event_type", string(eventType)).Msg("redis subscription closed")
				return
			}
			decoded, err := unmarshalMessage([]byte(msg.Payload))
			if err != nil {
				rb.logger.Error().Err(err).Msg("failed to decode redis event")
				continue
			}
			if decoded.NodeID == rb.nodeID {
				continue
			}
			rb.local.Publish(eventType, decoded.Payload)
		}
	}
}

// Publish delivers payload to local subscribers, then to Redis.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	rb.mu.Lock()
	fallback := rb.useFallback
	rb.mu.Unlock()
	if fallback {
		return
	}

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Publish(ctx, redisChannelPrefix+string(eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to redis")
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Unsubscribe removes a local subscriber.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)
}

func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount < rb.maxFails || rb.useFallback {
		return
	}
	rb.logger.Warn().Int("fail_count", rb.failCount).Msg("redis failure threshold reached, events stay in-process")
	rb.useFallback = true
	for eventType, pubsub := range rb.channels {
		_ = pubsub.Close()
		delete(rb.channels, eventType)
	}
}

// Close stops the receivers and closes the client.
func (rb *RedisBus) Close() error {
	rb.cancel()

	rb.mu.Lock()
	for eventType, pubsub := range rb.channels {
		_ = pubsub.Close()
		delete(rb.channels, eventType)
	}
	rb.mu.Unlock()
	rb.wg.Wait()

	if rb.client != nil {
		if err := rb.client.Close(); err != nil {
			rb.logger.Error().Err(err).Msg("failed to close redis client")
			return err
		}
	}
	return nil
}
