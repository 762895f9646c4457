/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package coordination

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_panel/internal/telemetry"
)

const queueSize = 32

type request string

const (
	requestPause  request = "pause"
	requestResume request = "resume"
)

// Coordinator forwards pause and resume requests to an ExternalPlayer in
// order, off the caller's goroutine.
type Coordinator struct {
	player  ExternalPlayer
	logger  zerolog.Logger
	queue   chan request
	enabled atomic.Bool

	mu      sync.Mutex
	pending int
	idle    []chan struct{}
}

// NewCoordinator creates a coordinator. Requests are queued until Run starts.
func NewCoordinator(player ExternalPlayer, enabled bool, logger zerolog.Logger) *Coordinator {
	if player == nil {
		player = Noop{}
	}
	c := &Coordinator{
		player: player,
		logger: logger.With().Str("component", "coordination").Str("player", player.Name()).Logger(),
		queue:  make(chan request, queueSize),
	}
	c.enabled.Store(enabled)
	return c
}

// SetEnabled turns forwarding on or off. Queued requests still run.
func (c *Coordinator) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

// Enabled reports whether requests are forwarded.
func (c *Coordinator) Enabled() bool {
	return c.enabled.Load()
}

// RequestPause asks the external player to pause.
func (c *Coordinator) RequestPause() {
	c.enqueue(requestPause)
}

// RequestResume asks the external player to resume.
func (c *Coordinator) RequestResume() {
	c.enqueue(requestResume)
}

func (c *Coordinator) enqueue(r request) {
	if !c.enabled.Load() {
		telemetry.ExternalPlayerCallsTotal.WithLabelValues(string(r), "disabled").Inc()
		return
	}

	c.mu.Lock()
	c.pending++
	c.mu.Unlock()

	select {
	case c.queue <- r:
	default:
		c.done()
		telemetry.ExternalPlayerCallsTotal.WithLabelValues(string(r), "dropped").Inc()
		c.logger.Warn().Str("request", string(r)).Msg("external player queue full, request dropped")
	}
}

// Run drains the queue until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info().Msg("external player coordination started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("external player coordination stopped")
			return ctx.Err()
		case r := <-c.queue:
			c.forward(ctx, r)
			c.done()
		}
	}
}

func (c *Coordinator) forward(ctx context.Context, r request) {
	var ok bool
	switch r {
	case requestPause:
		ok = c.player.RequestPause(ctx)
	case requestResume:
		ok = c.player.RequestResume(ctx)
	}
	c.logger.Debug().Str("request", string(r)).Bool("applied", ok).Msg("external player request handled")
}

func (c *Coordinator) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending == 0 {
		for _, ch := range c.idle {
			close(ch)
		}
		c.idle = nil
	}
}

// Wait blocks until every queued request has been handled or ctx ends.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	c.idle = append(c.idle, ch)
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
