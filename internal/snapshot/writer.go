/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/grimnir_panel/internal/telemetry"
	"github.com/rs/zerolog"
)

const defaultWriteTimeout = 10 * time.Second

type flushWaiter struct {
	target uint64
	done   chan struct{}
}

// Writer persists snapshots in the background. Enqueue never blocks; when
// several snapshots are queued before the worker gets to them only the latest
// is written.
type Writer struct {
	kv     KV
	logger zerolog.Logger

	mu       sync.Mutex
	pending  *Snapshot
	enqueued uint64
	written  uint64
	waiters  []flushWaiter
	closed   bool

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewWriter starts the background worker.
func NewWriter(kv KV, logger zerolog.Logger) *Writer {
	w := &Writer{
		kv:     kv,
		logger: logger.With().Str("component", "snapshot").Logger(),
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue schedules snap for persistence.
func (w *Writer) Enqueue(snap Snapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn().Msg("snapshot enqueued after close, dropping")
		return
	}
	w.pending = &snap
	w.enqueued++
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Flush waits until every snapshot enqueued before the call has been
// attempted.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.written >= w.enqueued {
		w.mu.Unlock()
		return nil
	}
	waiter := flushWaiter{target: w.enqueued, done: make(chan struct{})}
	w.waiters = append(w.waiters, waiter)
	w.mu.Unlock()

	select {
	case <-waiter.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending work and stops the worker.
func (w *Writer) Close(ctx context.Context) error {
	err := w.Flush(ctx)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return err
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stop)
	<-w.done
	return err
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case <-w.kick:
			w.writePending()
		}
	}
}

func (w *Writer) writePending() {
	w.mu.Lock()
	snap := w.pending
	seq := w.enqueued
	w.pending = nil
	w.mu.Unlock()

	if snap == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	err := Save(ctx, w.kv, *snap)
	cancel()

	if err != nil {
		telemetry.SnapshotWritesTotal.WithLabelValues("error").Inc()
		w.logger.Error().Err(err).Msg("failed to persist panel snapshot")
	} else {
		telemetry.SnapshotWritesTotal.WithLabelValues("ok").Inc()
		w.logger.Debug().
			Int("audios", len(snap.Audios)).
			Int("rules", len(snap.Rules)).
			Msg("panel snapshot persisted")
	}

	w.mu.Lock()
	w.written = seq
	remaining := w.waiters[:0]
	for _, waiter := range w.waiters {
		if waiter.target <= seq {
			close(waiter.done)
			continue
		}
		remaining = append(remaining, waiter)
	}
	w.waiters = remaining
	w.mu.Unlock()
}
