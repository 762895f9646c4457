/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package panel is the application context: it owns the catalog, the
// scheduler, the playback engine and their persistence, and serializes every
// operation on them.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_panel/internal/assetstore"
	"github.com/friendsincode/grimnir_panel/internal/catalog"
	"github.com/friendsincode/grimnir_panel/internal/coordination"
	"github.com/friendsincode/grimnir_panel/internal/events"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/notice"
	"github.com/friendsincode/grimnir_panel/internal/playback"
	"github.com/friendsincode/grimnir_panel/internal/scheduler"
	"github.com/friendsincode/grimnir_panel/internal/snapshot"
)

// ErrNotOpen is returned by operations before Open succeeded.
var ErrNotOpen = errors.New("panel is not open")

// Options configures a Panel.
type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Tick     time.Duration
	// Device defaults to a simulated device on Clock.
	Device         playback.Device
	ExternalPlayer coordination.ExternalPlayer
	Bus            events.Publisher
	// Notifier receives every notice in addition to the bus.
	Notifier notice.Notifier
	// Defaults apply until settings are saved.
	Defaults models.PanelSettings
	Probe    catalog.ProbeFunc
	NewID    func() string
	Volume   int
}

// Panel is safe for concurrent use.
type Panel struct {
	mu     sync.Mutex
	logger zerolog.Logger

	store  assetstore.Store
	kv     snapshot.KV
	writer *snapshot.Writer
	bus    events.Publisher
	extra  notice.Notifier

	catalog     *catalog.Catalog
	scheduler   *scheduler.Service
	engine      *playback.Engine
	coordinator *coordination.Coordinator
	session     *coordination.MediaSession

	settings models.PanelSettings
	opened   bool
	closed   bool
}

// New wires the components. Nothing is loaded until Open.
func New(store assetstore.Store, kv snapshot.KV, logger zerolog.Logger, opts Options) *Panel {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Device == nil {
		opts.Device = playback.NewSimulatedDevice(opts.Clock)
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Notifier == nil {
		opts.Notifier = notice.Nop
	}

	p := &Panel{
		logger:   logger.With().Str("component", "panel").Logger(),
		store:    store,
		kv:       kv,
		writer:   snapshot.NewWriter(kv, logger),
		bus:      opts.Bus,
		extra:    opts.Notifier,
		settings: opts.Defaults,
	}
	notifier := notice.Func(p.notify)

	p.coordinator = coordination.NewCoordinator(opts.ExternalPlayer, p.settings.PauseOtherMedia, logger)
	p.session = coordination.NewMediaSession(p.settings.UseMediaSession, p.publishNowPlaying)

	p.catalog = catalog.New(store, logger, catalog.Options{
		Clock:    opts.Clock,
		Probe:    opts.Probe,
		NewID:    opts.NewID,
		Notifier: notifier,
		OnChange: p.catalogChanged,
	})

	p.engine = playback.New(p.catalog, opts.Device, logger, playback.Options{
		External: p.coordinator,
		Notifier: notifier,
		Dispatch: p.dispatch,
		Volume:   opts.Volume,
	})

	p.scheduler = scheduler.New(p.catalog, scheduledPlayer{p}, logger, scheduler.Options{
		Clock:    opts.Clock,
		Location: opts.Location,
		Tick:     opts.Tick,
		Notifier: notifier,
		NewID:    opts.NewID,
		OnChange: p.rulesChanged,
		Dispatch: p.dispatch,
	})

	p.engine.SetHooks(playback.Hooks{
		OnNowPlaying:   p.nowPlaying,
		OnStarted:      p.scheduler.TrackStarted,
		OnEnded:        p.scheduler.TrackEnded,
		OnState:        p.playbackState,
		OnReloadPrompt: p.reloadPrompt,
	})
	return p
}

// scheduledPlayer marks plays started by a schedule rule.
type scheduledPlayer struct{ p *Panel }

func (s scheduledPlayer) Play(id string) error {
	s.p.bus.Publish(events.EventScheduleFired, events.Payload{"audio_id": id})
	return s.p.engine.Play(id)
}

// Open loads the snapshot, reattaches stored payloads, restores the rule set
// and the last selection. A snapshot that cannot be read is fatal.
func (p *Panel) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, err := snapshot.Load(ctx, p.kv)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	if snap.Settings != nil {
		p.applySettings(*snap.Settings)
	}
	summary := p.catalog.Reconcile(ctx, snap.Audios)
	restored := p.scheduler.Restore(snap.Rules)
	p.engine.RestoreCurrent(snap.CurrentAudioID)
	p.opened = true

	p.logger.Info().
		Int("ready", summary.Ready).
		Int("needs_reload", summary.NeedsReload).
		Int("rules", restored).
		Str("current", p.engine.Current()).
		Msg("panel opened")

	switch {
	case summary.NeedsReload > 0:
		p.notify(notice.Notice{
			Severity: notice.SeverityWarning,
			Message:  fmt.Sprintf("%d ready, %d need reload", summary.Ready, summary.NeedsReload),
		})
	case summary.Ready > 0:
		p.notify(notice.Notice{
			Severity: notice.SeverityInfo,
			Message:  fmt.Sprintf("%d ready", summary.Ready),
		})
	}

	p.persist()
	return nil
}

// Run drives the scheduler tick and external player coordination until ctx
// is cancelled.
func (p *Panel) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = p.coordinator.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = p.scheduler.Run(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

// Close stops playback and flushes pending writes.
func (p *Panel) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.scheduler.CancelSequence()
	err := p.engine.Close()
	p.mu.Unlock()

	if werr := p.writer.Close(ctx); werr != nil && err == nil {
		err = werr
	}
	return err
}

// Flush waits for every snapshot write queued so far.
func (p *Panel) Flush(ctx context.Context) error {
	return p.writer.Flush(ctx)
}

// dispatch runs fn under the panel lock. Device and timer callbacks enter here.
func (p *Panel) dispatch(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	fn()
}

func (p *Panel) ready() error {
	if !p.opened {
		return ErrNotOpen
	}
	return nil
}

func (p *Panel) snapshotLocked() snapshot.Snapshot {
	settings := p.settings
	return snapshot.Snapshot{
		Audios:         p.catalog.Metadata(),
		Rules:          p.scheduler.Rules(),
		CurrentAudioID: p.engine.Current(),
		Settings:       &settings,
	}
}

// persist queues the current state. Writes happen after the in-memory change
// and never block the caller.
func (p *Panel) persist() {
	if !p.opened {
		return
	}
	p.writer.Enqueue(p.snapshotLocked())
}

func (p *Panel) catalogChanged() {
	p.persist()
	p.bus.Publish(events.EventCatalogChanged, events.Payload{
		"count":   p.catalog.Len(),
		"pending": p.catalog.PendingCount(),
	})
}

func (p *Panel) rulesChanged() {
	p.persist()
	p.bus.Publish(events.EventScheduleUpdate, events.Payload{"count": len(p.scheduler.Rules())})
}

func (p *Panel) notify(n notice.Notice) {
	evt := p.logger.Info()
	switch n.Severity {
	case notice.SeverityWarning:
		evt = p.logger.Warn()
	case notice.SeverityError:
		evt = p.logger.Error()
	}
	evt.Str("severity", string(n.Severity)).Str("audio_id", n.AudioID).Msg(n.Message)

	p.bus.Publish(events.EventNotice, events.Payload{
		"severity": string(n.Severity),
		"message":  n.Message,
		"audio_id": n.AudioID,
	})
	p.extra.Notify(n)
}

func (p *Panel) nowPlaying(asset models.AudioAsset) {
	p.session.Publish(asset)
	p.persist()

	if !p.settings.ShowNotifications || asset.NeedsReload {
		return
	}
	body := "Category: " + asset.Category.Label()
	if p.settings.PauseOtherMedia {
		body += " • Other players will be paused"
	}
	p.bus.Publish(events.EventDesktopNotify, events.Payload{
		"audio_id": asset.ID,
		"title":    "Now playing: " + asset.DisplayName(),
		"body":     body,
		"icon":     coordination.CategoryIcon(asset.Category),
	})
}

func (p *Panel) publishNowPlaying(np coordination.NowPlaying, active bool) {
	p.bus.Publish(events.EventNowPlaying, events.Payload{
		"audio_id":    np.AudioID,
		"active":      active,
		"now_playing": np,
	})
}

func (p *Panel) playbackState(st playback.Status) {
	p.bus.Publish(events.EventPlaybackState, events.Payload{"status": st})
}

func (p *Panel) reloadPrompt(asset models.AudioAsset) {
	p.bus.Publish(events.EventReloadPrompt, events.Payload{
		"audio_id":  asset.ID,
		"name":      asset.DisplayName(),
		"file_name": asset.FileName,
	})
}
