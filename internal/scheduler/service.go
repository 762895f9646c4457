/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler evaluates weekly schedule rules against the wall clock
// and sequences repeated playback of the triggered audio.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookgo/clock"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/notice"
	"github.com/friendsincode/grimnir_panel/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTick is the evaluation period.
const DefaultTick = time.Minute

// Library resolves rule targets.
type Library interface {
	Get(id string) (models.AudioAsset, bool)
}

// Player starts playback of an audio id.
type Player interface {
	Play(id string) error
}

// Options configures a Service.
type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Tick     time.Duration
	Notifier notice.Notifier
	NewID    func() string
	// OnChange runs after every rule mutation, including lastPlayed updates.
	OnChange func()
	// Dispatch runs timer callbacks on the owner's timeline.
	Dispatch func(func())
}

// Service owns the rule set and the active repeat sequence. Apart from Run
// it is not safe for concurrent use; callers serialize access.
type Service struct {
	library Library
	player  Player
	logger  zerolog.Logger

	clock    clock.Clock
	loc      *time.Location
	tick     time.Duration
	notifier notice.Notifier
	newID    func() string
	onChange func()
	dispatch func(func())

	rules    []models.ScheduleRule
	seq      *sequence
	starting bool
}

// New constructs the scheduler service.
func New(library Library, player Player, logger zerolog.Logger, opts Options) *Service {
	s := &Service{
		library:  library,
		player:   player,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		clock:    opts.Clock,
		loc:      opts.Location,
		tick:     opts.Tick,
		notifier: opts.Notifier,
		newID:    opts.NewID,
		onChange: opts.OnChange,
		dispatch: opts.Dispatch,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.tick <= 0 {
		s.tick = DefaultTick
	}
	if s.notifier == nil {
		s.notifier = notice.Nop
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.dispatch == nil {
		s.dispatch = func(fn func()) { fn() }
	}
	return s
}

// SetPlayer replaces the playback target.
func (s *Service) SetPlayer(p Player) {
	s.player = p
}

// SetOnChange replaces the mutation hook.
func (s *Service) SetOnChange(fn func()) {
	s.onChange = fn
}

// SetDispatch replaces the timer callback dispatcher.
func (s *Service) SetDispatch(fn func(func())) {
	s.dispatch = fn
}

// Location returns the zone used for day and time matching.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Run executes the scheduler loop until the context is cancelled. Each tick
// is dispatched onto the owner's timeline.
func (s *Service) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.tick)
	defer ticker.Stop()

	s.logger.Info().Dur("tick", s.tick).Str("timezone", s.loc.String()).Msg("scheduler loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.dispatch(func() { s.Evaluate(ctx) })
		}
	}
}

// Evaluate fires every due rule once and returns how many fired.
func (s *Service) Evaluate(ctx context.Context) int {
	_, span := telemetry.StartSpan(ctx, "scheduler", "evaluate")
	defer span.End()
	telemetry.SchedulerTicksTotal.Inc()

	now := s.clock.Now().In(s.loc)
	hhmm := now.Format("15:04")
	fired := 0

	for i := range s.rules {
		rule := &s.rules[i]
		if !rule.Active || rule.Time != hhmm || !rule.HasDay(now.Weekday()) {
			continue
		}
		if rule.LastPlayed != nil && sameDay(rule.LastPlayed.In(s.loc), now) {
			continue
		}

		asset, ok := s.library.Get(rule.AudioID)
		if !ok {
			// Dangling rule: its audio was deleted.
			s.logger.Debug().Str("rule_id", rule.ID).Str("audio_id", rule.AudioID).Msg("rule target missing, skipping")
			telemetry.SchedulerErrorsTotal.WithLabelValues("missing_audio").Inc()
			continue
		}
		if asset.NeedsReload {
			s.logger.Warn().Str("rule_id", rule.ID).Str("audio_id", rule.AudioID).Msg("rule target needs reload, skipping")
			telemetry.SchedulerErrorsTotal.WithLabelValues("needs_reload").Inc()
			s.notifier.Notify(notice.Notice{
				Severity: notice.SeverityWarning,
				Message:  fmt.Sprintf("Scheduled audio %q cannot play until it is reloaded", asset.DisplayName()),
				AudioID:  asset.ID,
			})
			continue
		}

		stamp := now
		rule.LastPlayed = &stamp
		s.changed()

		telemetry.SchedulerFiringsTotal.Inc()
		telemetry.AddSpanEvent(span, "rule.fired", map[string]any{"rule_id": rule.ID, "audio_id": rule.AudioID, "repeat": rule.Repeat})
		s.logger.Info().
			Str("rule_id", rule.ID).
			Str("audio_id", rule.AudioID).
			Int("repeat", rule.Repeat).
			Int("interval", rule.Interval).
			Msg("schedule fired")

		s.startSequence(*rule)
		fired++
	}
	return fired
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
