/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"errors"
	"time"

	"github.com/facebookgo/clock"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/playback"
	"github.com/friendsincode/grimnir_panel/internal/telemetry"
)

// sequence is the in-flight repeat state of one firing.
type sequence struct {
	ruleID    string
	audioID   string
	remaining int
	interval  time.Duration
	waiting   bool
	timer     *clock.Timer
}

// SequenceState is an inspectable copy of the active sequence.
type SequenceState struct {
	RuleID    string `json:"rule_id"`
	AudioID   string `json:"audio_id"`
	Remaining int    `json:"remaining"`
	Interval  int    `json:"interval"`
	Waiting   bool   `json:"waiting"`
}

// Sequence returns the active repeat sequence, if any.
func (s *Service) Sequence() (SequenceState, bool) {
	if s.seq == nil {
		return SequenceState{}, false
	}
	return SequenceState{
		RuleID:    s.seq.ruleID,
		AudioID:   s.seq.audioID,
		Remaining: s.seq.remaining,
		Interval:  int(s.seq.interval / time.Second),
		Waiting:   s.seq.waiting,
	}, true
}

func (s *Service) startSequence(rule models.ScheduleRule) {
	if s.seq != nil {
		s.cancelSequence("replaced")
	}
	repeat := rule.Repeat
	if repeat < 1 {
		repeat = 1
	}
	s.seq = &sequence{
		ruleID:    rule.ID,
		audioID:   rule.AudioID,
		remaining: repeat,
		interval:  time.Duration(rule.Interval) * time.Second,
	}
	s.playNext(s.seq)
}

func (s *Service) playNext(seq *sequence) {
	seq.waiting = false
	seq.timer = nil
	seq.remaining--

	s.starting = true
	err := s.player.Play(seq.audioID)
	s.starting = false

	if errors.Is(err, playback.ErrBlocked) {
		// The track stays loaded and paused; its end continues the sequence
		// once the operator starts it.
		s.logger.Warn().Str("rule_id", seq.ruleID).Str("audio_id", seq.audioID).Msg("scheduled playback blocked")
		telemetry.SchedulerRepeatsTotal.WithLabelValues("blocked").Inc()
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("rule_id", seq.ruleID).Str("audio_id", seq.audioID).Msg("scheduled playback failed")
		if s.seq == seq {
			s.seq = nil
			telemetry.SchedulerRepeatsTotal.WithLabelValues("failed").Inc()
		}
		return
	}
	telemetry.SchedulerRepeatsTotal.WithLabelValues("played").Inc()
}

// TrackStarted observes every playback start. A different track cancels the
// active sequence. A manual replay of the sequence's own track while it
// waits between repeats counts as the next repeat.
func (s *Service) TrackStarted(audioID string) {
	seq := s.seq
	if seq == nil || s.starting {
		return
	}
	if audioID != seq.audioID {
		s.cancelSequence("manual_playback")
		return
	}
	if seq.waiting {
		if seq.timer != nil {
			seq.timer.Stop()
		}
		seq.timer = nil
		seq.waiting = false
		seq.remaining--
	}
}

// TrackEnded continues the active sequence after its track ends naturally.
func (s *Service) TrackEnded(audioID string) {
	seq := s.seq
	if seq == nil || seq.audioID != audioID || seq.waiting {
		return
	}
	if seq.remaining <= 0 {
		s.seq = nil
		telemetry.SchedulerRepeatsTotal.WithLabelValues("completed").Inc()
		s.logger.Debug().Str("rule_id", seq.ruleID).Msg("repeat sequence completed")
		return
	}
	if seq.interval <= 0 {
		s.playNext(seq)
		return
	}

	seq.waiting = true
	seq.timer = s.clock.AfterFunc(seq.interval, func() {
		s.dispatch(func() { s.resume(seq) })
	})
}

func (s *Service) resume(seq *sequence) {
	if s.seq != seq || !seq.waiting {
		return
	}
	s.playNext(seq)
}

// CancelForAudio drops the active sequence if it targets audioID.
func (s *Service) CancelForAudio(audioID string) {
	if s.seq != nil && s.seq.audioID == audioID {
		s.cancelSequence("audio_removed")
	}
}

// CancelSequence drops the active sequence, if any.
func (s *Service) CancelSequence() {
	if s.seq != nil {
		s.cancelSequence("cancelled")
	}
}

func (s *Service) cancelSequence(reason string) {
	seq := s.seq
	if seq.timer != nil {
		seq.timer.Stop()
	}
	s.seq = nil
	telemetry.SchedulerRepeatsTotal.WithLabelValues(reason).Inc()
	s.logger.Info().
		Str("rule_id", seq.ruleID).
		Str("audio_id", seq.audioID).
		Int("remaining", seq.remaining).
		Str("reason", reason).
		Msg("repeat sequence cancelled")
}
