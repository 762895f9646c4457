/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/friendsincode/grimnir_panel/internal/models"
)

var (
	ErrNoDays          = errors.New("at least one day must be selected")
	ErrInvalidDay      = errors.New("days must be between 0 (Sunday) and 6 (Saturday)")
	ErrInvalidTime     = errors.New("time must be HH:MM")
	ErrInvalidRepeat   = errors.New("repeat must be at least 1")
	ErrInvalidInterval = errors.New("interval must not be negative")
	ErrAudioNotFound   = errors.New("audio not found")
	ErrRuleNotFound    = errors.New("schedule rule not found")
)

// RuleInput describes a rule to create.
type RuleInput struct {
	AudioID  string `json:"audio_id"`
	Time     string `json:"time"`
	Days     []int  `json:"days"`
	Repeat   int    `json:"repeat"`
	Interval int    `json:"interval"`
}

// NormalizeRule validates a rule's recurrence fields in place: days are
// deduplicated and sorted, time is canonicalised to HH:MM and a zero repeat
// becomes 1.
func NormalizeRule(rule *models.ScheduleRule) error {
	if len(rule.Days) == 0 {
		return ErrNoDays
	}
	seen := make(map[int]struct{}, len(rule.Days))
	days := make([]int, 0, len(rule.Days))
	for _, d := range rule.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: %d", ErrInvalidDay, d)
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Ints(days)
	rule.Days = days

	t, err := time.Parse("15:04", rule.Time)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTime, rule.Time)
	}
	rule.Time = t.Format("15:04")

	if rule.Repeat == 0 {
		rule.Repeat = 1
	}
	if rule.Repeat < 1 {
		return ErrInvalidRepeat
	}
	if rule.Interval < 0 {
		return ErrInvalidInterval
	}
	return nil
}

// AddRule validates and appends an active rule.
func (s *Service) AddRule(in RuleInput) (models.ScheduleRule, error) {
	rule := models.ScheduleRule{
		AudioID:  in.AudioID,
		Time:     in.Time,
		Days:     append([]int(nil), in.Days...),
		Repeat:   in.Repeat,
		Interval: in.Interval,
		Active:   true,
	}
	if err := NormalizeRule(&rule); err != nil {
		return models.ScheduleRule{}, err
	}
	if _, ok := s.library.Get(in.AudioID); !ok {
		return models.ScheduleRule{}, ErrAudioNotFound
	}

	rule.ID = s.newID()
	rule.CreatedAt = s.clock.Now().UTC()
	s.rules = append(s.rules, rule)

	s.logger.Info().
		Str("rule_id", rule.ID).
		Str("audio_id", rule.AudioID).
		Str("time", rule.Time).
		Ints("days", rule.Days).
		Msg("schedule rule created")
	s.changed()
	return rule.Clone(), nil
}

// Toggle flips a rule's active flag.
func (s *Service) Toggle(id string) (models.ScheduleRule, error) {
	i := s.indexOf(id)
	if i < 0 {
		return models.ScheduleRule{}, ErrRuleNotFound
	}
	s.rules[i].Active = !s.rules[i].Active
	s.logger.Info().Str("rule_id", id).Bool("active", s.rules[i].Active).Msg("schedule rule toggled")
	s.changed()
	return s.rules[i].Clone(), nil
}

// Delete removes a rule and cancels its in-flight sequence.
func (s *Service) Delete(id string) error {
	i := s.indexOf(id)
	if i < 0 {
		return ErrRuleNotFound
	}
	s.rules = append(s.rules[:i], s.rules[i+1:]...)
	if s.seq != nil && s.seq.ruleID == id {
		s.cancelSequence("rule_deleted")
	}
	s.logger.Info().Str("rule_id", id).Msg("schedule rule deleted")
	s.changed()
	return nil
}

// Get returns a copy of one rule.
func (s *Service) Get(id string) (models.ScheduleRule, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return models.ScheduleRule{}, false
	}
	return s.rules[i].Clone(), true
}

// Rules returns copies of every rule in creation order.
func (s *Service) Rules() []models.ScheduleRule {
	out := make([]models.ScheduleRule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Clone()
	}
	return out
}

// Restore replaces the rule set with persisted rules. Invalid rules are
// dropped; rules pointing at missing audio are kept.
func (s *Service) Restore(rules []models.ScheduleRule) int {
	s.rules = s.rules[:0]
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		rule := r.Clone()
		if rule.ID == "" {
			rule.ID = s.newID()
		}
		if _, dup := seen[rule.ID]; dup {
			continue
		}
		if err := NormalizeRule(&rule); err != nil {
			s.logger.Warn().Err(err).Str("rule_id", rule.ID).Msg("dropping invalid persisted rule")
			continue
		}
		seen[rule.ID] = struct{}{}
		s.rules = append(s.rules, rule)
	}
	s.logger.Info().Int("rules", len(s.rules)).Msg("schedule rules restored")
	return len(s.rules)
}

func (s *Service) indexOf(id string) int {
	for i := range s.rules {
		if s.rules[i].ID == id {
			return i
		}
	}
	return -1
}
