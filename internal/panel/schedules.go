/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package panel

import (
	"context"
	"time"

	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/scheduler"
)

// Rule is a schedule rule with its next firing time.
type Rule struct {
	models.ScheduleRule
	NextFire *time.Time `json:"nextFire,omitempty"`
}

// Rules lists every schedule rule.
func (p *Panel) Rules() []Rule {
	p.mu.Lock()
	defer p.mu.Unlock()
	rules := p.scheduler.Rules()
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, p.withNext(r))
	}
	return out
}

func (p *Panel) withNext(r models.ScheduleRule) Rule {
	out := Rule{ScheduleRule: r}
	if next, ok := p.scheduler.NextFire(r.ID); ok {
		out.NextFire = &next
	}
	return out
}

// AddRule validates and stores a rule.
func (p *Panel) AddRule(in scheduler.RuleInput) (Rule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return Rule{}, err
	}
	r, err := p.scheduler.AddRule(in)
	if err != nil {
		return Rule{}, err
	}
	return p.withNext(r), nil
}

// ToggleRule flips a rule's active flag.
func (p *Panel) ToggleRule(id string) (Rule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return Rule{}, err
	}
	r, err := p.scheduler.Toggle(id)
	if err != nil {
		return Rule{}, err
	}
	return p.withNext(r), nil
}

// DeleteRule removes a rule.
func (p *Panel) DeleteRule(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	return p.scheduler.Delete(id)
}

// Evaluate runs one scheduler pass now and returns how many rules fired.
func (p *Panel) Evaluate(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return 0, err
	}
	return p.scheduler.Evaluate(ctx), nil
}

// Sequence reports the active repeat sequence.
func (p *Panel) Sequence() (scheduler.SequenceState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduler.Sequence()
}
