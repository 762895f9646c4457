/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"time"

	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/teambition/rrule-go"
)

var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// NextFire returns the next time rule will fire strictly after after, in
// loc. Inactive or malformed rules never fire.
func NextFire(rule models.ScheduleRule, after time.Time, loc *time.Location) (time.Time, bool) {
	if !rule.Active || len(rule.Days) == 0 {
		return time.Time{}, false
	}
	t, err := time.Parse("15:04", rule.Time)
	if err != nil {
		return time.Time{}, false
	}

	byDay := make([]rrule.Weekday, 0, len(rule.Days))
	for _, d := range rule.Days {
		if d < 0 || d > 6 {
			return time.Time{}, false
		}
		byDay = append(byDay, weekdays[d])
	}

	local := after.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	rr, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Byweekday: byDay,
		Byhour:    []int{t.Hour()},
		Byminute:  []int{t.Minute()},
		Bysecond:  []int{0},
	})
	if err != nil {
		return time.Time{}, false
	}

	next := rr.After(after, false)
	if next.IsZero() {
		return time.Time{}, false
	}
	// Already fired that day.
	if rule.LastPlayed != nil && sameDay(rule.LastPlayed.In(loc), next) {
		next = rr.After(next, false)
	}
	return next, !next.IsZero()
}

// NextFire reports when the rule with id fires next.
func (s *Service) NextFire(id string) (time.Time, bool) {
	rule, ok := s.Get(id)
	if !ok {
		return time.Time{}, false
	}
	return NextFire(rule, s.clock.Now(), s.loc)
}
