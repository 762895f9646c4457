/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ScheduleRule plays an audio clip at a wall-clock time on selected weekdays.
type ScheduleRule struct {
	ID         string     `json:"id" yaml:"id"`
	AudioID    string     `json:"audioId" yaml:"audio_id"`
	Time       string     `json:"time" yaml:"time"` // HH:MM, 24h
	Days       []int      `json:"days" yaml:"days"` // 0 = Sunday
	Repeat     int        `json:"repeat" yaml:"repeat"`
	Interval   int        `json:"interval" yaml:"interval"` // seconds between repeats
	Active     bool       `json:"active" yaml:"active"`
	CreatedAt  time.Time  `json:"createdAt" yaml:"created_at"`
	LastPlayed *time.Time `json:"lastPlayed,omitempty" yaml:"last_played,omitempty"`
}

// HasDay reports whether the rule is eligible on weekday.
func (r ScheduleRule) HasDay(weekday time.Weekday) bool {
	for _, d := range r.Days {
		if d == int(weekday) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out of the scheduler.
func (r ScheduleRule) Clone() ScheduleRule {
	out := r
	out.Days = append([]int(nil), r.Days...)
	if r.LastPlayed != nil {
		lp := *r.LastPlayed
		out.LastPlayed = &lp
	}
	return out
}
