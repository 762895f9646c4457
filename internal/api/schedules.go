/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/grimnir_panel/internal/panel"
	"github.com/friendsincode/grimnir_panel/internal/scheduler"
)

type ruleResponse struct {
	ID         string     `json:"id"`
	AudioID    string     `json:"audio_id"`
	AudioName  string     `json:"audio_name,omitempty"`
	Time       string     `json:"time"`
	Days       []int      `json:"days"`
	Repeat     int        `json:"repeat"`
	Interval   int        `json:"interval"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastPlayed *time.Time `json:"last_played,omitempty"`
	NextFire   *time.Time `json:"next_fire,omitempty"`
}

func (a *API) ruleDTO(r panel.Rule) ruleResponse {
	out := ruleResponse{
		ID:         r.ID,
		AudioID:    r.AudioID,
		Time:       r.Time,
		Days:       append([]int{}, r.Days...),
		Repeat:     r.Repeat,
		Interval:   r.Interval,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt,
		LastPlayed: r.LastPlayed,
		NextFire:   r.NextFire,
	}
	if asset, ok := a.panel.Audio(r.AudioID); ok {
		out.AudioName = asset.DisplayName()
	}
	return out
}

func (a *API) handleSchedulesList(w http.ResponseWriter, r *http.Request) {
	rules := a.panel.Rules()
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, a.ruleDTO(rule))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleScheduleCreate(w http.ResponseWriter, r *http.Request) {
	var in scheduler.RuleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	rule, err := a.panel.AddRule(in)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.ruleDTO(rule))
}

func (a *API) handleScheduleToggle(w http.ResponseWriter, r *http.Request) {
	rule, err := a.panel.ToggleRule(chi.URLParam(r, "ruleID"))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.ruleDTO(rule))
}

func (a *API) handleScheduleDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.panel.DeleteRule(chi.URLParam(r, "ruleID")); err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleScheduleEvaluate(w http.ResponseWriter, r *http.Request) {
	fired, err := a.panel.Evaluate(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"fired": fired})
}

func (a *API) handleScheduleSequence(w http.ResponseWriter, r *http.Request) {
	seq, ok := a.panel.Sequence()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "sequence": seq})
}
