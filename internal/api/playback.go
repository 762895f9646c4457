/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/grimnir_panel/internal/panel"
)

type loopRequest struct {
	Loop bool `json:"loop"`
}

type volumeRequest struct {
	Volume *int `json:"volume"`
}

type seekRequest struct {
	Position *float64 `json:"position"`
}

func (a *API) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.panel.Status())
}

// respond writes the engine status after a successful command.
func (a *API) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.panel.Status())
}

func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.panel.Play(chi.URLParam(r, "audioID")))
}

func (a *API) handleToggle(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.panel.TogglePlayPause())
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.panel.Pause())
}

func (a *API) handleResume(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.panel.Resume())
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.panel.Stop())
}

func (a *API) handleNext(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.panel.Next())
}

func (a *API) handlePrevious(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.panel.Previous())
}

func (a *API) handleLoop(w http.ResponseWriter, r *http.Request) {
	var req loopRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	a.respond(w, r, a.panel.SetLoop(req.Loop))
}

func (a *API) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := decodeJSON(r, &req); err != nil || req.Volume == nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	a.respond(w, r, a.panel.SetVolume(*req.Volume))
}

func (a *API) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decodeJSON(r, &req); err != nil || req.Position == nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	a.respond(w, r, a.panel.Seek(*req.Position))
}

func (a *API) handleMediaSessionAction(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.panel.MediaSessionAction(chi.URLParam(r, "action")))
}

func (a *API) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.panel.Settings())
}

func (a *API) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var patch panel.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	settings, err := a.panel.UpdateSettings(patch)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
