/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_panel/internal/assetstore"
	"github.com/friendsincode/grimnir_panel/internal/auth"
	"github.com/friendsincode/grimnir_panel/internal/catalog"
	"github.com/friendsincode/grimnir_panel/internal/events"
	"github.com/friendsincode/grimnir_panel/internal/logbuffer"
	"github.com/friendsincode/grimnir_panel/internal/panel"
	"github.com/friendsincode/grimnir_panel/internal/playback"
	"github.com/friendsincode/grimnir_panel/internal/scheduler"
	"github.com/friendsincode/grimnir_panel/internal/version"
)

const defaultMaxUploadBytes = 200 << 20

// Options configures the HTTP API.
type Options struct {
	JWTSecret      []byte
	AuthRequired   bool
	MaxUploadBytes int64
	LogBuffer      *logbuffer.Buffer
}

// API exposes the panel over HTTP.
type API struct {
	panel          *panel.Panel
	bus            events.Broker
	logBuffer      *logbuffer.Buffer
	jwtSecret      []byte
	authRequired   bool
	maxUploadBytes int64
	logger         zerolog.Logger
}

// New creates the API handler set.
func New(p *panel.Panel, bus events.Broker, logger zerolog.Logger, opts Options) *API {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &API{
		panel:          p,
		bus:            bus,
		logBuffer:      opts.LogBuffer,
		jwtSecret:      opts.JWTSecret,
		authRequired:   opts.AuthRequired,
		maxUploadBytes: maxUpload,
		logger:         logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers API endpoints on the router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", a.handleVersion)

		r.Group(func(pr chi.Router) {
			if a.authRequired {
				pr.Use(auth.Middleware(a.jwtSecret))
			}
			operator := auth.RequireRole(auth.RoleOperator)

			pr.Route("/audios", func(r chi.Router) {
				r.Get("/", a.handleAudiosList)
				r.With(operator).Post("/", a.handleAudiosAdd)
				r.With(operator).Post("/reload", a.handleAudiosBulkReload)
				r.Route("/{audioID}", func(r chi.Router) {
					r.Get("/", a.handleAudioGet)
					r.With(operator).Patch("/", a.handleAudioUpdate)
					r.With(operator).Delete("/", a.handleAudioDelete)
					r.Get("/payload", a.handleAudioPayload)
					r.With(operator).Put("/payload", a.handleAudioReload)
					r.Get("/artwork", a.handleAudioArtwork)
				})
			})
			pr.Get("/filter", a.handleFilterGet)
			pr.Put("/filter", a.handleFilterSet)

			pr.Route("/schedules", func(r chi.Router) {
				r.Get("/", a.handleSchedulesList)
				r.With(operator).Post("/", a.handleScheduleCreate)
				r.With(operator).Post("/evaluate", a.handleScheduleEvaluate)
				r.Get("/sequence", a.handleScheduleSequence)
				r.With(operator).Post("/{ruleID}/toggle", a.handleScheduleToggle)
				r.With(operator).Delete("/{ruleID}", a.handleScheduleDelete)
			})

			pr.Route("/playback", func(r chi.Router) {
				r.Get("/", a.handlePlaybackStatus)
				r.Group(func(r chi.Router) {
					r.Use(operator)
					r.Post("/play/{audioID}", a.handlePlay)
					r.Post("/toggle", a.handleToggle)
					r.Post("/pause", a.handlePause)
					r.Post("/resume", a.handleResume)
					r.Post("/stop", a.handleStop)
					r.Post("/next", a.handleNext)
					r.Post("/previous", a.handlePrevious)
					r.Put("/loop", a.handleLoop)
					r.Put("/volume", a.handleVolume)
					r.Put("/seek", a.handleSeek)
				})
			})
			pr.With(operator).Post("/media-session/{action}", a.handleMediaSessionAction)

			pr.Get("/settings", a.handleSettingsGet)
			pr.With(operator).Put("/settings", a.handleSettingsUpdate)

			pr.Get("/events/ws", a.handleEvents)

			pr.Route("/system", func(r chi.Router) {
				r.Get("/logs", a.handleSystemLogs)
				r.Get("/logs/stats", a.handleLogStats)
			})
		})
	})
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}

// errorStatus maps domain errors to a status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, panel.ErrNotOpen):
		return http.StatusServiceUnavailable, "panel_not_open"
	case errors.Is(err, assetstore.ErrUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, playback.ErrNotFound), errors.Is(err, scheduler.ErrAudioNotFound):
		return http.StatusNotFound, "audio_not_found"
	case errors.Is(err, scheduler.ErrRuleNotFound):
		return http.StatusNotFound, "rule_not_found"
	case errors.Is(err, catalog.ErrNotAudio):
		return http.StatusUnsupportedMediaType, "not_audio"
	case errors.Is(err, catalog.ErrEmptyPayload):
		return http.StatusBadRequest, "empty_payload"
	case errors.Is(err, catalog.ErrInvalidCategory):
		return http.StatusBadRequest, "invalid_category"
	case errors.Is(err, scheduler.ErrNoDays):
		return http.StatusBadRequest, "days_required"
	case errors.Is(err, scheduler.ErrInvalidDay):
		return http.StatusBadRequest, "invalid_day"
	case errors.Is(err, scheduler.ErrInvalidTime):
		return http.StatusBadRequest, "invalid_time"
	case errors.Is(err, scheduler.ErrInvalidRepeat):
		return http.StatusBadRequest, "invalid_repeat"
	case errors.Is(err, scheduler.ErrInvalidInterval):
		return http.StatusBadRequest, "invalid_interval"
	case errors.Is(err, playback.ErrNeedsReload):
		return http.StatusConflict, "needs_reload"
	case errors.Is(err, playback.ErrBlocked):
		return http.StatusConflict, "playback_blocked"
	case errors.Is(err, playback.ErrNoCurrent):
		return http.StatusConflict, "no_current_audio"
	case errors.Is(err, playback.ErrInvalidVolume):
		return http.StatusBadRequest, "invalid_volume"
	case errors.Is(err, playback.ErrInvalidSeek):
		return http.StatusBadRequest, "invalid_seek"
	case errors.Is(err, panel.ErrUnknownAction):
		return http.StatusBadRequest, "unknown_action"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (a *API) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, code)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
