/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_panel/internal/catalog"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/notice"
	"github.com/friendsincode/grimnir_panel/internal/telemetry"
)

// State of the engine.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

var allStates = []State{StateIdle, StateLoading, StatePlaying, StatePaused, StateEnded}

var (
	ErrNotFound      = errors.New("audio not found")
	ErrNeedsReload   = errors.New("audio needs reload")
	ErrNoCurrent     = errors.New("no current audio")
	ErrInvalidVolume = errors.New("volume must be between 0 and 100")
	ErrInvalidSeek   = errors.New("seek position must be between 0 and 1")
)

// Library is the read view of the catalog the engine plays from.
type Library interface {
	Get(id string) (models.AudioAsset, bool)
	Payload(id string) (catalog.Handle, bool)
	Order() []string
}

// External receives best-effort requests for the other media player.
// Calls must not block.
type External interface {
	RequestPause()
	RequestResume()
}

// Hooks observe engine transitions. All are optional and run under the
// caller's dispatch.
type Hooks struct {
	OnNowPlaying   func(asset models.AudioAsset)
	OnStarted      func(audioID string)
	OnEnded        func(audioID string)
	OnState        func(status Status)
	OnReloadPrompt func(asset models.AudioAsset)
}

// Options configures an Engine.
type Options struct {
	External External
	Notifier notice.Notifier
	Hooks    Hooks
	// Dispatch runs device callbacks on the owner's timeline.
	Dispatch func(func())
	// Volume is the initial volume, 0-100. Zero means 100.
	Volume int
}

// Status is a snapshot of the engine for display.
type Status struct {
	State     State   `json:"state"`
	CurrentID string  `json:"current_id,omitempty"`
	Loop      bool    `json:"loop"`
	Volume    int     `json:"volume"`
	Position  float64 `json:"position"`
	Duration  float64 `json:"duration"`
}

type noExternal struct{}

func (noExternal) RequestPause()  {}
func (noExternal) RequestResume() {}

// Engine owns the output device and the playback state machine. It is not
// safe for concurrent use; callers serialize through Dispatch.
type Engine struct {
	library  Library
	device   Device
	external External
	notifier notice.Notifier
	hooks    Hooks
	dispatch func(func())
	logger   zerolog.Logger

	state   State
	current string
	loop    bool
	volume  int
	gen     uint64
}

// New creates an engine around device.
func New(library Library, device Device, logger zerolog.Logger, opts Options) *Engine {
	if opts.External == nil {
		opts.External = noExternal{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notice.Nop
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(fn func()) { fn() }
	}
	if opts.Volume <= 0 || opts.Volume > 100 {
		opts.Volume = 100
	}

	e := &Engine{
		library:  library,
		device:   device,
		external: opts.External,
		notifier: opts.Notifier,
		hooks:    opts.Hooks,
		dispatch: opts.Dispatch,
		logger:   logger.With().Str("component", "playback").Logger(),
		state:    StateIdle,
		volume:   opts.Volume,
	}
	device.SetVolume(float64(e.volume) / 100)
	e.recordState()
	return e
}

// SetHooks replaces the transition observers.
func (e *Engine) SetHooks(h Hooks) {
	e.hooks = h
}

// SetDispatch replaces the callback dispatcher.
func (e *Engine) SetDispatch(fn func(func())) {
	e.dispatch = fn
}

// SetExternal replaces the external media collaborator.
func (e *Engine) SetExternal(x External) {
	if x == nil {
		x = noExternal{}
	}
	e.external = x
}

// State returns the current state.
func (e *Engine) State() State { return e.state }

// Current returns the selected audio id, if any.
func (e *Engine) Current() string { return e.current }

// Status reports the engine state with device position.
func (e *Engine) Status() Status {
	st := Status{
		State:     e.state,
		CurrentID: e.current,
		Loop:      e.loop,
		Volume:    e.volume,
	}
	if e.state != StateIdle {
		st.Position = e.device.Position().Seconds()
		st.Duration = e.device.Length().Seconds()
	}
	return st
}

// Play selects id and starts it from the beginning.
func (e *Engine) Play(id string) error {
	asset, ok := e.library.Get(id)
	if !ok {
		return ErrNotFound
	}

	handle, ok := e.library.Payload(id)
	if asset.NeedsReload || !ok {
		e.promptReload(asset)
		return ErrNeedsReload
	}

	e.external.RequestPause()

	e.gen++
	gen := e.gen
	e.current = id
	e.setState(StateLoading)
	if e.hooks.OnNowPlaying != nil {
		e.hooks.OnNowPlaying(asset)
	}

	src := Source{
		AudioID:  id,
		FileName: handle.FileName,
		FileType: handle.FileType,
		Data:     handle.Data,
		Duration: asset.Duration,
	}
	if err := e.device.Load(src, e.endHandler(gen)); err != nil {
		return e.startFailed(id, err)
	}
	e.device.SetVolume(float64(e.volume) / 100)

	if err := e.device.Start(); err != nil {
		return e.startFailed(id, err)
	}

	telemetry.PlaybackStartsTotal.WithLabelValues("ok").Inc()
	e.logger.Info().Str("audio_id", id).Str("name", asset.DisplayName()).Msg("playback started")
	e.setState(StatePlaying)
	if e.hooks.OnStarted != nil {
		e.hooks.OnStarted(id)
	}
	return nil
}

func (e *Engine) promptReload(asset models.AudioAsset) {
	telemetry.PlaybackStartsTotal.WithLabelValues("needs_reload").Inc()
	e.notifier.Notify(notice.Notice{
		Severity: notice.SeverityWarning,
		Message:  fmt.Sprintf("%q needs to be reloaded before it can play", asset.DisplayName()),
		AudioID:  asset.ID,
	})
	if e.hooks.OnReloadPrompt != nil {
		e.hooks.OnReloadPrompt(asset)
	}
}

func (e *Engine) startFailed(id string, err error) error {
	switch {
	case errors.Is(err, ErrAborted):
		telemetry.PlaybackStartsTotal.WithLabelValues("aborted").Inc()
		e.logger.Debug().Str("audio_id", id).Msg("playback start superseded")
		return nil
	case errors.Is(err, ErrBlocked):
		telemetry.PlaybackStartsTotal.WithLabelValues("blocked").Inc()
		e.logger.Warn().Str("audio_id", id).Msg("playback blocked")
		e.notifier.Notify(notice.Notice{
			Severity: notice.SeverityWarning,
			Message:  "Playback was blocked by the system. Press play to start it.",
			AudioID:  id,
		})
		e.setState(StatePaused)
		e.external.RequestResume()
		return ErrBlocked
	default:
		telemetry.PlaybackStartsTotal.WithLabelValues("error").Inc()
		e.logger.Error().Err(err).Str("audio_id", id).Msg("playback failed to start")
		e.gen++
		e.device.Stop()
		e.setState(StateIdle)
		e.external.RequestResume()
		return fmt.Errorf("start %s: %w", id, err)
	}
}

func (e *Engine) endHandler(gen uint64) func() {
	return func() {
		e.dispatch(func() { e.handleEnd(gen) })
	}
}

func (e *Engine) handleEnd(gen uint64) {
	if gen != e.gen || e.state != StatePlaying {
		return
	}
	id := e.current

	if e.loop {
		if err := e.device.Seek(0); err == nil {
			if err := e.device.Start(); err == nil {
				e.logger.Debug().Str("audio_id", id).Msg("looping")
				return
			}
		}
		e.logger.Warn().Str("audio_id", id).Msg("loop restart failed")
	}

	e.logger.Info().Str("audio_id", id).Msg("playback ended")
	e.setState(StateEnded)
	e.external.RequestResume()
	if e.hooks.OnEnded != nil {
		e.hooks.OnEnded(id)
	}
}

// TogglePlayPause plays the first entry when nothing is selected, pauses
// while playing, and otherwise resumes or replays the current entry.
func (e *Engine) TogglePlayPause() error {
	if e.current == "" {
		order := e.library.Order()
		if len(order) == 0 {
			return ErrNoCurrent
		}
		return e.Play(order[0])
	}

	switch e.state {
	case StatePlaying, StateLoading:
		return e.Pause()
	default:
		return e.Resume()
	}
}

// Pause pauses output and lets the external player resume.
func (e *Engine) Pause() error {
	if e.state != StatePlaying && e.state != StateLoading {
		return nil
	}
	e.device.Pause()
	e.setState(StatePaused)
	e.external.RequestResume()
	return nil
}

// Resume continues a paused track, or replays the current one from the
// start when it is idle or ended.
func (e *Engine) Resume() error {
	switch e.state {
	case StatePlaying, StateLoading:
		return nil
	case StatePaused:
		e.external.RequestPause()
		if err := e.device.Resume(); err != nil {
			return e.startFailed(e.current, err)
		}
		e.setState(StatePlaying)
		return nil
	}
	if e.current == "" {
		return ErrNoCurrent
	}
	return e.Play(e.current)
}

// Stop halts output and keeps the selection.
func (e *Engine) Stop() {
	wasActive := e.state == StatePlaying || e.state == StateLoading
	e.gen++
	e.device.Stop()
	if e.state != StateIdle {
		e.setState(StateIdle)
	}
	if wasActive {
		e.external.RequestResume()
	}
}

// StopIfCurrent stops and clears the selection when id is current.
func (e *Engine) StopIfCurrent(id string) bool {
	if e.current == "" || e.current != id {
		return false
	}
	e.Stop()
	e.current = ""
	e.publishState()
	return true
}

// Next moves to the following catalog entry, wrapping at the end.
func (e *Engine) Next() error {
	return e.step(1)
}

// Previous moves to the preceding catalog entry, wrapping at the start.
func (e *Engine) Previous() error {
	return e.step(-1)
}

// step moves the selection exactly one entry in catalog order. A target
// that needs reload becomes current without loading; output stops and the
// operator is prompted to reload it.
func (e *Engine) step(dir int) error {
	order := e.library.Order()
	if len(order) == 0 || e.current == "" {
		return nil
	}

	k := len(order)
	idx := -1
	for i, id := range order {
		if id == e.current {
			idx = i
			break
		}
	}
	if idx < 0 {
		// The current entry is gone; start from the matching end.
		if dir > 0 {
			idx = k - 1
		} else {
			idx = 0
		}
	}

	target := order[((idx+dir)%k+k)%k]
	asset, ok := e.library.Get(target)
	if !ok {
		return ErrNotFound
	}
	if _, playable := e.library.Payload(target); playable && !asset.NeedsReload {
		return e.Play(target)
	}
	e.selectPending(asset)
	return nil
}

func (e *Engine) selectPending(asset models.AudioAsset) {
	wasActive := e.state == StatePlaying || e.state == StateLoading
	e.gen++
	e.device.Stop()
	e.current = asset.ID
	e.state = StateIdle
	e.recordState()
	if wasActive {
		e.external.RequestResume()
	}
	if e.hooks.OnNowPlaying != nil {
		e.hooks.OnNowPlaying(asset)
	}
	e.publishState()
	e.promptReload(asset)
	e.logger.Info().Str("audio_id", asset.ID).Msg("selected entry needs reload")
}

// SetLoop toggles restart on end of track.
func (e *Engine) SetLoop(loop bool) {
	e.loop = loop
	e.publishState()
}

// Loop reports whether loop is on.
func (e *Engine) Loop() bool { return e.loop }

// SetVolume sets output volume, 0-100.
func (e *Engine) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return ErrInvalidVolume
	}
	e.volume = v
	e.device.SetVolume(float64(v) / 100)
	e.publishState()
	return nil
}

// Volume returns the output volume, 0-100.
func (e *Engine) Volume() int { return e.volume }

// Seek moves to a fraction of the current track's duration.
func (e *Engine) Seek(fraction float64) error {
	if fraction < 0 || fraction > 1 {
		return ErrInvalidSeek
	}
	if e.current == "" || e.state == StateIdle {
		return ErrNoCurrent
	}
	pos := time.Duration(fraction * float64(e.device.Length()))
	if err := e.device.Seek(pos); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	e.publishState()
	return nil
}

// RestoreCurrent selects id without playing it.
func (e *Engine) RestoreCurrent(id string) {
	if id == "" {
		return
	}
	if _, ok := e.library.Get(id); !ok {
		e.logger.Debug().Str("audio_id", id).Msg("saved current audio no longer exists")
		return
	}
	e.current = id
	e.publishState()
}

// Close releases the device.
func (e *Engine) Close() error {
	e.gen++
	return e.device.Close()
}

func (e *Engine) setState(s State) {
	e.state = s
	e.recordState()
	e.publishState()
}

func (e *Engine) recordState() {
	for _, s := range allStates {
		v := 0.0
		if s == e.state {
			v = 1
		}
		telemetry.PlaybackState.WithLabelValues(string(s)).Set(v)
	}
}

func (e *Engine) publishState() {
	if e.hooks.OnState != nil {
		e.hooks.OnState(e.Status())
	}
}
