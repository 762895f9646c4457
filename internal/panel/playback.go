/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package panel

import (
	"errors"
	"fmt"

	"github.com/friendsincode/grimnir_panel/internal/playback"
)

// ErrUnknownAction is returned for an unsupported media session action.
var ErrUnknownAction = errors.New("unknown media session action")

// Media session actions.
const (
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionNext     = "next"
	ActionPrevious = "previous"
)

// Status reports the engine state.
func (p *Panel) Status() playback.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Status()
}

// Play starts id from the beginning.
func (p *Panel) Play(id string) error {
	return p.withEngine(func(e *playback.Engine) error { return e.Play(id) })
}

// TogglePlayPause is the main play button.
func (p *Panel) TogglePlayPause() error {
	return p.withEngine((*playback.Engine).TogglePlayPause)
}

// Pause pauses the current track.
func (p *Panel) Pause() error {
	return p.withEngine((*playback.Engine).Pause)
}

// Resume continues or replays the current track.
func (p *Panel) Resume() error {
	return p.withEngine((*playback.Engine).Resume)
}

// Stop halts playback and abandons a repeat sequence, which would otherwise
// wait for an end that never comes.
func (p *Panel) Stop() error {
	return p.withEngine(func(e *playback.Engine) error {
		p.scheduler.CancelSequence()
		e.Stop()
		return nil
	})
}

// Next moves to the following entry.
func (p *Panel) Next() error {
	return p.withEngine(func(e *playback.Engine) error { return p.navigate(e, e.Next) })
}

// Previous moves to the preceding entry.
func (p *Panel) Previous() error {
	return p.withEngine(func(e *playback.Engine) error { return p.navigate(e, e.Previous) })
}

// navigate abandons a repeat sequence when the move left nothing playing,
// as happens when the new selection needs reload.
func (p *Panel) navigate(e *playback.Engine, move func() error) error {
	err := move()
	if e.State() == playback.StateIdle {
		p.scheduler.CancelSequence()
	}
	return err
}

// SetLoop toggles looping of the current track.
func (p *Panel) SetLoop(loop bool) error {
	return p.withEngine(func(e *playback.Engine) error {
		e.SetLoop(loop)
		return nil
	})
}

// SetVolume sets the output volume, 0-100.
func (p *Panel) SetVolume(v int) error {
	return p.withEngine(func(e *playback.Engine) error { return e.SetVolume(v) })
}

// Seek moves to a fraction of the current track.
func (p *Panel) Seek(fraction float64) error {
	return p.withEngine(func(e *playback.Engine) error { return e.Seek(fraction) })
}

// MediaSessionAction handles a transport request from the OS media controls
// the same way as the matching panel button.
func (p *Panel) MediaSessionAction(action string) error {
	switch action {
	case ActionPlay:
		return p.withEngine(func(e *playback.Engine) error {
			if e.State() == playback.StatePlaying {
				return nil
			}
			return e.TogglePlayPause()
		})
	case ActionPause:
		return p.Pause()
	case ActionNext:
		return p.Next()
	case ActionPrevious:
		return p.Previous()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (p *Panel) withEngine(fn func(*playback.Engine) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	return fn(p.engine)
}
