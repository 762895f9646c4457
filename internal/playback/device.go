/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"errors"
	"time"
)

var (
	// ErrAborted means a start was superseded by a newer request.
	ErrAborted = errors.New("playback aborted by a newer request")
	// ErrBlocked means the platform refused to start output.
	ErrBlocked = errors.New("playback blocked by policy")
)

// Source is a decoded-on-demand payload handed to a device.
type Source struct {
	AudioID  string
	FileName string
	FileType string
	Data     []byte
	// Duration in seconds, 0 when unknown.
	Duration float64
}

// Device is the single audio output. Load replaces whatever was loaded
// before. onEnd is invoked from the device's own goroutine when the source
// finishes naturally, never for Stop or a replacing Load.
type Device interface {
	Load(src Source, onEnd func()) error
	Start() error
	Pause()
	Resume() error
	Stop()
	Seek(pos time.Duration) error
	SetVolume(level float64)
	Position() time.Duration
	Length() time.Duration
	Close() error
}
