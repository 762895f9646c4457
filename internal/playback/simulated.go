/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/friendsincode/grimnir_panel/internal/media"
)

// ErrNothingLoaded is returned by device operations that need a source.
var ErrNothingLoaded = errors.New("no source loaded")

// SimulatedDevice plays silence on a clock. It is used headless and in tests.
type SimulatedDevice struct {
	clock clock.Clock

	mu        sync.Mutex
	src       Source
	loaded    bool
	playing   bool
	length    time.Duration
	offset    time.Duration
	startedAt time.Time
	timer     *clock.Timer
	epoch     uint64
	onEnd     func()
	volume    float64
	startErr  error
	starts    int
}

// NewSimulatedDevice returns a device driven by clk.
func NewSimulatedDevice(clk clock.Clock) *SimulatedDevice {
	if clk == nil {
		clk = clock.New()
	}
	return &SimulatedDevice{clock: clk, volume: 1}
}

// FailNextStart makes the next Start or Resume return err.
func (d *SimulatedDevice) FailNextStart(err error) {
	d.mu.Lock()
	d.startErr = err
	d.mu.Unlock()
}

// Starts counts successful Start and Resume calls.
func (d *SimulatedDevice) Starts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

// Playing reports whether output is running.
func (d *SimulatedDevice) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// Volume returns the last level set.
func (d *SimulatedDevice) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

// Loaded returns the loaded source id.
func (d *SimulatedDevice) Loaded() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return ""
	}
	return d.src.AudioID
}

func (d *SimulatedDevice) Load(src Source, onEnd func()) error {
	length := time.Duration(src.Duration * float64(time.Second))
	if length <= 0 {
		secs, err := media.ProbeDuration(src.Data, src.FileName)
		if err != nil {
			return err
		}
		length = time.Duration(secs * float64(time.Second))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimerLocked()
	d.src = src
	d.loaded = true
	d.playing = false
	d.length = length
	d.offset = 0
	d.onEnd = onEnd
	return nil
}

func (d *SimulatedDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return ErrNothingLoaded
	}
	if err := d.startErr; err != nil {
		d.startErr = nil
		return err
	}
	if d.playing {
		return nil
	}
	if d.offset >= d.length {
		d.offset = 0
	}
	d.playing = true
	d.starts++
	d.startedAt = d.clock.Now()
	d.scheduleLocked()
	return nil
}

func (d *SimulatedDevice) Resume() error {
	return d.Start()
}

func (d *SimulatedDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.playing {
		return
	}
	d.offset = d.positionLocked()
	d.playing = false
	d.stopTimerLocked()
}

func (d *SimulatedDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimerLocked()
	d.playing = false
	d.loaded = false
	d.offset = 0
	d.onEnd = nil
}

func (d *SimulatedDevice) Seek(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return ErrNothingLoaded
	}
	if pos < 0 {
		pos = 0
	}
	if pos > d.length {
		pos = d.length
	}
	d.offset = pos
	if d.playing {
		d.startedAt = d.clock.Now()
		d.stopTimerLocked()
		d.scheduleLocked()
	}
	return nil
}

func (d *SimulatedDevice) SetVolume(level float64) {
	d.mu.Lock()
	d.volume = level
	d.mu.Unlock()
}

func (d *SimulatedDevice) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionLocked()
}

func (d *SimulatedDevice) Length() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.length
}

func (d *SimulatedDevice) Close() error {
	d.Stop()
	return nil
}

func (d *SimulatedDevice) positionLocked() time.Duration {
	pos := d.offset
	if d.playing {
		pos += d.clock.Now().Sub(d.startedAt)
	}
	if pos > d.length {
		pos = d.length
	}
	return pos
}

func (d *SimulatedDevice) scheduleLocked() {
	d.epoch++
	epoch := d.epoch
	d.timer = d.clock.AfterFunc(d.length-d.offset, func() {
		d.mu.Lock()
		if d.epoch != epoch || !d.playing {
			d.mu.Unlock()
			return
		}
		d.playing = false
		d.offset = d.length
		d.timer = nil
		onEnd := d.onEnd
		d.mu.Unlock()

		if onEnd != nil {
			onEnd()
		}
	})
}

func (d *SimulatedDevice) stopTimerLocked() {
	d.epoch++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
