/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package speaker plays sources on the host audio output through beep.
package speaker

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_panel/internal/media"
	"github.com/friendsincode/grimnir_panel/internal/playback"
)

// DefaultSampleRate is the output rate every source is resampled to.
const DefaultSampleRate = 44100

const resampleQuality = 4

var _ playback.Device = (*Device)(nil)

// Device drives the process-wide beep speaker. Only one may exist.
type Device struct {
	logger     zerolog.Logger
	sampleRate beep.SampleRate

	mu       sync.Mutex
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	onEnd    func()
	level    float64
	epoch    uint64
	drained  bool
}

// New initializes the speaker. bufferSize bounds output latency.
func New(sampleRate int, bufferSize time.Duration, logger zerolog.Logger) (*Device, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if bufferSize <= 0 {
		bufferSize = 100 * time.Millisecond
	}
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(bufferSize)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &Device{
		logger:     logger.With().Str("component", "speaker").Logger(),
		sampleRate: sr,
		level:      1,
	}, nil
}

// Load decodes src and queues it paused. onEnd runs on its own goroutine.
func (d *Device) Load(src playback.Source, onEnd func()) error {
	streamer, format, err := media.Decode(src.Data, src.FileName)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()

	d.streamer = streamer
	d.format = format
	d.onEnd = onEnd
	d.ctrl = &beep.Ctrl{Streamer: streamer, Paused: true}
	d.volume = &effects.Volume{Streamer: d.ctrl, Base: 2}
	applyLevel(d.volume, d.level)
	d.queueLocked()

	d.logger.Debug().
		Str("audio_id", src.AudioID).
		Int("sample_rate", int(format.SampleRate)).
		Int("channels", format.NumChannels).
		Msg("source loaded")
	return nil
}

// queueLocked hands the loaded chain to the mixer.
func (d *Device) queueLocked() {
	d.epoch++
	epoch := d.epoch
	d.drained = false

	var out beep.Streamer = d.volume
	if d.format.SampleRate != d.sampleRate {
		out = beep.Resample(resampleQuality, d.format.SampleRate, d.sampleRate, d.volume)
	}
	speaker.Play(beep.Seq(out, beep.Callback(func() {
		// The mixer holds the speaker lock here.
		go d.ended(epoch)
	})))
}

func (d *Device) ended(epoch uint64) {
	d.mu.Lock()
	if d.epoch != epoch {
		d.mu.Unlock()
		return
	}
	d.drained = true
	onEnd := d.onEnd
	d.mu.Unlock()

	if onEnd != nil {
		onEnd()
	}
}

func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctrl == nil {
		return playback.ErrNothingLoaded
	}
	if d.drained {
		speaker.Lock()
		err := d.streamer.Seek(0)
		speaker.Unlock()
		if err != nil {
			return fmt.Errorf("rewind: %w", err)
		}
		d.queueLocked()
	}
	speaker.Lock()
	d.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (d *Device) Resume() error {
	return d.Start()
}

func (d *Device) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctrl == nil {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
}

func (d *Device) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

func (d *Device) Seek(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streamer == nil {
		return playback.ErrNothingLoaded
	}
	n := d.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if n > d.streamer.Len() {
		n = d.streamer.Len()
	}
	speaker.Lock()
	err := d.streamer.Seek(n)
	speaker.Unlock()
	return err
}

func (d *Device) SetVolume(level float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.level = level
	if d.volume == nil {
		return
	}
	speaker.Lock()
	applyLevel(d.volume, level)
	speaker.Unlock()
}

func (d *Device) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streamer == nil {
		return 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	return d.format.SampleRate.D(d.streamer.Position())
}

func (d *Device) Length() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streamer == nil {
		return 0
	}
	return d.format.SampleRate.D(d.streamer.Len())
}

func (d *Device) Close() error {
	d.Stop()
	speaker.Close()
	return nil
}

func (d *Device) clearLocked() {
	d.epoch++
	speaker.Clear()
	if d.streamer != nil {
		if err := d.streamer.Close(); err != nil {
			d.logger.Debug().Err(err).Msg("close streamer")
		}
	}
	d.streamer = nil
	d.ctrl = nil
	d.volume = nil
	d.onEnd = nil
	d.drained = false
}

// applyLevel maps a linear 0..1 level onto beep's base-2 volume.
func applyLevel(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = math.Log2(math.Min(level, 1))
}
