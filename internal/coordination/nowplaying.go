/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package coordination

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/friendsincode/grimnir_panel/internal/models"
)

const (
	artistPrefix = "Grimnir Panel"
	albumName    = "Custom Announcements"
)

// Artwork is one image offered to the OS media session.
type Artwork struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

// NowPlaying is the metadata published on every track change.
type NowPlaying struct {
	AudioID  string          `json:"audio_id"`
	Title    string          `json:"title"`
	Artist   string          `json:"artist"`
	Album    string          `json:"album"`
	Category models.Category `json:"category"`
	Artwork  []Artwork       `json:"artwork"`
}

// Describe builds now-playing metadata for asset.
func Describe(asset models.AudioAsset) NowPlaying {
	return NowPlaying{
		AudioID:  asset.ID,
		Title:    asset.DisplayName(),
		Artist:   fmt.Sprintf("%s • %s", artistPrefix, asset.Category.Label()),
		Album:    albumName,
		Category: asset.Category,
		Artwork:  []Artwork{artworkFor(asset)},
	}
}

func artworkFor(asset models.AudioAsset) Artwork {
	if url := strings.TrimSpace(asset.ImageURL); url != "" {
		return Artwork{Src: url, Sizes: "512x512", Type: "image/jpeg"}
	}
	return Artwork{Src: CategoryIcon(asset.Category), Sizes: "96x96", Type: "image/svg+xml"}
}

// CategoryIcon returns a music-note SVG data URL tinted with the category color.
func CategoryIcon(c models.Category) string {
	color := strings.ReplaceAll(c.Color(), "#", "%23")
	return "data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 24 24' fill='" + color +
		"'><path d='M9 18V5l12-2v13'/><circle cx='6' cy='18' r='3'/><circle cx='18' cy='16' r='3'/></svg>"
}

// MediaSession holds the published now-playing state and forwards changes
// to a sink such as the event bus.
type MediaSession struct {
	enabled atomic.Bool
	sink    func(NowPlaying, bool)

	mu      sync.Mutex
	current *NowPlaying
}

// NewMediaSession creates a session. sink receives the metadata and whether
// a track is active; it may be nil.
func NewMediaSession(enabled bool, sink func(np NowPlaying, active bool)) *MediaSession {
	m := &MediaSession{sink: sink}
	m.enabled.Store(enabled)
	return m
}

// SetEnabled toggles publication. Disabling clears the published state.
func (m *MediaSession) SetEnabled(enabled bool) {
	if m.enabled.Swap(enabled) && !enabled {
		m.Clear()
	}
}

// Enabled reports whether publication is on.
func (m *MediaSession) Enabled() bool {
	return m.enabled.Load()
}

// Publish announces asset as the current track.
func (m *MediaSession) Publish(asset models.AudioAsset) {
	if !m.enabled.Load() {
		return
	}
	np := Describe(asset)
	m.mu.Lock()
	m.current = &np
	m.mu.Unlock()
	if m.sink != nil {
		m.sink(np, true)
	}
}

// Clear withdraws the published track.
func (m *MediaSession) Clear() {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()
	if prev != nil && m.sink != nil {
		m.sink(*prev, false)
	}
}

// Current returns the published track, if any.
func (m *MediaSession) Current() (NowPlaying, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return NowPlaying{}, false
	}
	return *m.current, true
}
