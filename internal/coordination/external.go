/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package coordination pauses and resumes another media player around panel
// playback and publishes now-playing metadata.
package coordination

import "context"

// ExternalPlayer controls a media player the panel does not own. Both calls
// are best effort: false means nothing was paused or resumed.
type ExternalPlayer interface {
	Name() string
	RequestPause(ctx context.Context) bool
	RequestResume(ctx context.Context) bool
}

// Noop is used when no external player is configured.
type Noop struct{}

func (Noop) Name() string                       { return "none" }
func (Noop) RequestPause(context.Context) bool  { return false }
func (Noop) RequestResume(context.Context) bool { return false }
