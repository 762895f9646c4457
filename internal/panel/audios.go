/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package panel

import (
	"context"

	"github.com/friendsincode/grimnir_panel/internal/catalog"
	"github.com/friendsincode/grimnir_panel/internal/media"
	"github.com/friendsincode/grimnir_panel/internal/models"
)

// Audios returns the catalog filtered by search and category. Empty
// arguments fall back to the stored filter.
func (p *Panel) Audios(search, category string) []models.AudioAsset {
	p.mu.Lock()
	defer p.mu.Unlock()
	if search == "" && category == "" {
		return p.catalog.Visible()
	}
	if category == "" {
		category = models.CategoryAll
	}
	return p.catalog.Filtered(search, category)
}

// Audio returns one entry.
func (p *Panel) Audio(id string) (models.AudioAsset, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.catalog.Get(id)
}

// Filter returns the stored list filter.
func (p *Panel) Filter() catalog.Filter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.catalog.Filter()
}

// SetFilter replaces the stored list filter.
func (p *Panel) SetFilter(f catalog.Filter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.catalog.SetFilter(f)
}

// AddAudios adds every upload and reports the rejected ones.
func (p *Panel) AddAudios(ctx context.Context, items []catalog.NewAsset) (catalog.BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return catalog.BatchResult{}, err
	}
	return p.catalog.AddBatch(ctx, items), nil
}

// UpdateAudio edits metadata and optionally replaces the payload.
func (p *Panel) UpdateAudio(ctx context.Context, id string, patch catalog.Patch) (models.AudioAsset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return models.AudioAsset{}, err
	}
	return p.catalog.Update(ctx, id, patch)
}

// RemoveAudio stops it if it is playing, drops a repeat sequence bound to
// it, deletes its payload and removes the record. Schedule rules pointing at
// it are kept and skipped when due.
func (p *Panel) RemoveAudio(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	if _, ok := p.catalog.Get(id); !ok {
		return catalog.ErrNotFound
	}

	if p.engine.StopIfCurrent(id) {
		p.session.Clear()
	}
	p.scheduler.CancelForAudio(id)
	if _, err := p.catalog.Remove(ctx, id); err != nil {
		return err
	}
	p.persist()
	return nil
}

// ReloadAudio reattaches a payload to one entry.
func (p *Panel) ReloadAudio(ctx context.Context, id string, u catalog.Upload) (models.AudioAsset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return models.AudioAsset{}, err
	}
	return p.catalog.ReloadPayload(ctx, id, u)
}

// BulkReload matches uploads to entries that need a reload.
func (p *Panel) BulkReload(ctx context.Context, uploads []catalog.Upload, confirm catalog.ConfirmFunc) (catalog.BulkResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return catalog.BulkResult{}, err
	}
	return p.catalog.BulkReload(ctx, uploads, confirm), nil
}

// Payload returns the playable payload of id.
func (p *Panel) Payload(id string) (catalog.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.catalog.Payload(id)
}

// Artwork returns the picture embedded in id's payload.
func (p *Panel) Artwork(id string) (media.Artwork, error) {
	h, ok := p.Payload(id)
	if !ok {
		return media.Artwork{}, catalog.ErrNotFound
	}
	return media.EmbeddedArtwork(h.Data)
}
