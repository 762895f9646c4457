/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/friendsincode/grimnir_panel/internal/assetstore"
	"github.com/friendsincode/grimnir_panel/internal/media"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/notice"
	"github.com/friendsincode/grimnir_panel/internal/telemetry"
)

// Upload is a payload supplied by the operator.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// NewAsset is the metadata accompanying an added upload.
type NewAsset struct {
	Upload
	CustomName string
	Category   string
	ImageURL   string
}

// Patch lists the fields to change. Nil fields are left alone.
type Patch struct {
	CustomName *string
	Category   *string
	ImageURL   *string
	Payload    *Upload
}

// Rejection reports a file that was not processed.
type Rejection struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// BatchResult summarizes AddBatch.
type BatchResult struct {
	Added    []models.AudioAsset `json:"added"`
	Rejected []Rejection         `json:"rejected"`
}

// ReconcileSummary counts entries after Reconcile.
type ReconcileSummary struct {
	Ready       int `json:"ready"`
	NeedsReload int `json:"needs_reload"`
}

// BulkResult summarizes BulkReload.
type BulkResult struct {
	Reloaded  int         `json:"reloaded"`
	Pending   int         `json:"pending"`
	Unmatched []string    `json:"unmatched"`
	Failed    []Rejection `json:"failed"`
}

// ConfirmFunc approves a fallback match of fileName to a pending entry.
type ConfirmFunc func(candidate models.AudioAsset, fileName string) bool

func rejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAudio):
		return "not_audio"
	case errors.Is(err, ErrEmptyPayload):
		return "empty_payload"
	case errors.Is(err, ErrInvalidCategory):
		return "invalid_category"
	case errors.Is(err, assetstore.ErrUnavailable):
		return "store_unavailable"
	default:
		return "failed"
	}
}

func validateUpload(u Upload) error {
	if len(u.Data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyPayload, u.FileName)
	}
	if !media.IsAudio(u.Data, u.ContentType) {
		return fmt.Errorf("%w: %s", ErrNotAudio, u.FileName)
	}
	return nil
}

// storePayload probes and stores u for id. It returns the probed duration
// and whether the payload is playable this session.
func (c *Catalog) storePayload(ctx context.Context, id string, u Upload) (float64, bool, error) {
	playable := true
	duration, err := c.probe(u.Data, u.FileName)
	if err != nil {
		c.logger.Warn().Err(err).Str("audio_id", id).Str("file_name", u.FileName).Msg("duration probe failed")
		duration = 0
		playable = false
	}

	fileType := media.ContentType(u.Data, u.ContentType)
	rec := assetstore.NewRecord(id, u.FileName, fileType, u.Data, c.clock.Now())
	if err := c.store.Put(ctx, rec); err != nil {
		c.logger.Error().Err(err).Str("audio_id", id).Msg("failed to store payload")
		delete(c.handles, id)
		return duration, false, err
	}

	if playable {
		c.handles[id] = Handle{AudioID: id, FileName: u.FileName, FileType: fileType, Data: u.Data}
	} else {
		delete(c.handles, id)
	}
	return duration, playable, nil
}

// Add validates, probes and stores a new asset and appends it to the catalog.
// A store failure still inserts the record; it then needs a reload.
func (c *Catalog) Add(ctx context.Context, in NewAsset) (models.AudioAsset, error) {
	if err := validateUpload(in.Upload); err != nil {
		telemetry.CatalogRejectedTotal.WithLabelValues(rejectionReason(err)).Inc()
		return models.AudioAsset{}, err
	}
	category, ok := models.ParseCategory(in.Category)
	if !ok {
		telemetry.CatalogRejectedTotal.WithLabelValues("invalid_category").Inc()
		return models.AudioAsset{}, fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
	}

	id := c.newID()
	duration, playable, storeErr := c.storePayload(ctx, id, in.Upload)

	asset := models.AudioAsset{
		ID:         id,
		Name:       models.StripExtension(in.FileName),
		FileName:   in.FileName,
		CustomName: in.CustomName,
		Category:   category,
		ImageURL:   in.ImageURL,
		Duration:   duration,
		Size:       int64(len(in.Data)),
		DateAdded:  c.clock.Now().UTC(),
	}
	c.entries = append(c.entries, asset)

	switch {
	case storeErr != nil:
		c.notify(notice.SeverityWarning, id, fmt.Sprintf("%q was added but could not be saved; it will need a reload after restart", asset.DisplayName()))
	case !playable:
		c.notify(notice.SeverityWarning, id, fmt.Sprintf("%q was added but its audio could not be read", asset.DisplayName()))
	}

	c.logger.Info().
		Str("audio_id", id).
		Str("file_name", in.FileName).
		Float64("duration", duration).
		Bool("needs_reload", !playable || storeErr != nil).
		Msg("audio added")

	c.changed()
	return c.view(asset), nil
}

// AddBatch adds every upload, isolating per-file failures.
func (c *Catalog) AddBatch(ctx context.Context, items []NewAsset) BatchResult {
	res := BatchResult{Added: []models.AudioAsset{}, Rejected: []Rejection{}}
	for _, item := range items {
		asset, err := c.Add(ctx, item)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{FileName: item.FileName, Reason: rejectionReason(err)})
			continue
		}
		res.Added = append(res.Added, asset)
	}
	if len(res.Rejected) > 0 {
		c.notify(notice.SeverityWarning, "", fmt.Sprintf("%d file(s) rejected", len(res.Rejected)))
	}
	return res
}

// Update applies patch to id. A new payload replaces the stored one.
func (c *Catalog) Update(ctx context.Context, id string, patch Patch) (models.AudioAsset, error) {
	i := c.indexOf(id)
	if i < 0 {
		return models.AudioAsset{}, ErrNotFound
	}
	asset := c.entries[i]

	if patch.Category != nil {
		category, ok := models.ParseCategory(*patch.Category)
		if !ok {
			return models.AudioAsset{}, fmt.Errorf("%w: %q", ErrInvalidCategory, *patch.Category)
		}
		asset.Category = category
	}
	if patch.Payload != nil {
		if err := validateUpload(*patch.Payload); err != nil {
			return models.AudioAsset{}, err
		}
	}
	if patch.CustomName != nil {
		asset.CustomName = *patch.CustomName
	}
	if patch.ImageURL != nil {
		asset.ImageURL = *patch.ImageURL
	}

	var storeErr error
	if patch.Payload != nil {
		var duration float64
		duration, _, storeErr = c.storePayload(ctx, id, *patch.Payload)
		asset.Duration = duration
		asset.FileName = patch.Payload.FileName
		asset.Size = int64(len(patch.Payload.Data))
		if storeErr != nil {
			c.notify(notice.SeverityWarning, id, fmt.Sprintf("new audio for %q could not be saved", asset.DisplayName()))
		}
	}

	c.entries[i] = asset
	c.logger.Info().Str("audio_id", id).Bool("payload", patch.Payload != nil).Msg("audio updated")
	c.changed()
	return c.view(asset), nil
}

// Remove deletes the stored payload, releases the handle and drops the record.
func (c *Catalog) Remove(ctx context.Context, id string) (models.AudioAsset, error) {
	i := c.indexOf(id)
	if i < 0 {
		return models.AudioAsset{}, ErrNotFound
	}
	asset := c.view(c.entries[i])

	if err := c.store.Delete(ctx, id); err != nil {
		c.logger.Warn().Err(err).Str("audio_id", id).Msg("failed to delete stored payload")
	}
	delete(c.handles, id)
	c.entries = append(c.entries[:i], c.entries[i+1:]...)

	c.logger.Info().Str("audio_id", id).Msg("audio removed")
	c.changed()
	return asset, nil
}

// Reconcile replaces the catalog with metas and attaches every payload the
// store still holds. A store that cannot be read leaves every entry pending.
func (c *Catalog) Reconcile(ctx context.Context, metas []models.AudioAsset) ReconcileSummary {
	payloads, err := c.store.GetAll(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read asset store, every entry needs a reload")
		c.notify(notice.SeverityError, "", "stored audio could not be read; every entry needs a reload")
		payloads = nil
	}

	c.entries = c.entries[:0]
	c.handles = make(map[string]Handle, len(payloads))
	seen := make(map[string]struct{}, len(metas))

	for _, meta := range metas {
		if meta.ID == "" {
			continue
		}
		if _, dup := seen[meta.ID]; dup {
			c.logger.Warn().Str("audio_id", meta.ID).Msg("duplicate audio id in snapshot, skipping")
			continue
		}
		seen[meta.ID] = struct{}{}

		if category, ok := models.ParseCategory(string(meta.Category)); ok {
			meta.Category = category
		} else {
			meta.Category = models.CategoryOther
		}
		meta.NeedsReload = false
		c.entries = append(c.entries, meta)

		if rec, ok := payloads[meta.ID]; ok && len(rec.Payload) > 0 {
			c.handles[meta.ID] = Handle{AudioID: meta.ID, FileName: rec.FileName, FileType: rec.FileType, Data: rec.Payload}
		}
	}

	summary := ReconcileSummary{Ready: len(c.handles), NeedsReload: len(c.entries) - len(c.handles)}
	c.logger.Info().
		Int("ready", summary.Ready).
		Int("needs_reload", summary.NeedsReload).
		Int("stored_payloads", len(payloads)).
		Msg("catalog reconciled")
	c.changed()
	return summary
}

// ReloadPayload reattaches a payload to an existing entry.
func (c *Catalog) ReloadPayload(ctx context.Context, id string, u Upload) (models.AudioAsset, error) {
	i := c.indexOf(id)
	if i < 0 {
		return models.AudioAsset{}, ErrNotFound
	}
	if err := validateUpload(u); err != nil {
		return models.AudioAsset{}, err
	}
	return c.reload(ctx, i, u)
}

func (c *Catalog) reload(ctx context.Context, i int, u Upload) (models.AudioAsset, error) {
	asset := c.entries[i]
	duration, playable, err := c.storePayload(ctx, asset.ID, u)

	asset.Size = int64(len(u.Data))
	if playable || duration > 0 {
		asset.Duration = duration
	}
	if u.FileName != "" && u.FileName != asset.FileName {
		asset.FileName = u.FileName
		asset.Name = models.StripExtension(u.FileName)
	}
	c.entries[i] = asset
	c.changed()

	if err != nil {
		c.notify(notice.SeverityWarning, asset.ID, fmt.Sprintf("%q could not be saved", asset.DisplayName()))
		return c.view(asset), err
	}
	if !playable {
		c.notify(notice.SeverityWarning, asset.ID, fmt.Sprintf("%q was saved but its audio could not be read", asset.DisplayName()))
		return c.view(asset), nil
	}
	c.notify(notice.SeveritySuccess, asset.ID, fmt.Sprintf("%q is ready to play", asset.DisplayName()))
	c.logger.Info().Str("audio_id", asset.ID).Str("file_name", u.FileName).Msg("payload reloaded")
	return c.view(asset), nil
}

// BulkReload matches uploads against pending entries. Each upload first
// tries the first pending entry (catalog order) with the same file name,
// then the first whose name or custom name equals the file name without its
// extension, if confirm approves. One bad file never aborts the batch.
func (c *Catalog) BulkReload(ctx context.Context, uploads []Upload, confirm ConfirmFunc) BulkResult {
	res := BulkResult{Unmatched: []string{}, Failed: []Rejection{}}

	for _, u := range uploads {
		if err := validateUpload(u); err != nil {
			res.Failed = append(res.Failed, Rejection{FileName: u.FileName, Reason: rejectionReason(err)})
			continue
		}

		i := c.firstPending(func(a models.AudioAsset) bool { return a.FileName == u.FileName })
		if i < 0 {
			base := models.StripExtension(u.FileName)
			i = c.firstPending(func(a models.AudioAsset) bool {
				return a.Name == base || (a.CustomName != "" && a.CustomName == base)
			})
			if i >= 0 && (confirm == nil || !confirm(c.view(c.entries[i]), u.FileName)) {
				i = -1
			}
		}
		if i < 0 {
			res.Unmatched = append(res.Unmatched, u.FileName)
			continue
		}

		asset, err := c.reload(ctx, i, u)
		if err != nil {
			res.Failed = append(res.Failed, Rejection{FileName: u.FileName, Reason: rejectionReason(err)})
			continue
		}
		if asset.NeedsReload {
			res.Failed = append(res.Failed, Rejection{FileName: u.FileName, Reason: "unreadable"})
			continue
		}
		res.Reloaded++
	}

	res.Pending = c.PendingCount()
	switch {
	case res.Reloaded == 0:
		c.notify(notice.SeverityError, "", "no matching files found")
	case res.Pending > 0:
		c.notify(notice.SeverityWarning, "", fmt.Sprintf("%d file(s) reloaded, %d still pending", res.Reloaded, res.Pending))
	default:
		c.notify(notice.SeveritySuccess, "", fmt.Sprintf("%d file(s) reloaded", res.Reloaded))
	}
	return res
}

func (c *Catalog) firstPending(match func(models.AudioAsset) bool) int {
	for i, a := range c.entries {
		if _, ok := c.handles[a.ID]; ok {
			continue
		}
		if match(a) {
			return i
		}
	}
	return -1
}
