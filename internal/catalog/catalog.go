/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog keeps the ordered list of audio assets and resolves their
// payloads from the Asset Store.
package catalog

import (
	"errors"
	"strings"

	"github.com/facebookgo/clock"
	"github.com/friendsincode/grimnir_panel/internal/assetstore"
	"github.com/friendsincode/grimnir_panel/internal/media"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/notice"
	"github.com/friendsincode/grimnir_panel/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound        = errors.New("audio not found")
	ErrNotAudio        = errors.New("file is not audio")
	ErrEmptyPayload    = errors.New("empty payload")
	ErrInvalidCategory = errors.New("invalid category")
)

// ProbeFunc returns the duration of a payload in seconds.
type ProbeFunc func(data []byte, fileName string) (float64, error)

// Handle is a session-scoped playable reference to a stored payload.
type Handle struct {
	AudioID  string
	FileName string
	FileType string
	Data     []byte
}

// Filter is the current list filter.
type Filter struct {
	Search   string `json:"search"`
	Category string `json:"category"`
}

// DefaultFilter shows the whole catalog.
func DefaultFilter() Filter {
	return Filter{Search: "", Category: models.CategoryAll}
}

// Options configures a Catalog.
type Options struct {
	Clock    clock.Clock
	Probe    ProbeFunc
	NewID    func() string
	Notifier notice.Notifier
	// OnChange runs after every in-memory mutation.
	OnChange func()
}

// Catalog is not safe for concurrent use; the owning panel serializes access.
type Catalog struct {
	store  assetstore.Store
	logger zerolog.Logger

	clock    clock.Clock
	probe    ProbeFunc
	newID    func() string
	notifier notice.Notifier
	onChange func()

	entries []models.AudioAsset
	handles map[string]Handle
	filter  Filter
}

// New returns an empty catalog backed by store.
func New(store assetstore.Store, logger zerolog.Logger, opts Options) *Catalog {
	c := &Catalog{
		store:    store,
		logger:   logger.With().Str("component", "catalog").Logger(),
		clock:    opts.Clock,
		probe:    opts.Probe,
		newID:    opts.NewID,
		notifier: opts.Notifier,
		onChange: opts.OnChange,
		handles:  make(map[string]Handle),
		filter:   DefaultFilter(),
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.probe == nil {
		c.probe = media.ProbeDuration
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.notifier == nil {
		c.notifier = notice.Nop
	}
	return c
}

// SetOnChange replaces the mutation hook.
func (c *Catalog) SetOnChange(fn func()) {
	c.onChange = fn
}

func (c *Catalog) changed() {
	ready := len(c.handles)
	telemetry.CatalogAssets.WithLabelValues("ready").Set(float64(ready))
	telemetry.CatalogAssets.WithLabelValues("needs_reload").Set(float64(len(c.entries) - ready))
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Catalog) notify(severity notice.Severity, audioID, message string) {
	c.notifier.Notify(notice.Notice{Severity: severity, Message: message, AudioID: audioID})
}

func (c *Catalog) indexOf(id string) int {
	for i := range c.entries {
		if c.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) view(a models.AudioAsset) models.AudioAsset {
	_, ok := c.handles[a.ID]
	a.NeedsReload = !ok
	return a
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Get returns the entry for id with NeedsReload resolved.
func (c *Catalog) Get(id string) (models.AudioAsset, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return models.AudioAsset{}, false
	}
	return c.view(c.entries[i]), true
}

// List returns every entry in display order.
func (c *Catalog) List() []models.AudioAsset {
	out := make([]models.AudioAsset, len(c.entries))
	for i, a := range c.entries {
		out[i] = c.view(a)
	}
	return out
}

// Order returns entry ids in display order.
func (c *Catalog) Order() []string {
	out := make([]string, len(c.entries))
	for i, a := range c.entries {
		out[i] = a.ID
	}
	return out
}

// Payload returns the playable handle for id.
func (c *Catalog) Payload(id string) (Handle, bool) {
	h, ok := c.handles[id]
	return h, ok
}

// NeedsReload reports whether id exists but has no resolvable payload.
// Unknown ids report false.
func (c *Catalog) NeedsReload(id string) bool {
	if c.indexOf(id) < 0 {
		return false
	}
	_, ok := c.handles[id]
	return !ok
}

// PendingCount returns how many entries need a payload.
func (c *Catalog) PendingCount() int {
	return len(c.entries) - len(c.handles)
}

// Metadata returns the persisted form of every entry.
func (c *Catalog) Metadata() []models.AudioAsset {
	out := make([]models.AudioAsset, len(c.entries))
	copy(out, c.entries)
	for i := range out {
		out[i].NeedsReload = false
	}
	return out
}

// Filtered matches display names case-insensitively and categories exactly.
// An empty or "all" category passes everything.
func (c *Catalog) Filtered(search, category string) []models.AudioAsset {
	term := strings.ToLower(strings.TrimSpace(search))
	category = strings.ToLower(strings.TrimSpace(category))
	passAll := category == "" || category == models.CategoryAll

	var out []models.AudioAsset
	for _, a := range c.entries {
		if !passAll && string(a.Category) != category {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(a.DisplayName()), term) {
			continue
		}
		out = append(out, c.view(a))
	}
	return out
}

// Filter returns the current filter state.
func (c *Catalog) Filter() Filter {
	return c.filter
}

// SetFilter replaces the filter state.
func (c *Catalog) SetFilter(f Filter) error {
	cat := strings.ToLower(strings.TrimSpace(f.Category))
	if cat == "" {
		cat = models.CategoryAll
	}
	if cat != models.CategoryAll {
		if _, ok := models.ParseCategory(cat); !ok {
			return ErrInvalidCategory
		}
	}
	c.filter = Filter{Search: f.Search, Category: cat}
	return nil
}

// Visible applies the current filter.
func (c *Catalog) Visible() []models.AudioAsset {
	return c.Filtered(c.filter.Search, c.filter.Category)
}
