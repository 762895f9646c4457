/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package assetstore keeps uploaded audio payloads, keyed by asset id and
// independent of catalog metadata.
package assetstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/telemetry"
)

// ErrUnavailable marks backend failures (store not initialised, quota, network).
// Absence of a payload is never reported as an error.
var ErrUnavailable = errors.New("asset store unavailable")

// ErrInvalidID is returned for ids that cannot be used as storage keys.
var ErrInvalidID = errors.New("invalid asset id")

// Store is durable id -> payload storage.
type Store interface {
	// Put inserts or replaces the payload for rec.ID.
	Put(ctx context.Context, rec models.AssetPayload) error
	// Get returns found=false with a nil error when nothing is stored for id.
	Get(ctx context.Context, id string) (models.AssetPayload, bool, error)
	GetAll(ctx context.Context) (map[string]models.AssetPayload, error)
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
	FindByFileName(ctx context.Context, fileName string) ([]models.AssetPayload, error)
	Close() error
}

// OpError describes a failed store operation. It matches ErrUnavailable.
type OpError struct {
	Op      string
	Backend string
	ID      string
	Err     error
}

func (e *OpError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("asset store %s %s (%s): %v", e.Op, e.ID, e.Backend, e.Err)
	}
	return fmt.Sprintf("asset store %s (%s): %v", e.Op, e.Backend, e.Err)
}

func (e *OpError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// NewRecord builds a payload record stamped with now.
func NewRecord(id, fileName, fileType string, payload []byte, now time.Time) models.AssetPayload {
	return models.AssetPayload{
		ID:         id,
		FileName:   fileName,
		FileType:   fileType,
		FileSize:   int64(len(payload)),
		Payload:    payload,
		DateStored: now.UTC(),
	}
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// instrumented decorates a backend with metrics and uniform error wrapping.
type instrumented struct {
	next    Store
	backend string
}

// Instrument wraps s so every call is timed and failures become *OpError.
func Instrument(s Store, backend string) Store {
	return &instrumented{next: s, backend: backend}
}

func (i *instrumented) observe(op, id string, start time.Time, err error) error {
	telemetry.AssetStoreDuration.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}
	telemetry.AssetStoreErrorsTotal.WithLabelValues(i.backend, op).Inc()
	var opErr *OpError
	if errors.As(err, &opErr) || errors.Is(err, ErrInvalidID) {
		return err
	}
	return &OpError{Op: op, Backend: i.backend, ID: id, Err: err}
}

func (i *instrumented) Put(ctx context.Context, rec models.AssetPayload) error {
	start := time.Now()
	if err := validateID(rec.ID); err != nil {
		return i.observe("put", rec.ID, start, err)
	}
	return i.observe("put", rec.ID, start, i.next.Put(ctx, rec))
}

func (i *instrumented) Get(ctx context.Context, id string) (models.AssetPayload, bool, error) {
	start := time.Now()
	if err := validateID(id); err != nil {
		return models.AssetPayload{}, false, i.observe("get", id, start, err)
	}
	rec, ok, err := i.next.Get(ctx, id)
	return rec, ok, i.observe("get", id, start, err)
}

func (i *instrumented) GetAll(ctx context.Context) (map[string]models.AssetPayload, error) {
	start := time.Now()
	all, err := i.next.GetAll(ctx)
	return all, i.observe("get_all", "", start, err)
}

func (i *instrumented) Delete(ctx context.Context, id string) error {
	start := time.Now()
	if err := validateID(id); err != nil {
		return i.observe("delete", id, start, err)
	}
	return i.observe("delete", id, start, i.next.Delete(ctx, id))
}

func (i *instrumented) FindByFileName(ctx context.Context, fileName string) ([]models.AssetPayload, error) {
	start := time.Now()
	recs, err := i.next.FindByFileName(ctx, fileName)
	return recs, i.observe("find_by_file_name", "", start, err)
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
