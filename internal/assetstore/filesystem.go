/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package assetstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/rs/zerolog"
)

const (
	payloadExt = ".audio"
	sidecarExt = ".json"
)

// sidecar is the on-disk metadata written next to each payload file.
type sidecar struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	DateStored time.Time `json:"date_stored"`
}

// FilesystemStore keeps payloads under rootDir.
type FilesystemStore struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystemStore creates the root directory if needed.
func NewFilesystemStore(rootDir string, logger zerolog.Logger) (*FilesystemStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("cannot access media root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("media root is not a directory: %s", rootDir)
	}
	return &FilesystemStore{
		rootDir: rootDir,
		logger:  logger.With().Str("component", "assetstore.fs").Logger(),
	}, nil
}

// buildPayloadPath spreads ids over two directory levels: ab/cd/<id>.
func buildPayloadPath(id string) string {
	if len(id) < 4 {
		return id
	}
	return filepath.Join(id[0:2], id[2:4], id)
}

func (s *FilesystemStore) base(id string) string {
	return filepath.Join(s.rootDir, buildPayloadPath(id))
}

func (s *FilesystemStore) Put(_ context.Context, rec models.AssetPayload) error {
	base := s.base(rec.ID)
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	meta, err := json.Marshal(sidecar{
		ID:         rec.ID,
		FileName:   rec.FileName,
		FileType:   rec.FileType,
		FileSize:   int64(len(rec.Payload)),
		DateStored: rec.DateStored,
	})
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}

	// Payload first: a sidecar without its payload would be listed by GetAll.
	if err := writeFileAtomic(base+payloadExt, rec.Payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if err := writeFileAtomic(base+sidecarExt, meta); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}

	s.logger.Debug().Str("path", base).Str("audio_id", rec.ID).Msg("payload stored")
	return nil
}

func (s *FilesystemStore) Get(_ context.Context, id string) (models.AssetPayload, bool, error) {
	base := s.base(id)
	meta, err := readSidecar(base + sidecarExt)
	if errors.Is(err, fs.ErrNotExist) {
		return models.AssetPayload{}, false, nil
	}
	if err != nil {
		return models.AssetPayload{}, false, err
	}

	data, err := os.ReadFile(base + payloadExt)
	if errors.Is(err, fs.ErrNotExist) {
		return models.AssetPayload{}, false, nil
	}
	if err != nil {
		return models.AssetPayload{}, false, fmt.Errorf("read payload: %w", err)
	}

	return recordFromSidecar(meta, data), true, nil
}

func (s *FilesystemStore) GetAll(ctx context.Context) (map[string]models.AssetPayload, error) {
	out := make(map[string]models.AssetPayload)
	err := s.walkSidecars(func(meta sidecar, base string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(base + payloadExt)
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Str("audio_id", meta.ID).Msg("sidecar without payload, skipping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read payload %s: %w", meta.ID, err)
		}
		out[meta.ID] = recordFromSidecar(meta, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FilesystemStore) Delete(_ context.Context, id string) error {
	base := s.base(id)
	for _, path := range []string{base + sidecarExt, base + payloadExt} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
	}
	s.logger.Debug().Str("path", base).Msg("payload deleted")
	return nil
}

func (s *FilesystemStore) FindByFileName(_ context.Context, fileName string) ([]models.AssetPayload, error) {
	var out []models.AssetPayload
	err := s.walkSidecars(func(meta sidecar, base string) error {
		if meta.FileName != fileName {
			return nil
		}
		data, err := os.ReadFile(base + payloadExt)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("read payload %s: %w", meta.ID, err)
		}
		out = append(out, recordFromSidecar(meta, data))
		return nil
	})
	return out, err
}

func (s *FilesystemStore) Close() error { return nil }

func (s *FilesystemStore) walkSidecars(fn func(meta sidecar, base string) error) error {
	return filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, sidecarExt) {
			return nil
		}
		meta, err := readSidecar(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("unreadable sidecar, skipping")
			return nil
		}
		return fn(meta, strings.TrimSuffix(path, sidecarExt))
	})
}

func readSidecar(path string) (sidecar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sidecar{}, err
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return sidecar{}, fmt.Errorf("decode sidecar: %w", err)
	}
	return meta, nil
}

func recordFromSidecar(meta sidecar, data []byte) models.AssetPayload {
	return models.AssetPayload{
		ID:         meta.ID,
		FileName:   meta.FileName,
		FileType:   meta.FileType,
		FileSize:   int64(len(data)),
		Payload:    data,
		DateStored: meta.DateStored,
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
