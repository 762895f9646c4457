/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/grimnir_panel/internal/catalog"
	"github.com/friendsincode/grimnir_panel/internal/media"
	"github.com/friendsincode/grimnir_panel/internal/models"
)

const multipartMemory = 32 << 20

type audioResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DisplayName   string    `json:"display_name"`
	FileName      string    `json:"file_name"`
	CustomName    string    `json:"custom_name"`
	Category      string    `json:"category"`
	CategoryLabel string    `json:"category_label"`
	ImageURL      string    `json:"image_url"`
	Duration      float64   `json:"duration"`
	Size          int64     `json:"size"`
	DateAdded     time.Time `json:"date_added"`
	NeedsReload   bool      `json:"needs_reload"`
}

func audioDTO(a models.AudioAsset) audioResponse {
	return audioResponse{
		ID:            a.ID,
		Name:          a.Name,
		DisplayName:   a.DisplayName(),
		FileName:      a.FileName,
		CustomName:    a.CustomName,
		Category:      string(a.Category),
		CategoryLabel: a.Category.Label(),
		ImageURL:      a.ImageURL,
		Duration:      a.Duration,
		Size:          a.Size,
		DateAdded:     a.DateAdded,
		NeedsReload:   a.NeedsReload,
	}
}

func audioDTOs(in []models.AudioAsset) []audioResponse {
	out := make([]audioResponse, 0, len(in))
	for _, a := range in {
		out = append(out, audioDTO(a))
	}
	return out
}

type audioPatchRequest struct {
	CustomName *string `json:"custom_name"`
	Category   *string `json:"category"`
	ImageURL   *string `json:"image_url"`
}

func (a *API) handleAudiosList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, audioDTOs(a.panel.Audios(q.Get("search"), q.Get("category"))))
}

func (a *API) handleAudioGet(w http.ResponseWriter, r *http.Request) {
	asset, ok := a.panel.Audio(chi.URLParam(r, "audioID"))
	if !ok {
		writeError(w, http.StatusNotFound, "audio_not_found")
		return
	}
	writeJSON(w, http.StatusOK, audioDTO(asset))
}

func (a *API) handleAudiosAdd(w http.ResponseWriter, r *http.Request) {
	if !a.parseMultipart(w, r) {
		return
	}
	uploads, err := formUploads(r.MultipartForm, "files", "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "file_required")
		return
	}

	category := r.FormValue("category")
	imageURL := strings.TrimSpace(r.FormValue("image_url"))
	customName := strings.TrimSpace(r.FormValue("custom_name"))
	items := make([]catalog.NewAsset, 0, len(uploads))
	for _, u := range uploads {
		item := catalog.NewAsset{Upload: u, Category: category, ImageURL: imageURL}
		if len(uploads) == 1 {
			item.CustomName = customName
		}
		items = append(items, item)
	}

	result, err := a.panel.AddAudios(r.Context(), items)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	status := http.StatusCreated
	if len(result.Added) == 0 {
		status = http.StatusUnprocessableEntity
	}
	rejected := result.Rejected
	if rejected == nil {
		rejected = []catalog.Rejection{}
	}
	writeJSON(w, status, map[string]any{
		"added":    audioDTOs(result.Added),
		"rejected": rejected,
	})
}

func (a *API) handleAudioUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "audioID")
	var patch catalog.Patch

	if isMultipart(r) {
		if !a.parseMultipart(w, r) {
			return
		}
		form := r.MultipartForm
		patch.CustomName = formField(form, "custom_name")
		patch.Category = formField(form, "category")
		patch.ImageURL = formField(form, "image_url")
		uploads, err := formUploads(form, "file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_multipart")
			return
		}
		if len(uploads) > 0 {
			patch.Payload = &uploads[0]
		}
	} else {
		var req audioPatchRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		patch.CustomName = req.CustomName
		patch.Category = req.Category
		patch.ImageURL = req.ImageURL
	}

	asset, err := a.panel.UpdateAudio(r.Context(), id, patch)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audioDTO(asset))
}

func (a *API) handleAudioDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.panel.RemoveAudio(r.Context(), chi.URLParam(r, "audioID")); err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAudioReload(w http.ResponseWriter, r *http.Request) {
	if !a.parseMultipart(w, r) {
		return
	}
	uploads, err := formUploads(r.MultipartForm, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "file_required")
		return
	}

	asset, err := a.panel.ReloadAudio(r.Context(), chi.URLParam(r, "audioID"), uploads[0])
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audioDTO(asset))
}

// handleAudiosBulkReload matches uploaded files to entries that lost their
// payload. Fallback matches on file name alone are accepted only when the
// caller passes confirm=true.
func (a *API) handleAudiosBulkReload(w http.ResponseWriter, r *http.Request) {
	if !a.parseMultipart(w, r) {
		return
	}
	uploads, err := formUploads(r.MultipartForm, "files", "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "file_required")
		return
	}

	confirmAll := r.URL.Query().Get("confirm") == "true"
	result, err := a.panel.BulkReload(r.Context(), uploads, func(models.AudioAsset, string) bool {
		return confirmAll
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	if result.Unmatched == nil {
		result.Unmatched = []string{}
	}
	if result.Failed == nil {
		result.Failed = []catalog.Rejection{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleAudioPayload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "audioID")
	asset, ok := a.panel.Audio(id)
	if !ok {
		writeError(w, http.StatusNotFound, "audio_not_found")
		return
	}
	h, ok := a.panel.Payload(id)
	if !ok {
		writeError(w, http.StatusConflict, "needs_reload")
		return
	}

	w.Header().Set("Content-Type", h.FileType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": h.FileName}))
	http.ServeContent(w, r, h.FileName, asset.DateAdded, bytes.NewReader(h.Data))
}

func (a *API) handleAudioArtwork(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "audioID")
	asset, ok := a.panel.Audio(id)
	if !ok {
		writeError(w, http.StatusNotFound, "audio_not_found")
		return
	}

	art, err := a.panel.Artwork(id)
	if err == nil {
		w.Header().Set("Content-Type", art.MIMEType)
		w.Header().Set("Cache-Control", "max-age=3600")
		_, _ = w.Write(art.Data)
		return
	}
	if url := strings.TrimSpace(asset.ImageURL); url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	if errors.Is(err, media.ErrNoArtwork) || asset.NeedsReload {
		writeError(w, http.StatusNotFound, "no_artwork")
		return
	}
	a.writeErr(w, r, err)
}

func (a *API) handleFilterGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.panel.Filter())
}

func (a *API) handleFilterSet(w http.ResponseWriter, r *http.Request) {
	var f catalog.Filter
	if err := decodeJSON(r, &f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := a.panel.SetFilter(f); err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.panel.Filter())
}

// parseMultipart caps the body at the configured upload limit and parses
// the form. It writes the error response itself and reports success.
func (a *API) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return false
	}
	return true
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func formField(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func formUploads(form *multipart.Form, fields ...string) ([]catalog.Upload, error) {
	var out []catalog.Upload
	for _, field := range fields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, catalog.Upload{
				FileName:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return out, nil
}
