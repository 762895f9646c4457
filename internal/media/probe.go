/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media inspects uploaded audio payloads.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnsupportedFormat is returned when no decoder matches the payload.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrNoArtwork is returned when the payload carries no embedded picture.
	ErrNoArtwork = errors.New("no embedded artwork")
)

// SupportedExtensions lists the extensions the decoders understand.
func SupportedExtensions() []string {
	return []string{".mp3", ".wav", ".flac"}
}

// DetectType sniffs the MIME type of data.
func DetectType(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsAudio reports whether an upload is audio, either by its declared
// content type or by sniffing the bytes.
func IsAudio(data []byte, declaredType string) bool {
	if strings.HasPrefix(strings.ToLower(declaredType), "audio/") {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return true
		}
	}
	return false
}

// ContentType returns the declared type if it is usable, otherwise the sniffed one.
func ContentType(data []byte, declaredType string) string {
	if declaredType != "" && declaredType != "application/octet-stream" {
		return declaredType
	}
	return DetectType(data)
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// Decode opens data with the decoder matching its sniffed type, falling back
// to the file extension.
func Decode(data []byte, fileName string) (beep.StreamSeekCloser, beep.Format, error) {
	r := readSeekNopCloser{bytes.NewReader(data)}

	switch decoderFor(data, fileName) {
	case ".mp3":
		return mp3.Decode(r)
	case ".wav":
		return wav.Decode(r)
	case ".flac":
		return flac.Decode(r)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}
}

func decoderFor(data []byte, fileName string) string {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		switch m.String() {
		case "audio/mpeg":
			return ".mp3"
		case "audio/wav", "audio/x-wav", "audio/wave":
			return ".wav"
		case "audio/flac", "audio/x-flac":
			return ".flac"
		}
	}
	return strings.ToLower(filepath.Ext(fileName))
}

// ProbeDuration decodes data far enough to learn its length in seconds.
func ProbeDuration(data []byte, fileName string) (float64, error) {
	streamer, format, err := Decode(data, fileName)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", fileName, err)
	}
	defer streamer.Close()

	n := streamer.Len()
	if n <= 0 || format.SampleRate <= 0 {
		return 0, fmt.Errorf("probe %s: unknown length", fileName)
	}
	return format.SampleRate.D(n).Seconds(), nil
}

// Artwork is a picture embedded in the payload's tags.
type Artwork struct {
	MIMEType string
	Data     []byte
}

// EmbeddedArtwork extracts the cover picture from ID3, MP4, FLAC or OGG tags.
func EmbeddedArtwork(data []byte) (Artwork, error) {
	meta, err := tag.ReadFrom(bytes.NewReader(data))
	if errors.Is(err, tag.ErrNoTagsFound) {
		return Artwork{}, ErrNoArtwork
	}
	if err != nil {
		return Artwork{}, fmt.Errorf("read tags: %w", err)
	}

	pic := meta.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return Artwork{}, ErrNoArtwork
	}
	mimeType := pic.MIMEType
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = DetectType(pic.Data)
	}
	return Artwork{MIMEType: mimeType, Data: pic.Data}, nil
}
