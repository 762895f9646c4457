/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Category groups audio clips in the panel.
type Category string

const (
	CategoryAnnouncements Category = "announcements"
	CategoryMusic         Category = "music"
	CategoryEffects       Category = "effects"
	CategoryOther         Category = "other"
)

// CategoryAll is the pass-through filter value.
const CategoryAll = "all"

// Categories lists the valid categories in display order.
var Categories = []Category{CategoryAnnouncements, CategoryMusic, CategoryEffects, CategoryOther}

var categoryLabels = map[Category]string{
	CategoryAnnouncements: "Announcements",
	CategoryMusic:         "Music",
	CategoryEffects:       "Sound Effects",
	CategoryOther:         "Other",
}

var categoryColors = map[Category]string{
	CategoryAnnouncements: "#ff6b6b",
	CategoryMusic:         "#4834d4",
	CategoryEffects:       "#00d2d3",
	CategoryOther:         "#8c7ae6",
}

// ParseCategory normalizes user input. Empty input maps to CategoryOther.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryOther, true
	}
	c := Category(s)
	if _, ok := categoryLabels[c]; !ok {
		return "", false
	}
	return c, true
}

// Label returns the human readable category name.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return categoryLabels[CategoryOther]
}

// Color returns the hex color used for synthesized artwork.
func (c Category) Color() string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return categoryColors[CategoryOther]
}

// AudioAsset is a catalog entry. The JSON shape is the persisted metadata
// snapshot; NeedsReload is derived at runtime and never written.
type AudioAsset struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	FileName    string    `json:"fileName"`
	CustomName  string    `json:"customName"`
	Category    Category  `json:"category"`
	ImageURL    string    `json:"imageUrl"`
	Duration    float64   `json:"duration"`
	Size        int64     `json:"size"`
	DateAdded   time.Time `json:"dateAdded"`
	NeedsReload bool      `json:"-"`
}

// DisplayName prefers the operator's custom name.
func (a AudioAsset) DisplayName() string {
	if strings.TrimSpace(a.CustomName) != "" {
		return a.CustomName
	}
	return a.Name
}

// StripExtension drops the final extension from a file name.
func StripExtension(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}
