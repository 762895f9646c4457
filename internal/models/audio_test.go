package models

import (
	"testing"
	"time"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   Category
		wantOK bool
	}{
		{name: "empty defaults to other", in: "", want: CategoryOther, wantOK: true},
		{name: "canonical", in: "music", want: CategoryMusic, wantOK: true},
		{name: "mixed case and spaces", in: "  Announcements ", want: CategoryAnnouncements, wantOK: true},
		{name: "unknown", in: "podcasts", wantOK: false},
		{name: "filter value is not a category", in: CategoryAll, wantOK: false},
	}

	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("%s: ParseCategory(%q)=(%q,%v), want (%q,%v)", tt.name, tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCategoryLabelFallsBackToOther(t *testing.T) {
	if got := Category("bogus").Label(); got != "Other" {
		t.Fatalf("Label()=%q, want Other", got)
	}
	if got := Category("bogus").Color(); got != CategoryOther.Color() {
		t.Fatalf("Color()=%q, want %q", got, CategoryOther.Color())
	}
}

func TestDisplayNamePrefersCustomName(t *testing.T) {
	a := AudioAsset{Name: "doors-closing"}
	if got := a.DisplayName(); got != "doors-closing" {
		t.Fatalf("DisplayName()=%q, want doors-closing", got)
	}
	a.CustomName = "Doors closing"
	if got := a.DisplayName(); got != "Doors closing" {
		t.Fatalf("DisplayName()=%q, want custom name", got)
	}
}

func TestStripExtension(t *testing.T) {
	tests := map[string]string{
		"jingle.mp3":      "jingle",
		"opening.day.wav": "opening.day",
		"no-extension":    "no-extension",
		"Last Call.FLAC":  "Last Call",
	}
	for in, want := range tests {
		if got := StripExtension(in); got != want {
			t.Fatalf("StripExtension(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestScheduleRuleCloneIsDeep(t *testing.T) {
	played := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	r := ScheduleRule{Days: []int{1, 3}, LastPlayed: &played}

	c := r.Clone()
	c.Days[0] = 6
	*c.LastPlayed = played.Add(time.Hour)

	if r.Days[0] != 1 {
		t.Fatalf("clone shares days slice")
	}
	if !r.LastPlayed.Equal(played) {
		t.Fatalf("clone shares lastPlayed pointer")
	}
	if !r.HasDay(time.Wednesday) || r.HasDay(time.Sunday) {
		t.Fatalf("HasDay mismatch for days %v", r.Days)
	}
}
