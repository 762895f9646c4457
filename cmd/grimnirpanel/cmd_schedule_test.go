package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/snapshot"
)

func TestScheduleExportImportRoundTrip(t *testing.T) {
	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	rules := []models.ScheduleRule{
		{ID: "r1", AudioID: "a1", Time: "09:30", Days: []int{1, 3}, Repeat: 2, Interval: 10, Active: true, CreatedAt: created},
	}

	var buf bytes.Buffer
	if err := exportRules(&buf, rules); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(buf.String(), "audio_id: a1") {
		t.Fatalf("export output:\n%s", buf.String())
	}

	target := snapshot.Snapshot{Audios: []models.AudioAsset{{ID: "a1"}}}
	got, report, err := importRules(target, buf.Bytes(), false, time.Now(), func() string { return "new" })
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Added != 1 || report.Replaced != 0 || len(report.Dangling) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(got.Rules) != 1 || got.Rules[0].ID != "r1" || !got.Rules[0].CreatedAt.Equal(created) {
		t.Fatalf("rules = %+v", got.Rules)
	}

	// Importing the same file again replaces by id.
	again, report, err := importRules(got, buf.Bytes(), false, time.Now(), func() string { return "new" })
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if report.Replaced != 1 || len(again.Rules) != 1 {
		t.Fatalf("re-import report = %+v rules = %d", report, len(again.Rules))
	}
}

func TestImportRulesNormalizesAndAssignsIDs(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	data := []byte(`version: 1
rules:
  - audio_id: ghost
    time: "7:05"
    days: [5, 1, 5]
    active: true
`)
	existing := snapshot.Snapshot{Rules: []models.ScheduleRule{{ID: "old", AudioID: "a1", Time: "08:00", Days: []int{1}, Repeat: 1}}}

	got, report, err := importRules(existing, data, true, now, func() string { return "gen-1" })
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(got.Rules) != 1 {
		t.Fatalf("replace kept %d rules", len(got.Rules))
	}
	r := got.Rules[0]
	if r.ID != "gen-1" || r.Time != "07:05" || r.Repeat != 1 || !r.CreatedAt.Equal(now) {
		t.Fatalf("rule = %+v", r)
	}
	if len(r.Days) != 2 || r.Days[0] != 1 || r.Days[1] != 5 {
		t.Fatalf("days = %v", r.Days)
	}
	if len(report.Dangling) != 1 || report.Dangling[0] != "gen-1" {
		t.Fatalf("dangling = %v", report.Dangling)
	}
}

func TestImportRulesRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "bad yaml", data: "rules: [:"},
		{name: "wrong version", data: "version: 2\nrules: []\n"},
		{name: "bad time", data: "version: 1\nrules:\n  - audio_id: a1\n    time: \"25:00\"\n    days: [1]\n"},
		{name: "no days", data: "version: 1\nrules:\n  - audio_id: a1\n    time: \"10:00\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := importRules(snapshot.Snapshot{}, []byte(tt.data), false, time.Now(), func() string { return "x" }); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
