/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/grimnir_panel/internal/db"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/scheduler"
	"github.com/friendsincode/grimnir_panel/internal/snapshot"
)

const scheduleFileVersion = 1

// scheduleFile is the YAML document written by schedule export.
type scheduleFile struct {
	Version int                   `yaml:"version"`
	Rules   []models.ScheduleRule `yaml:"rules"`
}

// importReport summarizes a schedule import.
type importReport struct {
	Added    int
	Replaced int
	Dangling []string
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Export or import schedule rules",
	Long:  "Move schedule rules between panels as YAML. Run import while the panel is stopped.",
}

var scheduleExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write schedule rules as YAML",
	RunE:  runScheduleExport,
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load schedule rules from YAML",
	RunE:  runScheduleImport,
}

var (
	scheduleOut     string
	scheduleIn      string
	scheduleReplace bool
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleExportCmd)
	scheduleCmd.AddCommand(scheduleImportCmd)

	scheduleExportCmd.Flags().StringVar(&scheduleOut, "out", "", "Output file (default stdout)")
	scheduleImportCmd.Flags().StringVar(&scheduleIn, "in", "", "YAML file to import (required)")
	scheduleImportCmd.Flags().BoolVar(&scheduleReplace, "replace", false, "Replace every existing rule instead of merging by id")
	_ = scheduleImportCmd.MarkFlagRequired("in")
}

// openSnapshot loads config and opens the configured snapshot store.
func openSnapshot() (snapshot.KV, func(), error) {
	if err := loadConfig(); err != nil {
		return nil, nil, err
	}
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, nil, err
	}
	kv, err := snapshot.Open(cfg, database, logger)
	if err != nil {
		_ = db.Close(database)
		return nil, nil, err
	}
	return kv, func() {
		_ = kv.Close()
		_ = db.Close(database)
	}, nil
}

func runScheduleExport(cmd *cobra.Command, args []string) error {
	kv, closeFn, err := openSnapshot()
	if err != nil {
		return err
	}
	defer closeFn()

	snap, err := snapshot.Load(cmd.Context(), kv)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if scheduleOut != "" {
		f, err := os.Create(scheduleOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", scheduleOut, err)
		}
		defer f.Close()
		out = f
	}
	if err := exportRules(out, snap.Rules); err != nil {
		return err
	}
	if scheduleOut != "" {
		logger.Info().Int("rules", len(snap.Rules)).Str("file", scheduleOut).Msg("schedule exported")
	}
	return nil
}

func runScheduleImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(scheduleIn)
	if err != nil {
		return fmt.Errorf("read %s: %w", scheduleIn, err)
	}

	kv, closeFn, err := openSnapshot()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	snap, err := snapshot.Load(ctx, kv)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	next, report, err := importRules(snap, data, scheduleReplace, time.Now(), uuid.NewString)
	if err != nil {
		return err
	}
	if err := snapshot.Save(ctx, kv, next); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	for _, id := range report.Dangling {
		logger.Warn().Str("rule_id", id).Msg("imported rule points at an audio clip this panel does not have")
	}
	logger.Info().Int("added", report.Added).Int("replaced", report.Replaced).Msg("schedule imported")
	return nil
}

func exportRules(w io.Writer, rules []models.ScheduleRule) error {
	if rules == nil {
		rules = []models.ScheduleRule{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(scheduleFile{Version: scheduleFileVersion, Rules: rules}); err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return enc.Close()
}

// importRules validates the rules in data and merges them into snap. Rules
// keep their ids so a re-import replaces instead of duplicating. Rules whose
// audio is unknown are imported and reported; the scheduler skips them.
func importRules(snap snapshot.Snapshot, data []byte, replace bool, now time.Time, newID func() string) (snapshot.Snapshot, importReport, error) {
	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return snap, importReport{}, fmt.Errorf("decode schedule: %w", err)
	}
	if file.Version != scheduleFileVersion {
		return snap, importReport{}, fmt.Errorf("unsupported schedule file version %d", file.Version)
	}

	known := make(map[string]bool, len(snap.Audios))
	for _, a := range snap.Audios {
		known[a.ID] = true
	}

	var rules []models.ScheduleRule
	if !replace {
		rules = append(rules, snap.Rules...)
	}
	index := make(map[string]int, len(rules))
	for i, r := range rules {
		index[r.ID] = i
	}

	var report importReport
	for i, r := range file.Rules {
		rule := r.Clone()
		if err := scheduler.NormalizeRule(&rule); err != nil {
			return snap, importReport{}, fmt.Errorf("rule %d: %w", i+1, err)
		}
		if rule.ID == "" {
			rule.ID = newID()
		}
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = now
		}
		if !known[rule.AudioID] {
			report.Dangling = append(report.Dangling, rule.ID)
		}
		if j, ok := index[rule.ID]; ok {
			rules[j] = rule
			report.Replaced++
			continue
		}
		index[rule.ID] = len(rules)
		rules = append(rules, rule)
		report.Added++
	}

	snap.Rules = rules
	return snap, report, nil
}
