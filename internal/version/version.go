/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version exposes build metadata.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of Grimnir Panel.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/grimnir_panel/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit is the git revision the binary was built from.
var Commit = "dev"

// Info is the payload served on the version endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// Current returns build metadata for this binary.
func Current() Info {
	return Info{Version: Version, Commit: Commit, GoVersion: runtime.Version()}
}

// String renders the version for CLI output.
func String() string {
	return fmt.Sprintf("grimnirpanel %s (%s, %s)", Version, Commit, runtime.Version())
}
