/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build information.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set at build time via ldflags:
//
//	-X github.com/friendsincode/petfeeder/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit is the VCS revision, set via ldflags or read from build info.
var Commit = ""

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns build information for the running binary.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Commit == "" {
		info.Commit = vcsRevision()
	}
	return info
}

func (i Info) String() string {
	if i.Commit == "" {
		return fmt.Sprintf("petfeeder %s (%s, %s)", i.Version, i.GoVersion, i.Platform)
	}
	return fmt.Sprintf("petfeeder %s %s (%s, %s)", i.Version, shortRevision(i.Commit), i.GoVersion, i.Platform)
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
