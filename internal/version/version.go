// Package version provides build metadata for the clientgen binary.
//
// Usage:
//
//	fmt.Println(version.GetVersionString())
package version

import (
	"fmt"
	"runtime"
)

// Version is the release version, set with -ldflags at build time.
var Version = "v0.1.0-dev"

// Commit is the git commit hash, set with -ldflags at build time.
var Commit = "unknown"

// BuildTime is the build timestamp in RFC3339 format, set with -ldflags.
var BuildTime = "unknown"

// GetVersionString returns a one-line version string:
// clientgen version v0.1.0 (commit 4a9b2c1, built 2026-01-02T12:00:00Z)
func GetVersionString() string {
	return fmt.Sprintf("clientgen version %s (commit %s, built %s)", Version, Commit, BuildTime)
}

// GetFullVersionInfo returns the version string plus the Go toolchain and platform.
func GetFullVersionInfo() string {
	return fmt.Sprintf("%s\ngo version %s (%s/%s)",
		GetVersionString(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
