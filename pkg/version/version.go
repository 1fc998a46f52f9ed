// Package version provides build and version information for soudok.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current soudok version. Set via ldflags at build time:
// -X github.com/soudok/soudok/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns the build information for the running binary.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String returns a formatted multi-line version string.
func (i BuildInfo) String() string {
	return fmt.Sprintf(
		"soudok version %s\n  git commit: %s\n  build time: %s\n  go version: %s\n  platform: %s/%s",
		i.Version, i.Commit, i.Date, i.GoVersion, i.OS, i.Arch,
	)
}

// Short returns just the version number.
func Short() string {
	return Version
}
