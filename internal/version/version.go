// Package version holds the build stamp of the astrocal binaries.
package version

import "fmt"

// Overridden at link time, e.g.
//
//	go build -ldflags "-X astrocal/internal/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "0.1.0"
	BuildTime = "unknown" // UTC
	GitCommit = "unknown"
)

// String returns the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("astrocal %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
