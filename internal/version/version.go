// Package version holds build metadata injected via ldflags.
package version

import "fmt"

// Build metadata. Overridden with -ldflags "-X ...".
var (
	Version   = "0.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String formats the build metadata for the version command.
func String() string {
	return fmt.Sprintf("healthboard %s\ncommit: %s\nbuilt:  %s", Version, GitCommit, BuildDate)
}
