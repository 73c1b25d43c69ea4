// Package version holds build metadata injected via ldflags.
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata for `searchctl version` and startup logs.
func String() string {
	return fmt.Sprintf("searchdex %s (commit %s, built %s)", Version, Commit, Date)
}
