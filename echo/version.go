package echo

import (
	"fmt"
	"runtime/debug"
)

// VersionInfo returns human-readable build information suitable for
// concatenation with other messages.
func VersionInfo() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "(version info unavailable)"
	}

	var revision, commitTime, modified string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			commitTime = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}
	if revision == "" {
		return "(version info unavailable)"
	}

	when := commitTime
	if modified != "false" {
		when = "dirty"
	}
	return fmt.Sprintf("built from commit %.8s (%s) using %s", revision, when, bi.GoVersion)
}
