package version

import (
	"fmt"
	"runtime"
)

// Overridden at build time:
//
//	-ldflags "-X github.com/MrSnakeDoc/beacon/internal/version.Version=v0.1.0"
var (
	Version   = "dev"             // ex: v0.1.0
	Commit    = "none"            // ex: abcd123
	BuildDate = "unknown"         // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version() // go version
)

// String formats the build for startup logs.
func String() string {
	return fmt.Sprintf("%s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}

// UserAgent is sent with every probe.
func UserAgent() string {
	return "beacon/" + Version
}
