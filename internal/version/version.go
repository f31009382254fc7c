// Package version carries build identification stamped through ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set at build time:
//
//	go build -ldflags "-X orbit/internal/version.Version=v1.2.0 ..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitTag    = ""
	GitDirty  = ""
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// Info returns the human-facing version string: the git tag when one was
// stamped, the Version variable otherwise, with a -dirty marker for builds
// from an unclean tree.
func Info() string {
	v := Version
	if GitTag != "" && GitTag != "unknown" {
		v = GitTag
	}
	if GitDirty == "true" && !strings.HasSuffix(v, "-dirty") {
		v += "-dirty"
	}
	return v
}

// Full is Info plus the abbreviated commit hash when it adds information.
func Full() string {
	v := Info()
	if GitCommit != "unknown" && len(GitCommit) >= 7 && !strings.Contains(v, GitCommit[:7]) {
		v = fmt.Sprintf("%s (%s)", v, GitCommit[:7])
	}
	return v
}

// BuildInfo is the structured form of the stamped build data.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	GitTag    string `json:"git_tag,omitempty"`
	GitDirty  bool   `json:"git_dirty"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// GetBuildInfo returns the full build identity for status endpoints and
// the version subcommand.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Info(),
		GitCommit: GitCommit,
		GitTag:    GitTag,
		GitDirty:  GitDirty == "true",
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
}

// UserAgent identifies this build to remote services.
func UserAgent() string {
	return fmt.Sprintf("orbit/%s", Info())
}
