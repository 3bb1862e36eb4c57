package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the released version, overridden at build time:
//
//	go build -ldflags "-X github.com/hrygo/studynotes/internal/version.Version=v0.3.0"
var Version = "v0.0.0-dev"

// GitCommit is the git commit hash at build time.
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

// Info is the build metadata reported by the CLI and health endpoint.
type Info struct {
	Version   string `json:"version"`
	Minor     string `json:"minor,omitempty"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

// Get returns the current build metadata.
func Get() Info {
	info := Info{Version: canonical(Version)}
	if IsValid(Version) {
		info.Minor = MinorVersion(Version)
	}
	if GitCommit != "" && GitCommit != "unknown" {
		info.Commit = shortCommit(GitCommit)
	}
	if BuildTime != "" && BuildTime != "unknown" {
		info.BuildTime = BuildTime
	}
	return info
}

// canonical prefixes "v" so bare "1.2.3" values passed via ldflags still parse.
func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

// IsValid reports whether v is a semantic version.
func IsValid(v string) bool {
	return semver.IsValid(canonical(v))
}

// MinorVersion returns "vMAJOR.MINOR", or "" for invalid versions.
func MinorVersion(v string) string {
	return semver.MajorMinor(canonical(v))
}

// String returns the version with the short commit hash appended.
func String() string {
	info := Get()
	if info.Commit == "" {
		return info.Version
	}
	return info.Version + "-" + info.Commit
}
