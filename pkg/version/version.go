// Package version exposes build information set through -ldflags.
package version

import (
	"github.com/Masterminds/semver/v3"
)

//nolint:gochecknoglobals // Set at build time with -ldflags "-X".
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// GetVersion returns the semantic version of the build.
func GetVersion() string {
	return version
}

// GetGitCommit returns the commit the binary was built from.
func GetGitCommit() string {
	return gitCommit
}

// GetBuildDate returns the build timestamp.
func GetBuildDate() string {
	return buildDate
}

// Display formats v for --version output: "v1.2.3" for a semantic version,
// otherwise v marked as a development build.
func Display(v string) string {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return v + " (development build)"
	}
	return "v" + sv.String()
}
