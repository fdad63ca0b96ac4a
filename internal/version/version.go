package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the released version of studychat.
// Override at build time:
//
//	go build -ldflags "-X github.com/hrygo/studychat/internal/version.Version=0.3.0"
var Version = "0.1.0"

// DevVersion is reported when running in dev mode.
var DevVersion = Version + "-dev"

// GitCommit is the commit hash at build time.
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

func GetCurrentVersion(mode string) string {
	if mode == "dev" {
		return DevVersion
	}
	return Version
}

// IsVersionGreaterOrEqualThan returns true if version is greater than or equal to target.
// Both arguments are bare semver strings without the leading "v".
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > -1
}

// IsValid reports whether version is a well-formed semantic version.
func IsValid(version string) bool {
	return semver.IsValid(canonical(version))
}

func canonical(version string) string {
	return "v" + strings.TrimPrefix(version, "v")
}

// String returns the version with a short commit hash when known.
func String() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return Version
	}
	commit := GitCommit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return fmt.Sprintf("%s-%s", Version, commit)
}

// StringFull returns the version together with build metadata.
func StringFull() string {
	parts := []string{"Version=" + String()}
	if BuildTime != "" && BuildTime != "unknown" {
		parts = append(parts, "BuildTime="+BuildTime)
	}
	return strings.Join(parts, " ")
}
