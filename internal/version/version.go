package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the service current released version.
// This value can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/hrygo/alsassist/internal/version.Version=0.3.0"
var Version = "0.1.0-dev"

// GitCommit is the git commit hash at build time.
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

// Canonical returns the semver form of Version ("v0.1.0-dev"), or an empty
// string if Version is not a valid semantic version.
func Canonical() string {
	return semver.Canonical("v" + strings.TrimPrefix(Version, "v"))
}

// IsAtLeast returns true if Version is greater than or equal to target.
func IsAtLeast(target string) bool {
	return semver.Compare("v"+strings.TrimPrefix(Version, "v"), "v"+strings.TrimPrefix(target, "v")) > -1
}

// String returns the version string with optional short commit hash.
func String() string {
	v := Version
	if GitCommit != "" && GitCommit != "unknown" {
		shortCommit := GitCommit
		if len(shortCommit) > 8 {
			shortCommit = shortCommit[:8]
		}
		v = fmt.Sprintf("%s-%s", v, shortCommit)
	}
	return v
}
