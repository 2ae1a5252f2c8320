// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/garyellow/line-webhook-bridge/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/garyellow/line-webhook-bridge/internal/buildinfo.Commit=...
var Commit = ""

// Release returns the identifier reported to error tracking.
// It prefers Version, falls back to Commit, and finally to "dev".
func Release() string {
	switch {
	case Version != "":
		return Version
	case Commit != "":
		return Commit
	default:
		return "dev"
	}
}
