// Package version holds build information, overridden at link time:
//
//	go build -ldflags "-X github.com/itsneelabh/gocart/internal/version.Version=v0.3.0"
package version

var (
	// Version is the release version.
	Version = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"

	// BuildDate is set during build time
	BuildDate = "development"
)

// String formats the build information for -version output.
func String() string {
	return Version + " (commit " + GitCommit + ", built " + BuildDate + ")"
}
