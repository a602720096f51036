// Package version exposes build version information for fedroute.
package version

// These are set at build time with -ldflags "-X".
//
//nolint:gochecknoglobals // populated by the linker
var (
	version = "dev"
	commit  = "none"
)

// GetVersion returns the build version.
func GetVersion() string {
	return version
}

// GetCommit returns the build commit.
func GetCommit() string {
	return commit
}
