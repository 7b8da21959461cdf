package version

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String formats the build information on one line.
func String() string {
	return Version + " (commit " + GitCommit + ", built " + BuildDate + ")"
}
