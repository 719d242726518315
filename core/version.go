package core

// Build metadata for `sr --version`, injected with
//
//	go build -ldflags "-X go_superres/core.Version=v0.1.0 -X go_superres/core.GitCommit=$(git rev-parse --short HEAD)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the injected version.
func GetVersion() string {
	return Version
}

// GetVersionInfo returns e.g. "v0.1.0 (built 2024-01-15T10:30:00Z, commit abc1234)".
func GetVersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}

