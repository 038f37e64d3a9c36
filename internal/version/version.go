// Package version holds the application version string.
package version

// Version is the current application version. Overridable at build time
// via -ldflags "-X phasor-studio/internal/version.Version=...".
var Version = "0.2.0"
