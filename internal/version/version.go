// Package version holds the build version, overridable at link time with
// -ldflags "-X hark/internal/version.Version=...".
package version

// Version is the hark release version.
var Version = "0.3.0"
