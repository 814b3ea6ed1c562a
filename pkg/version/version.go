package version

// Version is the current release version.
// Overridden at build time via -ldflags "-X audiobookgo/pkg/version.Version=...".
var Version = "0.3.0-dev"
