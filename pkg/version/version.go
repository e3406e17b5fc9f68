// Package version holds the build version of schema-migrator.
package version

// Version is the current release version. Overridden at build time via
// -ldflags "-X github.com/getpup/schema-migrator/pkg/version.Version=...".
var Version = "dev"
