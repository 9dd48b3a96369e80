// Package version exposes build metadata for jpl-packager.
//
// Version, Commit and BuildTime are injected at build time via ldflags.
package version
