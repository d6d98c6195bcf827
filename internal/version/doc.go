// Package version exposes build metadata of binstall.
//
// Version, Commit and BuildTime are injected with -ldflags at release time.
package version
