// Package version exposes build metadata of the get-meson binary.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags and
// default to values suitable for local builds. This is unrelated to the
// release get-meson installs, which lives in the configuration.
package version
