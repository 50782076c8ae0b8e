// Package probe asks an installed tool for its self-reported version.
//
// VersionProbe is the capability the installer depends on; ExecProbe runs the
// entry point as a subprocess with --version and tests substitute a fake.
package probe
