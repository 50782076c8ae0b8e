// Package installer ensures the pinned release is unpacked in the working directory.
//
// A run probes the installed entry point, and when its version differs from
// the pinned one downloads the release archive, verifies its digest, unpacks it
// into a temporary directory and moves it into the installation directory.
// Every failure is terminal; nothing is retried.
package installer
