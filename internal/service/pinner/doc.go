// Package pinner moves the configuration to another release.
//
// It downloads the release archive once, computes its digest with the
// configured algorithm, checks the archive layout and saves the config with
// the new version and checksum, printing the next steps for the user.
package pinner
