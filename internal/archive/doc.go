// Package archive unpacks a verified release tarball and moves it into the
// installation directory.
//
// Extract works on the in-memory archive and refuses tarballs whose top-level
// directory is not the expected "<tool>-<version>" name. Replacer swaps the
// extracted tree into place, deleting a previous installation unless the tool
// is currently running from it. SaveArchive keeps a verified copy on disk.
package archive
