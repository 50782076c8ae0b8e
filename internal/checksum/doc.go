// Package checksum verifies downloaded archives against a pinned digest.
package checksum
