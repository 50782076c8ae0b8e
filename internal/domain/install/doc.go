// Package install contains core domain types for a single installation run.
//
// It defines the run State machine and the error kinds every stage reports.
// Typed errors carry the details needed for a user-facing message and match
// their sentinel through errors.Is, so callers can map them to exit codes.
package install
