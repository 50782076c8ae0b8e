// Package fetch downloads a release archive into memory.
//
// HTTP status failures and transport failures are reported as distinct error
// kinds so the user sees either "check if the server is up" or "check your
// network connection".
package fetch
