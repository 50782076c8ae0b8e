package install

import (
	"errors"
	"fmt"
)

var (
	// ErrProbeInvocation is returned when the installed entry point cannot report its version.
	ErrProbeInvocation = errors.New("unable to query the installed version")
	// ErrRemoteFetch is returned when the release server answers with a failure status.
	ErrRemoteFetch = errors.New("release server returned an error")
	// ErrNetworkConnectivity is returned when the release server cannot be reached.
	ErrNetworkConnectivity = errors.New("release server is unreachable")
	// ErrChecksumMismatch is returned when the downloaded archive digest differs from the pinned one.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrArchiveLayout is returned when the archive top-level directory is not the expected one.
	ErrArchiveLayout = errors.New("unexpected archive layout")
	// ErrDestinationConflict is returned when the installation directory cannot be replaced.
	ErrDestinationConflict = errors.New("installation directory is in use")
	// ErrInstallRequired is returned by a dry run that would have installed something.
	ErrInstallRequired = errors.New("installation required")
)

// RemoteFetchError describes an HTTP status-level failure.
type RemoteFetchError struct {
	// URL is the requested address.
	URL string
	// Status is the HTTP status line, e.g. "404 Not Found".
	Status string
	// StatusCode is the numeric HTTP status.
	StatusCode int
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("%s\nCheck if %s is up.", e.Status, e.URL)
}

// Unwrap makes the error match ErrRemoteFetch.
func (e *RemoteFetchError) Unwrap() error {
	return ErrRemoteFetch
}

// NetworkError describes a transport-level failure.
type NetworkError struct {
	// URL is the requested address.
	URL string
	// Err is the underlying transport error.
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%v\nCheck your network connection.", e.Err)
}

// Unwrap returns both the sentinel and the transport error.
func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetworkConnectivity, e.Err}
}

// ChecksumError is returned when a buffer does not hash to the expected digest.
type ChecksumError struct {
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf(
		"The checksum of the downloaded file does not match!\nExpected: %s\nActual:   %s\n"+
			"Please download and verify the file manually.",
		e.Expected, e.Actual,
	)
}

// Unwrap makes the error match ErrChecksumMismatch.
func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// LayoutError is returned when the first archive entry is not the expected directory.
type LayoutError struct {
	Expected string
	Actual   string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf(
		"The archive extracted path was unexpected (want %q, got %q). Please try to extract it yourself.",
		e.Expected, e.Actual,
	)
}

// Unwrap makes the error match ErrArchiveLayout.
func (e *LayoutError) Unwrap() error {
	return ErrArchiveLayout
}

// DryRunError reports what a dry run would have installed.
type DryRunError struct {
	// Target is the "<tool>-<version>" name that was not found.
	Target string
	// URL is the archive that would have been downloaded.
	URL string
}

func (e *DryRunError) Error() string {
	return fmt.Sprintf("Did not find %s and dry run was requested.\nWould have installed %s", e.Target, e.URL)
}

// Unwrap makes the error match ErrInstallRequired.
func (e *DryRunError) Unwrap() error {
	return ErrInstallRequired
}
