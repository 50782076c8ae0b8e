package archive

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/get-meson/internal/domain/install"
	"github.com/oshokin/get-meson/internal/logger"
)

// ProcessLister returns the running processes.
type ProcessLister func() ([]ps.Process, error)

// Replacer moves a freshly extracted tree into the installation directory.
//
// An existing installation is deleted and replaced, unless a process named
// like the installed entry point is running, in which case the replacement
// is refused with install.ErrDestinationConflict.
type Replacer struct {
	// busyName is the executable name that marks the installation as in use.
	busyName string
	// processes lists running processes.
	processes ProcessLister
}

// ReplacerOption configures a Replacer.
type ReplacerOption func(*Replacer)

// WithProcessLister overrides the process listing, mostly for tests.
func WithProcessLister(lister ProcessLister) ReplacerOption {
	return func(r *Replacer) {
		if lister != nil {
			r.processes = lister
		}
	}
}

// NewReplacer creates a Replacer guarding against a running busyName.
// An empty busyName disables the guard.
func NewReplacer(busyName string, opts ...ReplacerOption) *Replacer {
	r := &Replacer{
		busyName:  busyName,
		processes: ps.Processes,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Replace renames src to dst, removing a previous dst first.
func (r *Replacer) Replace(ctx context.Context, src, dst string) error {
	_, err := os.Lstat(dst)

	switch {
	case err == nil:
		if err = r.ensureNotRunning(ctx); err != nil {
			return err
		}

		logger.Infof(ctx, "Overwriting %s.", dst)

		if err = os.RemoveAll(dst); err != nil {
			return fmt.Errorf("remove previous installation: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat %s: %w", dst, err)
	}

	if err = os.Rename(src, dst); err != nil {
		return fmt.Errorf("move installation into place: %w", err)
	}

	return nil
}

// ensureNotRunning fails when a process with the guarded name is alive.
// A failing process listing is logged and does not block the replacement.
func (r *Replacer) ensureNotRunning(ctx context.Context) error {
	if r.busyName == "" {
		return nil
	}

	processList, err := r.processes()
	if err != nil {
		logger.WarnKV(ctx, "Unable to list processes, skipping the running check", "error", err)
		return nil
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == r.busyName {
			return fmt.Errorf("%w: %s is running (pid %d), stop it and retry",
				install.ErrDestinationConflict, r.busyName, process.Pid())
		}
	}

	return nil
}
