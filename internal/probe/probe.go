package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/oshokin/get-meson/internal/domain/install"
)

// VersionProbe reports the version of the local installation.
// found is false when nothing is installed; err is set only when an existing
// installation could not be queried.
type VersionProbe interface {
	Probe(ctx context.Context) (version string, found bool, err error)
}

// ExecProbe runs an entry point with a version flag and reads its stdout.
type ExecProbe struct {
	// path is the entry point location.
	path string
	// args are passed to the entry point.
	args []string
	// timeout bounds a single invocation.
	timeout time.Duration
}

// DefaultTimeout bounds the version query when none is configured.
const DefaultTimeout = 10 * time.Second

// Option configures an ExecProbe.
type Option func(*ExecProbe)

// WithArgs replaces the default "--version" argument list.
func WithArgs(args ...string) Option {
	return func(p *ExecProbe) {
		if len(args) > 0 {
			p.args = args
		}
	}
}

// WithTimeout sets the invocation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *ExecProbe) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewExecProbe creates a probe for the entry point at path.
func NewExecProbe(path string, opts ...Option) *ExecProbe {
	p := &ExecProbe{
		path:    path,
		args:    []string{"--version"},
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe implements VersionProbe.
func (p *ExecProbe) Probe(ctx context.Context) (string, bool, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}

		return "", true, fmt.Errorf("%w: stat %s: %w", install.ErrProbeInvocation, p.path, err)
	}

	if !info.Mode().IsRegular() {
		return "", false, nil
	}

	cmdCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, commandPath(p.path), p.args...)

	output, err := cmd.Output()
	if err != nil {
		return "", true, fmt.Errorf("%w: %s %s: %w",
			install.ErrProbeInvocation, p.path, strings.Join(p.args, " "), describe(err))
	}

	return strings.TrimRight(string(output), " \t\r\n"), true, nil
}

// commandPath keeps exec from searching PATH for a bare relative name.
func commandPath(path string) string {
	if strings.ContainsRune(path, os.PathSeparator) || strings.ContainsRune(path, '/') {
		return path
	}

	return "." + string(os.PathSeparator) + path
}

// describe adds the child's stderr to an exit error.
func describe(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}

	return err
}
