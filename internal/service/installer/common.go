package installer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/oshokin/get-meson/internal/config"
	"github.com/oshokin/get-meson/internal/domain/install"
	"github.com/oshokin/get-meson/internal/logger"
)

// tempDirPattern names the scratch directory created next to the installation.
const tempDirPattern = ".get-meson-*"

var errIllegalTransition = errors.New("illegal state transition")

// Placer moves an extracted tree into the installation directory.
type Placer interface {
	Replace(ctx context.Context, src, dst string) error
}

// transition moves the runner to next, refusing moves the state machine forbids.
func (r *runner) transition(ctx context.Context, next install.State) error {
	if !r.state.CanTransition(next) {
		return fmt.Errorf("%s -> %s: %w", r.state, next, errIllegalTransition)
	}

	logger.DebugKV(ctx, "State changed", "from", r.state.String(), "to", next.String())
	r.state = next

	return nil
}

// fail records the terminal FAILED state and returns err unchanged.
func (r *runner) fail(ctx context.Context, err error) error {
	if !r.state.Terminal() {
		logger.DebugKV(ctx, "State changed", "from", r.state.String(), "to", install.StateFailed.String())
		r.state = install.StateFailed
	}

	return err
}

// describeRelation tells whether the installed release is older or newer than the pin.
// Non-semver output is reported as is.
func describeRelation(installed, target string) string {
	installedVersion, err := semver.NewVersion(installed)
	if err != nil {
		return "unrecognized"
	}

	targetVersion, err := semver.NewVersion(target)
	if err != nil {
		return "unrecognized"
	}

	switch installedVersion.Compare(targetVersion) {
	case -1:
		return "older"
	case 1:
		return "newer"
	default:
		return "equivalent"
	}
}

// runHint returns the human-readable instructions printed after an installation.
func runHint(cfg config.Config) string {
	entry := cfg.EntryPointPath()
	nix := "./" + filepath.ToSlash(entry)
	windows := strings.ReplaceAll(filepath.ToSlash(entry), "/", `\`)

	if strings.EqualFold(filepath.Ext(entry), ".py") {
		windows = "python.exe " + windows
	}

	return fmt.Sprintf("%s should be installed. You can run it with `%s` on *nix and `%s` on Windows",
		capitalize(cfg.Tool), nix, windows)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
