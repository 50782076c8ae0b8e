package installer

import (
	"context"
	"crypto"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/get-meson/internal/archive"
	"github.com/oshokin/get-meson/internal/checksum"
	"github.com/oshokin/get-meson/internal/config"
	"github.com/oshokin/get-meson/internal/domain/install"
	"github.com/oshokin/get-meson/internal/fetch"
	"github.com/oshokin/get-meson/internal/logger"
	"github.com/oshokin/get-meson/internal/probe"
)

// Options are inputs accepted by the installer entry point.
type Options struct {
	// Config pins the release; it is copied and never modified.
	Config config.Config
	// DryRun stops before any network access when an installation is needed.
	DryRun bool
	// WorkDir is where the installation directory lives. Defaults to ".".
	WorkDir string
	// Progress receives the download progress bar; nil disables it.
	Progress io.Writer

	// Probe overrides the subprocess version probe.
	Probe probe.VersionProbe
	// Fetcher overrides the HTTP fetcher.
	Fetcher fetch.Fetcher
	// Placer overrides the installation directory replacement.
	Placer Placer
}

// runner holds the state of a single installation run.
// It is unexported; call Run(ctx, Options).
type runner struct {
	cfg     config.Config       // Pinned release.
	hash    crypto.Hash         // Digest function of cfg.Checksum.
	dryRun  bool                // Whether to stop before fetching.
	workDir string              // Base directory for every filesystem access.
	probe   probe.VersionProbe  // Installed version source.
	fetcher fetch.Fetcher       // Archive source.
	placer  Placer              // Moves the extracted tree into place.
	state   install.State       // Current state machine step.
	tempDir string              // Scratch extraction directory, removed by cleanup.
}

// Run executes one installation run and is the public entry point for the CLI.
// It returns nil when the pinned release is already installed or was installed.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "get-meson")

	r, err := newRunner(opts)
	if err != nil {
		return err
	}

	defer r.cleanup(ctx)

	return r.run(ctx)
}

// newRunner validates the configuration and wires default collaborators.
func newRunner(opts *Options) (*runner, error) {
	cfg := opts.Config
	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	hash, err := cfg.Hash()
	if err != nil {
		return nil, err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "."
	}

	r := &runner{
		cfg:     cfg,
		hash:    hash,
		dryRun:  opts.DryRun,
		workDir: workDir,
		probe:   opts.Probe,
		fetcher: opts.Fetcher,
		placer:  opts.Placer,
		state:   install.StateCheck,
	}

	if r.probe == nil {
		r.probe = probe.NewExecProbe(
			filepath.Join(workDir, cfg.EntryPointPath()),
			probe.WithTimeout(cfg.ProbeTimeout),
		)
	}

	if r.fetcher == nil {
		fetchOptions := []fetch.Option{fetch.WithTimeout(cfg.Timeout)}
		if opts.Progress != nil {
			fetchOptions = append(fetchOptions, fetch.WithProgress(opts.Progress))
		}

		r.fetcher = fetch.NewHTTPFetcher(fetchOptions...)
	}

	if r.placer == nil {
		r.placer = archive.NewReplacer(filepath.Base(cfg.EntryPoint))
	}

	return r, nil
}

// run drives the state machine from CHECK to a terminal state.
func (r *runner) run(ctx context.Context) error {
	installed, err := r.check(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}

	if installed {
		if err = r.transition(ctx, install.StateInstalled); err != nil {
			return r.fail(ctx, err)
		}

		logger.Infof(ctx, "Found %s, skipping download.", r.cfg.Tool)

		return nil
	}

	if err = r.transition(ctx, install.StateNeedsFetch); err != nil {
		return r.fail(ctx, err)
	}

	if r.dryRun {
		return r.fail(ctx, &install.DryRunError{Target: r.cfg.ArchiveDir(), URL: r.cfg.ArchiveURL()})
	}

	data, err := r.download(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}

	if err = r.verify(ctx, data); err != nil {
		return r.fail(ctx, err)
	}

	if err = r.extract(ctx, data); err != nil {
		return r.fail(ctx, err)
	}

	if err = r.transition(ctx, install.StateDone); err != nil {
		return r.fail(ctx, err)
	}

	logger.Info(ctx, runHint(r.cfg))

	return nil
}

// check reports whether the installed entry point already reports the pinned version.
// A probe that cannot run the entry point is a fatal error.
func (r *runner) check(ctx context.Context) (bool, error) {
	logger.InfoKV(ctx, "Checking the installed version", "path", r.cfg.EntryPointPath())

	installedVersion, found, err := r.probe.Probe(ctx)
	if err != nil {
		return false, err
	}

	if !found {
		logger.InfoKV(ctx, "No installation found", "want", r.cfg.Version)
		return false, nil
	}

	if installedVersion != r.cfg.Version {
		logger.InfoKV(ctx, "Installed version differs",
			"installed", installedVersion,
			"want", r.cfg.Version,
			"relation", describeRelation(installedVersion, r.cfg.Version))

		return false, nil
	}

	return true, nil
}

// download fetches the pinned archive into memory.
func (r *runner) download(ctx context.Context) ([]byte, error) {
	if err := r.transition(ctx, install.StateFetching); err != nil {
		return nil, err
	}

	return r.fetcher.Fetch(ctx, r.cfg.ArchiveURL())
}

// verify compares the archive digest with the pinned checksum.
func (r *runner) verify(ctx context.Context, data []byte) error {
	if err := r.transition(ctx, install.StateVerifying); err != nil {
		return err
	}

	if err := checksum.Check(data, r.cfg.Checksum, r.hash); err != nil {
		if transitionErr := r.transition(ctx, install.StateInvalid); transitionErr != nil {
			return transitionErr
		}

		return err
	}

	logger.DebugKV(ctx, "Checksum verified", "algorithm", r.hash.String())

	return r.transition(ctx, install.StateValid)
}

// extract unpacks the archive next to the installation and moves it into place.
func (r *runner) extract(ctx context.Context, data []byte) error {
	if err := r.transition(ctx, install.StateExtracting); err != nil {
		return err
	}

	destination := filepath.Join(r.workDir, r.cfg.InstallDir)
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("prepare parent dir: %w", err)
	}

	tempDir, err := os.MkdirTemp(r.workDir, tempDirPattern)
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	r.tempDir = tempDir

	root, err := archive.Extract(ctx, data, tempDir, r.cfg.ArchiveDir())
	if err != nil {
		return err
	}

	if err = r.placer.Replace(ctx, root, destination); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Installed", "version", r.cfg.Version, "path", r.cfg.InstallDir)

	// The installation is already complete, so a failed copy is not fatal.
	if r.cfg.KeepArchive {
		if err = r.keepArchive(ctx, data); err != nil {
			logger.WarnKV(ctx, "Unable to keep the archive", "path", r.cfg.ArchiveFilename(), "error", err)
		}
	}

	return nil
}

// keepArchive stores the verified tarball next to the installation.
func (r *runner) keepArchive(ctx context.Context, data []byte) error {
	raw, err := checksum.Decode(r.cfg.Checksum)
	if err != nil {
		return err
	}

	path := filepath.Join(r.workDir, r.cfg.ArchiveFilename())
	if err = archive.SaveArchive(path, data, raw, r.hash); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Saved archive", "path", r.cfg.ArchiveFilename())

	return nil
}

// cleanup removes the scratch extraction directory.
func (r *runner) cleanup(ctx context.Context) {
	logger.DebugKV(ctx, "Run finished", "state", r.state.String())

	if r.tempDir == "" {
		return
	}

	if err := os.RemoveAll(r.tempDir); err != nil {
		logger.WarnKV(ctx, "Unable to remove temporary directory", "path", r.tempDir, "error", err)
	}
}
