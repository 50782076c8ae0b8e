package pinner

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/oshokin/get-meson/internal/archive"
	"github.com/oshokin/get-meson/internal/checksum"
	"github.com/oshokin/get-meson/internal/config"
	"github.com/oshokin/get-meson/internal/domain/install"
	"github.com/oshokin/get-meson/internal/fetch"
	"github.com/oshokin/get-meson/internal/logger"
)

// Options contains inputs for the pinner entry point.
type Options struct {
	// ConfigPath is where the updated configuration is written.
	ConfigPath string
	// Config is the current configuration; only version and checksum change.
	Config config.Config
	// Version is the release to pin.
	Version string
	// Progress receives the download progress bar; nil disables it.
	Progress io.Writer
	// Fetcher overrides the HTTP fetcher.
	Fetcher fetch.Fetcher
}

// pinner computes a new pin. Callers use Run.
type pinner struct {
	// cfg is the configuration being moved to the new release.
	cfg config.Config
	// configPath is where cfg is saved.
	configPath string
	// fetcher downloads the archive.
	fetcher fetch.Fetcher
}

// Run downloads the release, computes its digest and saves the updated config.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "get-meson-pin")

	version := strings.TrimSpace(opts.Version)
	if _, err := semver.StrictNewVersion(version); err != nil {
		return fmt.Errorf("invalid version %q: %w", opts.Version, err)
	}

	p := &pinner{
		cfg:        opts.Config,
		configPath: opts.ConfigPath,
		fetcher:    opts.Fetcher,
	}

	// The checksum is recomputed below; keep the old one until then.
	p.cfg.Version = version

	if p.configPath == "" {
		p.configPath = config.DefaultConfigFilename
	}

	if p.fetcher == nil {
		fetchOptions := []fetch.Option{fetch.WithTimeout(p.cfg.Timeout)}
		if opts.Progress != nil {
			fetchOptions = append(fetchOptions, fetch.WithProgress(opts.Progress))
		}

		p.fetcher = fetch.NewHTTPFetcher(fetchOptions...)
	}

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("pin %s: %w", version, err)
	}

	return nil
}

// Run fetches, hashes, validates and saves.
func (p *pinner) Run(ctx context.Context) error {
	hash, err := p.cfg.Hash()
	if err != nil {
		return err
	}

	data, err := p.fetcher.Fetch(ctx, p.cfg.ArchiveURL())
	if err != nil {
		return err
	}

	sum, err := checksum.Sum(data, hash)
	if err != nil {
		return err
	}

	top, err := archive.TopLevel(data)
	if err != nil {
		return err
	}

	if top != p.cfg.ArchiveDir() {
		return &install.LayoutError{Expected: p.cfg.ArchiveDir(), Actual: top}
	}

	p.cfg = p.cfg.WithVersion(p.cfg.Version, sum)

	logger.InfoKV(ctx, "Saving configuration", "path", p.configPath)

	if err = config.Save(p.configPath, &p.cfg); err != nil {
		return err
	}

	p.printNextSteps(ctx)

	return nil
}

// printNextSteps logs the new pin and how to apply it.
func (p *pinner) printNextSteps(ctx context.Context) {
	var builder strings.Builder

	builder.WriteString("Pinned ")
	builder.WriteString(p.cfg.ArchiveDir())
	builder.WriteString("\n")
	builder.WriteString(p.cfg.Algorithm)
	builder.WriteString(": ")
	builder.WriteString(p.cfg.Checksum)
	builder.WriteString("\nRun get-meson -c ")
	builder.WriteString(p.configPath)
	builder.WriteString(" to install it.")

	logger.Info(ctx, builder.String())
}
