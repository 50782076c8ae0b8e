package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/get-meson/internal/config"
	"github.com/oshokin/get-meson/internal/domain/install"
	"github.com/oshokin/get-meson/internal/logger"
	"github.com/oshokin/get-meson/internal/service/installer"
	"github.com/oshokin/get-meson/internal/version"
)

const (
	// exitFailure is returned for every fatal error.
	exitFailure = 1
	// exitInstallRequired is returned by a dry run that would have installed.
	exitInstallRequired = 2
)

var errUnknownLogLevel = errors.New("unknown log level")

// flags holds the values of the command-line flags.
type flags struct {
	// configPath is the path to the configuration file.
	configPath string
	// logLevel is the minimum level of printed messages.
	logLevel string
	// dryRun stops before downloading anything.
	dryRun bool
	// noProgress hides the download progress bar.
	noProgress bool
}

// newRootCommand builds the get-meson command tree.
func newRootCommand() *cobra.Command {
	f := new(flags)

	rootCmd := &cobra.Command{
		Use:   "get-meson",
		Short: "Install the pinned Meson release into ./meson-portable.",
		Long: `Make sure the pinned Meson release is unpacked in the current directory.

If meson-portable/meson.py already reports the pinned version nothing happens.
Otherwise the release tarball is downloaded, its checksum is verified, its
layout is checked and it replaces meson-portable.

Exit status is 0 on success, 2 when --dry-run finds that an installation is
needed and 1 on any error.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(f.logLevel)
			if !ok {
				return fmt.Errorf("%q: %w", f.logLevel, errUnknownLogLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f.configPath)
			if err != nil {
				return err
			}

			options := &installer.Options{
				Config:   cfg,
				DryRun:   f.dryRun,
				Progress: progressWriter(cmd, f.noProgress),
			}

			return installer.Run(cmd.Context(), options)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&f.noProgress, "no-progress", false, "do not show the download progress bar")
	rootCmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "only report whether an installation is needed")

	rootCmd.AddCommand(newPinCommand(f))
	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// Execute runs the get-meson CLI and exits with a status describing the outcome.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	code := run(ctx, os.Args[1:], os.Stderr)

	stop()
	logger.Sync()
	os.Exit(code)
}

// run executes the command tree with args and returns the process exit status.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	rootCmd := newRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	_, _ = fmt.Fprintln(stderr, "ERROR:", err)

	return exitCode(err)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, install.ErrInstallRequired):
		return exitInstallRequired
	default:
		return exitFailure
	}
}

// loadConfig reads an explicitly requested file strictly and falls back to the
// built-in pin when the default file is absent.
func loadConfig(cmd *cobra.Command, path string) (config.Config, error) {
	if cmd.Flags().Changed("config") {
		cfg, err := config.Load(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("load configuration: %w", err)
		}

		return cfg, nil
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load configuration: %w", err)
	}

	return cfg, nil
}

// progressWriter returns where the progress bar goes, or nil when disabled.
func progressWriter(cmd *cobra.Command, disabled bool) io.Writer {
	if disabled {
		return nil
	}

	return cmd.ErrOrStderr()
}
