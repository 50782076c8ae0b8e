package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/get-meson/internal/service/pinner"
)

// newPinCommand builds the `pin` subcommand sharing the root flags.
func newPinCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "pin <version>",
		Short: "Download a release and pin its checksum in the configuration.",
		Long: `Download the release archive for <version>, compute its digest with the
configured algorithm, check that it unpacks to the expected directory and write
the configuration file with the new version and checksum.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f.configPath)
			if err != nil {
				return err
			}

			options := &pinner.Options{
				ConfigPath: f.configPath,
				Config:     cfg,
				Version:    args[0],
				Progress:   progressWriter(cmd, f.noProgress),
			}

			return pinner.Run(cmd.Context(), options)
		},
	}
}
