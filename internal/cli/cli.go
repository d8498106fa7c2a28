// Package cli builds the cobra root command shared by the stateviz binaries.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/stateviz/internal/config"
	"github.com/relabs-tech/stateviz/internal/logging"
)

// NewCommand returns a root command that loads the global configuration from
// --config before calling run.
func NewCommand(use, short string, run func() error) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			if err := config.InitGlobal(path); err != nil {
				return fmt.Errorf("failed to load config from %s: %w", path, err)
			}
			return run()
		},
	}
	cmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "Path to configuration file (KEY=VALUE)")
	return cmd
}

// Execute runs cmd and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		log := logging.New("info", os.Stderr)
		log.Fatal().Err(err).Str("command", cmd.Name()).Msg("fatal")
	}
}
