// Package commands implements the finca-admin CLI.
package commands

import (
	"github.com/spf13/cobra"

	"finca/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
// Settings are read from the environment when a subcommand runs.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "finca-admin",
		Short: "Administration tasks for the farm ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newTokenCommand(),
		newContributorsCommand(),
		newMigrateCommand(),
		newSummaryCommand(),
		newMirrorCheckCommand(),
	)

	return rootCmd
}

// loadConfig is swapped in tests.
var loadConfig = config.Load
