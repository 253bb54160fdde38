package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"finca/internal/core"
)

func newContributorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contributors",
		Short: "List the family members who can contribute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range core.KnownContributors() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}
