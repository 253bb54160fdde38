package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"finca/internal/backend"
	"finca/internal/core"
	"finca/internal/sheets"
)

func newMirrorCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mirror-check",
		Short: "Read the spreadsheet mirror and print its balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if !cfg.SheetsEnabled() {
				return fmt.Errorf("GOOGLE_SPREADSHEET_ID is not set")
			}

			bcfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return err
			}
			mirror, err := backend.NewMirror(cmd.Context(), bcfg, cliLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			rows, err := mirror.ReadRows(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading mirror: %w", err)
			}
			cs, es, err := sheets.Split(rows)
			if err != nil {
				return err
			}

			b := core.Balance(cs, es)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d aportes, %d facturas\n", len(cs), len(es))
			fmt.Fprintf(out, "Balance: %.2f (%s)\n", b.Net, b.Status)
			return nil
		},
	}
}
