package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"finca/internal/backend"
	"finca/internal/core"
	applog "finca/internal/log"
)

func newSummaryCommand() *cobra.Command {
	var (
		recent  int
		asJSON  bool
		backing string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard computed from the record store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if recent < 0 || recent > 100 {
				return fmt.Errorf("--recent must be between 0 and 100, got %d", recent)
			}

			cfg := loadConfig()
			if backing != "" {
				cfg.DataBackend = backing
			}
			bcfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return err
			}
			store, err := backend.NewFactory(cliLogger(cmd.ErrOrStderr())).CreateBackend(cmd.Context(), bcfg)
			if err != nil {
				return err
			}
			defer store.Close()

			dash, err := loadDashboard(cmd.Context(), store, recent)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(dash)
			}
			printDashboard(cmd.OutOrStdout(), dash)
			return nil
		},
	}

	cmd.Flags().IntVar(&recent, "recent", core.DefaultRecentLimit, "number of recent records to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	cmd.Flags().StringVar(&backing, "backend", "", "record store (defaults to DATA_BACKEND)")

	return cmd
}

func loadDashboard(ctx context.Context, store *backend.BackendResult, recent int) (core.Dashboard, error) {
	var (
		es []core.Expense
		cs []core.Contribution
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		es, err = store.Expenses.ListExpenses(gctx)
		return err
	})
	g.Go(func() (err error) {
		cs, err = store.Contributions.ListContributions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Dashboard{}, fmt.Errorf("loading records: %w", err)
	}
	return core.BuildDashboard(cs, es, recent), nil
}

func printDashboard(w io.Writer, d core.Dashboard) {
	fmt.Fprintf(w, "Aportes:  %12.2f\n", d.Balance.Contributions)
	fmt.Fprintf(w, "Facturas: %12.2f\n", d.Balance.Expenses)
	fmt.Fprintf(w, "Balance:  %12.2f (%s)\n", d.Balance.Net, d.Balance.Status)

	if len(d.ByContributor) > 0 {
		fmt.Fprintln(w, "\nPor aportante:")
		for _, ct := range d.ByContributor {
			fmt.Fprintf(w, "  %-16s %12.2f\n", ct.Contributor, ct.Amount)
		}
	}
	if len(d.RecentExpenses) > 0 {
		fmt.Fprintln(w, "\nÚltimas facturas:")
		for _, e := range d.RecentExpenses {
			fmt.Fprintf(w, "  %s  %-24s %12.2f\n", e.Date, e.Concept, e.Amount)
		}
	}
	if len(d.RecentContributions) > 0 {
		fmt.Fprintln(w, "\nÚltimos aportes:")
		for _, c := range d.RecentContributions {
			fmt.Fprintf(w, "  %s  %-24s %12.2f\n", c.Date, c.Contributor, c.Amount)
		}
	}
}

// cliLogger keeps backend chatter off stdout so output stays pipeable.
func cliLogger(w io.Writer) *slog.Logger {
	return applog.New(applog.Config{
		Level:     slog.LevelWarn,
		Format:    applog.FormatText,
		Component: applog.ComponentBackend,
		Output:    w,
	}).Logger
}
