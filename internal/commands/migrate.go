package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"finca/internal/storage"
)

func newMigrateCommand() *cobra.Command {
	var (
		dbPath string
		status bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = loadConfig().SQLiteDBPath
			}
			if !status {
				if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
					return fmt.Errorf("creating db directory: %w", err)
				}
				if err := storage.RunMigrations(dbPath); err != nil {
					return err
				}
			}

			version, dirty, err := storage.MigrationVersion(dbPath)
			if err != nil {
				return fmt.Errorf("reading schema version: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: schema version %d\n", dbPath, version)
			if dirty {
				fmt.Fprintln(out, "warning: last migration did not complete")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database path (defaults to SQLITE_DB_PATH)")
	cmd.Flags().BoolVar(&status, "status", false, "only report the current version")

	return cmd
}
