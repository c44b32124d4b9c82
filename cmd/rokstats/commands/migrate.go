package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rokstats/rokstats/internal/application/query"
	"github.com/rokstats/rokstats/internal/infrastructure/persistence/postgres"
)

// NewMigrateCommand creates the migrate command with up, down and status.
func NewMigrateCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	withMigrator := func(fn func(cmd *cobra.Command, m *postgres.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			conn, err := connectDatabase(cmd.Context(), cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer conn.Close()
			return fn(cmd, postgres.NewMigrator(conn))
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
			n, err := m.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last applied migration",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
			version, err := m.Rollback(cmd.Context())
			if err != nil {
				return err
			}
			if version == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %03d\n", version)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
			status, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}

			tbl := table.NewWriter()
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"Version", "Name", "Applied At"})
			for _, mig := range status {
				applied := "pending"
				if mig.IsApplied {
					applied = query.FormatTime(mig.AppliedAt)
				}
				tbl.AppendRow(table.Row{fmt.Sprintf("%03d", mig.Version), mig.Name, applied})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())
			return nil
		}),
	})

	return cmd
}
