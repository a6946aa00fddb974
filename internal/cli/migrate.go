package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/glowup/glowup-core/config"
	"github.com/glowup/glowup-core/internal/infrastructure/persistence/postgres"
	"github.com/glowup/glowup-core/internal/infrastructure/persistence/sqlite"
)

func newMigrateCommand(_ *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Apply, roll back or list schema migrations",
		Long: `Manage the progress store schema.

  up      apply all pending migrations (default)
  down    roll back the latest migration (postgres only)
  status  list migrations and when they were applied`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return migrate(cmd.Context(), cmd.OutOrStdout(), cfg, action)
		},
	}
	return cmd
}

func migrate(ctx context.Context, out io.Writer, cfg *config.Config, action string) error {
	switch action {
	case "up", "down", "status":
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or status)", action)
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		conn, err := postgres.Connect(ctx, cfg.Database.URL, postgres.PoolOptionsFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer conn.Close()
		return migratePostgres(ctx, out, postgres.NewMigrator(conn), action)

	case config.DriverSQLite:
		return migrateSQLite(ctx, out, cfg.Storage.SQLitePath, action)

	default:
		return fmt.Errorf("storage driver %q has no schema", cfg.Storage.Driver)
	}
}

func migratePostgres(ctx context.Context, out io.Writer, m *postgres.Migrator, action string) error {
	switch action {
	case "up":
		n, err := m.Migrate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "applied %d migration(s)\n", n)
		return nil

	case "down":
		version, err := m.Rollback(ctx)
		if err != nil {
			return err
		}
		if version == 0 {
			fmt.Fprintln(out, "nothing to roll back")
			return nil
		}
		fmt.Fprintf(out, "rolled back migration %d\n", version)
		return nil
	}

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
	for _, mig := range status {
		applied := "pending"
		if mig.IsApplied {
			applied = mig.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", mig.Version, mig.Name, applied)
	}
	return tw.Flush()
}

// migrateSQLite relies on Open, which applies the idempotent schema.
func migrateSQLite(ctx context.Context, out io.Writer, path, action string) error {
	if action == "down" {
		return fmt.Errorf("the sqlite driver does not support rollback")
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: schema up to date (%d statements)\n", path, len(sqlite.Migrations()))
	return nil
}
