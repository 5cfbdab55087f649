package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alem-hub/mastery-tracker/config"
	"github.com/alem-hub/mastery-tracker/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

var errNotPostgres = errors.New("migrate: only the postgres driver has managed migrations; sqlite migrates on open")

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator, log *logger.Logger) error {
					n, err := m.Migrate(ctx)
					if err != nil {
						return err
					}
					log.Info("migrations applied", logger.Int("count", n))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest applied migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator, log *logger.Logger) error {
					v, err := m.Rollback(ctx)
					if err != nil {
						return err
					}
					if v == 0 {
						log.Info("nothing to roll back")
						return nil
					}
					log.Info("migration rolled back", logger.Int("version", v))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator, _ *logger.Logger) error {
					migrations, err := m.Status(ctx)
					if err != nil {
						return err
					}
					return printStatus(cmd.OutOrStdout(), migrations)
				})
			},
		},
	)
	return migrateCmd
}

// withMigrator connects to postgres and runs fn with a migrator.
func withMigrator(ctx context.Context, fn func(ctx context.Context, m *postgres.Migrator, log *logger.Logger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		return errNotPostgres
	}

	log := setupLogger(cfg, os.Stderr)
	defer func() { _ = log.Sync() }()

	conn, err := connectPostgres(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, postgres.NewMigrator(conn), log)
}

func printStatus(out io.Writer, migrations []postgres.Migration) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, m := range migrations {
		applied := "no"
		if m.IsApplied {
			applied = m.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	return w.Flush()
}
