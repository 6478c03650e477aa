package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-phone-auth/config"
	"github.com/goliatone/go-phone-auth/migrations"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrationDB(cmd.Context(), *configPath, func(ctx context.Context, db *sql.DB, dialect string) error {
				if err := migrations.Up(ctx, db, dialect); err != nil {
					return err
				}
				return printVersion(cmd, ctx, db, dialect)
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrationDB(cmd.Context(), *configPath, func(ctx context.Context, db *sql.DB, dialect string) error {
					if err := migrations.Down(ctx, db, dialect); err != nil {
						return err
					}
					return printVersion(cmd, ctx, db, dialect)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrationDB(cmd.Context(), *configPath, func(ctx context.Context, db *sql.DB, dialect string) error {
					return printVersion(cmd, ctx, db, dialect)
				})
			},
		},
	)
	return cmd
}

// withMigrationDB opens the configured database without running the
// automatic migration done by loadPortal
func withMigrationDB(ctx context.Context, configPath string, fn func(ctx context.Context, db *sql.DB, dialect string) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	p := &portal{cfg: cfg}
	if err := p.openDB(ctx); err != nil {
		return err
	}
	defer p.Close()

	return fn(ctx, p.sqldb, migrations.Dialect(cfg.Persistence.Driver))
}

func printVersion(cmd *cobra.Command, ctx context.Context, db *sql.DB, dialect string) error {
	v, err := migrations.Version(ctx, db, dialect)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return err
}
