package main

import (
	"context"

	"storefront/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type poolOpener func(ctx context.Context) (*pgxpool.Pool, func(), error)

func newMigrateCmd(open poolOpener, newLogger func() *zap.Logger) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, closePool, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closePool()
			return database.RunMigrations(cmd.Context(), pool, newLogger())
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which migrations have been applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, closePool, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closePool()
			return database.MigrationStatus(cmd.Context(), pool, newLogger())
		},
	})

	return migrateCmd
}
