package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/realqkqk123fr/temp-backend/pkg/config"
	"github.com/realqkqk123fr/temp-backend/pkg/database"
)

func migrateCmd(load func() (*config.Config, error)) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			db, err := database.NewPostgres(ctx, database.PostgresConfigFrom(cfg.Database, false))
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			if !statusOnly {
				if err := db.Migrate(ctx); err != nil {
					return err
				}
			}

			version, err := db.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("database at migration version %d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "print the current version without migrating")

	return cmd
}
