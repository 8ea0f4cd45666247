package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/database/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "Only list applied migrations")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}
	defer pool.Close()

	if !mustGetBool(cmd, "status") {
		applied, err := pool.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if len(applied) == 0 {
			fmt.Println("Database is up to date")
		}
		for _, name := range applied {
			fmt.Printf("Applied %s\n", name)
		}
	}

	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d migration(s) applied:\n", len(versions))
	for _, v := range versions {
		fmt.Printf("  %s\n", v)
	}
	return nil
}
