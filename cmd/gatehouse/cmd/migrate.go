package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfinch/gatehouse/config"
	postgresstorage "github.com/mfinch/gatehouse/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.ResolveSecrets(ctx); err != nil {
			return fmt.Errorf("failed to resolve secrets: %w", err)
		}
		if cfg.Storage.Backend != "postgres" {
			return fmt.Errorf("storage backend %q has no migrations to run", cfg.Storage.Backend)
		}
		if cfg.Storage.DSN == "" {
			return errors.New("storage.dsn is required")
		}

		if err := postgresstorage.RunMigrations(ctx, cfg.Storage.DSN); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Println("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
}
