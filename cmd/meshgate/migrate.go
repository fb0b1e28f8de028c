package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"meshgate/internal/config"
	"meshgate/internal/pkg/logger"
	"meshgate/internal/platform/postgres"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Manage the route store schema",
	Long:      `Apply, roll back or inspect the embedded migrations of the PostgreSQL route store.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{postgres.MigrateUp, postgres.MigrateDown, postgres.MigrateStatus},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Store.Driver != "postgres" {
			return fmt.Errorf("migrate requires store.driver=postgres, got %q", cfg.Store.Driver)
		}

		log, err := logger.New(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()
		log = log.With(zap.String("component", "migrations"), zap.String("command", args[0]))

		db, err := postgres.Open(cmd.Context(), cfg.Store.DSN, log)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.Migrate(cmd.Context(), db, args[0], log); err != nil {
			log.Error("Migration failed", zap.Error(err))
			return err
		}
		log.Info("Migration completed")
		return nil
	},
}

func SetupMigrateCmd() {
	rootCmd.AddCommand(migrateCmd)
}
