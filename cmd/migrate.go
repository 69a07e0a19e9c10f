package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	config "ops-task-service.com/ops-task-service/internal/configs"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the ops_tasks and infra_logs tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		cfg := config.Load()
		logger := config.NewLogger(cfg.LogLevel)

		db, err := config.NewDatabaseClient(cfg.DatabaseDriver, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		if err := config.Migrate(db); err != nil {
			return err
		}

		logger.WithField("driver", cfg.DatabaseDriver).Info("migration finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
