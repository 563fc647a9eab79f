package main

import (
	"subscription-service/internal/db"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status|reset]",
	Short: "Apply or inspect database migrations",
	Long: `Runs a goose command against the embedded migrations.

Examples:
  subscriptions migrate          # apply pending migrations
  subscriptions migrate status   # list applied and pending versions
  subscriptions migrate down     # roll back the latest version`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "status", "reset"},
	RunE: func(cmd *cobra.Command, args []string) error {
		command := "up"
		if len(args) == 1 {
			command = args[0]
		}

		if err := db.Migrate(cmd.Context(), cfg.DatabaseURL, command); err != nil {
			return err
		}
		logger.Info("migrations finished", zap.String("command", command))
		return nil
	},
}
