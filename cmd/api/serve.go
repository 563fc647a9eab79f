package main

import (
	"subscription-service/internal/app"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the expiration sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.NewServer(cfg, logger).Run(cmd.Context())
	},
}
