package main

import (
	"fmt"

	"subscription-service/internal/app"
	"subscription-service/internal/pkg/metrics"
	subscriptionUsecase "subscription-service/internal/service/subscription"
	"subscription-service/internal/service/sweeper"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire every due subscription once and exit",
	Long: `Runs a single expiration pass as of today. Useful from an external
scheduler when the in-process sweeper is disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m := metrics.NewNop()

		core, err := app.NewCore(ctx, cfg, m, logger)
		if err != nil {
			return err
		}
		defer core.Close()

		sweepCfg, err := app.SweeperConfig(cfg)
		if err != nil {
			return err
		}

		engine := subscriptionUsecase.NewSubscriptionService(core.Subscriptions, core.Plans, nil, nil, m, logger)
		expired, err := sweeper.New(engine, sweepCfg, nil, m, logger).RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("sweep failed after expiring %d subscriptions: %w", expired, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "expired %d subscriptions\n", expired)
		return nil
	},
}
