// internal/app/core.go
package app

import (
	"context"
	"fmt"

	"subscription-service/internal/config"
	"subscription-service/internal/db"
	"subscription-service/internal/pkg/metrics"
	"subscription-service/internal/pkg/retry"
	"subscription-service/internal/repository/postgres"
	"subscription-service/internal/service/sweeper"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Core holds the store-side dependencies shared by the server and the one-shot commands.
type Core struct {
	Pool          *pgxpool.Pool
	DB            *postgres.DB
	Subscriptions *postgres.SubscriptionRepository
	Plans         *postgres.PlanRepository
	Users         *postgres.UserRepository
	Metrics       *metrics.Metrics
}

// NewCore connects to PostgreSQL and builds the repositories.
func NewCore(ctx context.Context, cfg config.AppConfig, m *metrics.Metrics, logger *zap.Logger) (*Core, error) {
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to PostgreSQL", zap.Int32("max_conns", pool.Config().MaxConns))

	policy := retry.Policy{Attempts: cfg.Retry.Attempts, Wait: cfg.Retry.Wait}
	dbWrapper := postgres.NewDB(pool, policy, m, logger)

	return &Core{
		Pool:          pool,
		DB:            dbWrapper,
		Subscriptions: postgres.NewSubscriptionRepository(dbWrapper),
		Plans:         postgres.NewPlanRepository(dbWrapper),
		Users:         postgres.NewUserRepository(dbWrapper),
		Metrics:       m,
	}, nil
}

func (c *Core) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// SweeperConfig translates the environment settings into a sweeper schedule.
func SweeperConfig(cfg config.AppConfig) (sweeper.Config, error) {
	sc := sweeper.DefaultConfig()
	sc.Timeout = cfg.Sweeper.Timeout
	if cfg.Sweeper.Interval > 0 {
		sc.Interval = cfg.Sweeper.Interval
		return sc, nil
	}

	h, m, err := config.ParseClock(cfg.Sweeper.DailyAt)
	if err != nil {
		return sweeper.Config{}, fmt.Errorf("sweeper schedule: %w", err)
	}
	sc.DailyHour, sc.DailyMinute = h, m
	return sc, nil
}
