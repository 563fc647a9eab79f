// internal/repository/postgres/db.go
package postgres

import (
	"context"

	"subscription-service/internal/pkg/metrics"
	"subscription-service/internal/pkg/retry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Pool is the slice of *pgxpool.Pool the repositories use.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DB struct {
	pool    Pool
	policy  retry.Policy
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewDB(pool Pool, policy retry.Policy, m *metrics.Metrics, logger *zap.Logger) *DB {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{pool: pool, policy: policy, metrics: m, logger: logger}
}

// mutate runs a write under the retry policy. Transient failures that
// outlive every attempt come back as TransientStore errors; everything
// else is mapped once, without retrying.
func (db *DB) mutate(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := db.policy
	policy.OnRetry = func(attempt int, err error) {
		db.metrics.StoreRetries.WithLabelValues(op).Inc()
		db.logger.Warn("retrying store call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	err := retry.Do(ctx, policy, isTransient, fn)
	if err == nil {
		return nil
	}
	return mapError(op, err)
}
