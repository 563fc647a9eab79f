package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"subscription-service/internal/domain/subscription"
	xerrors "subscription-service/internal/pkg/errors"
	"subscription-service/internal/pkg/metrics"
	"subscription-service/internal/pkg/retry"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var subCols = []string{"id", "user_id", "plan_id", "start_date", "end_date", "status", "created_at", "updated_at"}

func newTestDB(t *testing.T) (pgxmock.PgxPoolIface, *DB, *metrics.Metrics) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	m := metrics.NewNop()
	db := NewDB(mock, retry.Policy{Attempts: 3}, m, zap.NewNop())
	return mock, db, m
}

func date(s string) time.Time {
	d, err := subscription.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSubscriptionRepository_Create(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantKind  xerrors.Kind
		wantID    int64
		retries   float64
	}{
		{
			name: "inserted",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("INSERT INTO subscriptions").
					WithArgs(int64(42), int64(2), date("2024-01-01"), date("2024-01-31"), "ACTIVE").
					WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(10), now, now))
			},
			wantID: 10,
		},
		{
			name: "second active row rejected by index",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("INSERT INTO subscriptions").
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraintOneActive})
			},
			wantKind: xerrors.KindConflict,
		},
		{
			name: "unknown user",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("INSERT INTO subscriptions").
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: "23503"})
			},
			wantKind: xerrors.KindNotFound,
		},
		{
			name: "transient failure retried then succeeds",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("INSERT INTO subscriptions").
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: "40001"})
				mock.ExpectQuery("INSERT INTO subscriptions").
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))
			},
			wantID:  11,
			retries: 1,
		},
		{
			name: "transient failure exhausts attempts",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				for i := 0; i < 3; i++ {
					mock.ExpectQuery("INSERT INTO subscriptions").
						WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
						WillReturnError(&pgconn.PgError{Code: "08006"})
				}
			},
			wantKind: xerrors.KindTransient,
			retries:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, db, m := newTestDB(t)
			tt.setupMock(mock)
			repo := NewSubscriptionRepository(db)

			sub := &subscription.Subscription{
				UserID:    42,
				PlanID:    2,
				StartDate: date("2024-01-01"),
				EndDate:   date("2024-01-31"),
				Status:    subscription.StatusActive,
			}
			err := repo.Create(context.Background(), sub)

			if tt.wantKind != xerrors.KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, xerrors.KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, sub.ID)
			}
			assert.Equal(t, tt.retries, testutil.ToFloat64(m.StoreRetries.WithLabelValues("create subscription")))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSubscriptionRepository_FindActiveByUser(t *testing.T) {
	now := time.Now()

	t.Run("single active row", func(t *testing.T) {
		mock, db, _ := newTestDB(t)
		mock.ExpectQuery("FROM subscriptions").
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows(subCols).
				AddRow(int64(1), int64(42), int64(2), date("2024-01-01"), date("2024-01-31"), "ACTIVE", now, now))

		sub, err := NewSubscriptionRepository(db).FindActiveByUser(context.Background(), 42)

		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, "2024-01-31", sub.EndDate.Format(subscription.DateLayout))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("none", func(t *testing.T) {
		mock, db, _ := newTestDB(t)
		mock.ExpectQuery("FROM subscriptions").
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows(subCols))

		_, err := NewSubscriptionRepository(db).FindActiveByUser(context.Background(), 42)

		assert.ErrorIs(t, err, xerrors.ErrNotFound)
	})

	t.Run("two active rows is an integrity fault", func(t *testing.T) {
		mock, db, _ := newTestDB(t)
		mock.ExpectQuery("FROM subscriptions").
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows(subCols).
				AddRow(int64(1), int64(42), int64(2), date("2024-01-01"), date("2024-01-31"), "ACTIVE", now, now).
				AddRow(int64(2), int64(42), int64(3), date("2024-01-02"), date("2024-02-01"), "ACTIVE", now, now))

		_, err := NewSubscriptionRepository(db).FindActiveByUser(context.Background(), 42)

		assert.Equal(t, xerrors.KindIntegrity, xerrors.KindOf(err))
	})

	t.Run("unknown status is an integrity fault", func(t *testing.T) {
		mock, db, _ := newTestDB(t)
		mock.ExpectQuery("FROM subscriptions").
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows(subCols).
				AddRow(int64(1), int64(42), int64(2), date("2024-01-01"), date("2024-01-31"), "PAUSED", now, now))

		_, err := NewSubscriptionRepository(db).FindActiveByUser(context.Background(), 42)

		assert.Equal(t, xerrors.KindIntegrity, xerrors.KindOf(err))
	})
}

func TestSubscriptionRepository_UpdateStatus(t *testing.T) {
	now := time.Now()

	t.Run("applied", func(t *testing.T) {
		mock, db, _ := newTestDB(t)
		mock.ExpectQuery("UPDATE subscriptions").
			WithArgs(int64(5), "ACTIVE", "EXPIRED").
			WillReturnRows(pgxmock.NewRows(subCols).
				AddRow(int64(5), int64(42), int64(2), date("2024-01-01"), date("2024-01-31"), "EXPIRED", now, now))

		sub, err := NewSubscriptionRepository(db).UpdateStatus(context.Background(), 5, subscription.StatusActive, subscription.StatusExpired)

		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, sub.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row no longer in from status", func(t *testing.T) {
		mock, db, _ := newTestDB(t)
		mock.ExpectQuery("UPDATE subscriptions").
			WithArgs(int64(5), "ACTIVE", "EXPIRED").
			WillReturnRows(pgxmock.NewRows(subCols))

		_, err := NewSubscriptionRepository(db).UpdateStatus(context.Background(), 5, subscription.StatusActive, subscription.StatusExpired)

		assert.ErrorIs(t, err, xerrors.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSubscriptionRepository_Expire(t *testing.T) {
	now := time.Now()

	t.Run("still due", func(t *testing.T) {
		mock, db, _ := newTestDB(t)
		mock.ExpectQuery("WHERE id = \\$1 AND status = 'ACTIVE' AND end_date <= \\$2").
			WithArgs(int64(5), date("2024-02-01")).
			WillReturnRows(pgxmock.NewRows(subCols).
				AddRow(int64(5), int64(42), int64(2), date("2024-01-01"), date("2024-01-31"), "EXPIRED", now, now))

		sub, err := NewSubscriptionRepository(db).Expire(context.Background(), 5, time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC))

		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, sub.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("extended or cancelled since the scan", func(t *testing.T) {
		mock, db, m := newTestDB(t)
		mock.ExpectQuery("UPDATE subscriptions").
			WithArgs(int64(5), date("2024-02-01")).
			WillReturnRows(pgxmock.NewRows(subCols))

		_, err := NewSubscriptionRepository(db).Expire(context.Background(), 5, date("2024-02-01"))

		assert.ErrorIs(t, err, xerrors.ErrNotFound)
		assert.Zero(t, testutil.ToFloat64(m.StoreRetries.WithLabelValues("expire subscription")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSubscriptionRepository_ListDue(t *testing.T) {
	now := time.Now()
	mock, db, _ := newTestDB(t)
	mock.ExpectQuery("WHERE status = 'ACTIVE' AND end_date <= \\$1").
		WithArgs(date("2024-02-01")).
		WillReturnRows(pgxmock.NewRows(subCols).
			AddRow(int64(1), int64(42), int64(2), date("2024-01-01"), date("2024-01-31"), "ACTIVE", now, now))

	subs, err := NewSubscriptionRepository(db).ListDue(context.Background(), time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(1), subs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_UpdatePlan(t *testing.T) {
	now := time.Now()
	mock, db, _ := newTestDB(t)
	mock.ExpectQuery("UPDATE subscriptions").
		WithArgs(int64(1), int64(3), date("2024-02-14")).
		WillReturnRows(pgxmock.NewRows(subCols).
			AddRow(int64(1), int64(42), int64(3), date("2024-01-01"), date("2024-02-14"), "ACTIVE", now, now))

	sub, err := NewSubscriptionRepository(db).UpdatePlan(context.Background(), 1, 3, date("2024-02-14"))

	require.NoError(t, err)
	assert.Equal(t, int64(3), sub.PlanID)
	assert.Equal(t, "2024-01-01", sub.StartDate.Format(subscription.DateLayout))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"caller cancelled", context.Canceled, false},
		{"caller deadline", context.DeadlineExceeded, false},
		{"plain error", errors.New("boom"), false},
		{"typed not found", xerrors.NotFound("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}
