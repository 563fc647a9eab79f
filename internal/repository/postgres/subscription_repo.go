// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"subscription-service/internal/domain/subscription"
	xerrors "subscription-service/internal/pkg/errors"
)

const constraintOneActive = "uq_subscriptions_one_active"

const subscriptionColumns = `id, user_id, plan_id, start_date, end_date, status, created_at, updated_at`

type SubscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts an ACTIVE subscription. The partial unique index rejects a
// second active row for the same user.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, plan_id, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	return r.db.mutate(ctx, "create subscription", func(ctx context.Context) error {
		return r.db.pool.QueryRow(ctx, query,
			sub.UserID, sub.PlanID, sub.StartDate, sub.EndDate, string(sub.Status),
		).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	})
}

// FindByID retrieves a subscription by ID
func (r *SubscriptionRepository) FindByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	sub, err := scanSubscription(r.db.pool.QueryRow(ctx, query, id))
	if isNoRows(err) {
		return nil, xerrors.NotFound("subscription not found")
	}
	if err != nil {
		return nil, mapError("find subscription", err)
	}
	return sub, nil
}

// FindActiveByUser returns the user's single ACTIVE subscription. More than
// one active row is reported as an integrity fault, never resolved here.
func (r *SubscriptionRepository) FindActiveByUser(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND status = 'ACTIVE'
		ORDER BY id
		LIMIT 2
	`

	subs, err := r.list(ctx, "find active subscription", query, userID)
	if err != nil {
		return nil, err
	}

	switch len(subs) {
	case 0:
		return nil, xerrors.NotFound("no active subscription")
	case 1:
		return subs[0], nil
	default:
		return nil, &xerrors.Error{
			Kind:       xerrors.KindIntegrity,
			Op:         "find active subscription",
			Message:    fmt.Sprintf("multiple active subscriptions for user %d", userID),
			ResourceID: userID,
		}
	}
}

// FindLatestByUser returns the most recently created subscription in any status
func (r *SubscriptionRepository) FindLatestByUser(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT 1
	`

	sub, err := scanSubscription(r.db.pool.QueryRow(ctx, query, userID))
	if isNoRows(err) {
		return nil, xerrors.NotFound("no subscription found")
	}
	if err != nil {
		return nil, mapError("find latest subscription", err)
	}
	return sub, nil
}

// ListByUser returns the user's subscription history, newest first
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64) ([]*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY id DESC
	`
	return r.list(ctx, "list subscriptions", query, userID)
}

// ListDue returns ACTIVE subscriptions whose end date is on or before asOf
func (r *SubscriptionRepository) ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'ACTIVE' AND end_date <= $1
		ORDER BY end_date, id
	`
	return r.list(ctx, "list due subscriptions", query, subscription.DateOf(asOf))
}

// UpdatePlan moves an ACTIVE subscription to another plan and end date.
// start_date is left alone.
func (r *SubscriptionRepository) UpdatePlan(ctx context.Context, id, planID int64, endDate time.Time) (*subscription.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET plan_id = $2, end_date = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING ` + subscriptionColumns

	var sub *subscription.Subscription
	err := r.db.mutate(ctx, "update subscription plan", func(ctx context.Context) error {
		var err error
		sub, err = scanSubscription(r.db.pool.QueryRow(ctx, query, id, planID, endDate))
		if isNoRows(err) {
			return xerrors.NotFound("no active subscription")
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// UpdateStatus applies from -> to only while the row still holds from, so a
// transition lost to a concurrent writer reports NotFound instead of
// overwriting a terminal status.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id int64, from, to subscription.SubscriptionStatus) (*subscription.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + subscriptionColumns

	var sub *subscription.Subscription
	err := r.db.mutate(ctx, "update subscription status", func(ctx context.Context) error {
		var err error
		sub, err = scanSubscription(r.db.pool.QueryRow(ctx, query, id, string(from), string(to)))
		if isNoRows(err) {
			return xerrors.NotFound(fmt.Sprintf("subscription %d is not %s", id, from))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Expire moves a row to EXPIRED only while it is still ACTIVE and still due
// as of asOf. A plan change that pushed end_date past asOf after the scan
// leaves the row untouched and reports NotFound.
func (r *SubscriptionRepository) Expire(ctx context.Context, id int64, asOf time.Time) (*subscription.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET status = 'EXPIRED', updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE' AND end_date <= $2
		RETURNING ` + subscriptionColumns

	var sub *subscription.Subscription
	err := r.db.mutate(ctx, "expire subscription", func(ctx context.Context) error {
		var err error
		sub, err = scanSubscription(r.db.pool.QueryRow(ctx, query, id, subscription.DateOf(asOf)))
		if isNoRows(err) {
			return xerrors.NotFound(fmt.Sprintf("subscription %d is no longer due", id))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *SubscriptionRepository) list(ctx context.Context, op, query string, args ...any) ([]*subscription.Subscription, error) {
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return subs, nil
}

func scanSubscription(row scanner) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	var status string

	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.StartDate, &sub.EndDate,
		&status, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Status = subscription.SubscriptionStatus(status)
	if !sub.Status.Valid() {
		return nil, xerrors.Integrity(fmt.Sprintf("subscription %d has unknown status %q", sub.ID, status))
	}
	sub.StartDate = subscription.DateOf(sub.StartDate)
	sub.EndDate = subscription.DateOf(sub.EndDate)
	return &sub, nil
}
