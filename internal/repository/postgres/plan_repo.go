// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"

	"subscription-service/internal/domain/subscription"
	xerrors "subscription-service/internal/pkg/errors"
)

const planColumns = `id, name, price, features, duration_days, created_at`

type PlanRepository struct {
	db *DB
}

func NewPlanRepository(db *DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Create creates a new plan
func (r *PlanRepository) Create(ctx context.Context, plan *subscription.Plan) error {
	query := `
		INSERT INTO plans (name, price, features, duration_days)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	return r.db.mutate(ctx, "create plan", func(ctx context.Context) error {
		return r.db.pool.QueryRow(ctx, query,
			plan.Name, plan.Price, plan.Features, plan.DurationDays,
		).Scan(&plan.ID, &plan.CreatedAt)
	})
}

// FindByID retrieves a plan by ID
func (r *PlanRepository) FindByID(ctx context.Context, id int64) (*subscription.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`

	plan, err := scanPlan(r.db.pool.QueryRow(ctx, query, id))
	if isNoRows(err) {
		return nil, xerrors.NotFound("plan not found")
	}
	if err != nil {
		return nil, mapError("find plan", err)
	}
	return plan, nil
}

// FindByName retrieves a plan by its unique name
func (r *PlanRepository) FindByName(ctx context.Context, name string) (*subscription.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE name = $1`

	plan, err := scanPlan(r.db.pool.QueryRow(ctx, query, name))
	if isNoRows(err) {
		return nil, xerrors.NotFound("plan not found")
	}
	if err != nil {
		return nil, mapError("find plan", err)
	}
	return plan, nil
}

// List pages through plans in id order
func (r *PlanRepository) List(ctx context.Context, skip, limit int) ([]*subscription.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY id OFFSET $1 LIMIT $2`

	rows, err := r.db.pool.Query(ctx, query, skip, limit)
	if err != nil {
		return nil, mapError("list plans", err)
	}
	defer rows.Close()

	plans := make([]*subscription.Plan, 0)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, mapError("list plans", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list plans", err)
	}
	return plans, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (*subscription.Plan, error) {
	var plan subscription.Plan
	if err := row.Scan(&plan.ID, &plan.Name, &plan.Price, &plan.Features, &plan.DurationDays, &plan.CreatedAt); err != nil {
		return nil, err
	}
	return &plan, nil
}
