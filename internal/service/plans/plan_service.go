// internal/service/plans/plan_service.go
package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"subscription-service/internal/domain/subscription"
	xerrors "subscription-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, plan *subscription.Plan) error
	FindByID(ctx context.Context, id int64) (*subscription.Plan, error)
	FindByName(ctx context.Context, name string) (*subscription.Plan, error)
	List(ctx context.Context, skip, limit int) ([]*subscription.Plan, error)
}

const (
	defaultLimit = 100
	maxLimit     = 100
)

// DefaultPlans is the catalog a fresh install starts with.
var DefaultPlans = []subscription.Plan{
	{Name: "Free Trial", Price: 0.00, Features: "Limited access, 7 days", DurationDays: 7},
	{Name: "Basic", Price: 9.99, Features: "Access to basic features, monthly", DurationDays: 30},
	{Name: "Premium", Price: 19.99, Features: "Access to all features, priority support, monthly", DurationDays: 30},
	{Name: "Pro Yearly", Price: 199.99, Features: "All premium features, yearly discount", DurationDays: 365},
}

type PlanService struct {
	repo   Repository
	logger *zap.Logger
}

func NewPlanService(repo Repository, logger *zap.Logger) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{
		repo:   repo,
		logger: logger,
	}
}

// CreatePlan creates a new catalog entry
func (s *PlanService) CreatePlan(ctx context.Context, req *subscription.CreatePlanRequest) (*subscription.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if len(name) < 3 || len(name) > 100 {
		return nil, xerrors.InvalidRequest("plan name must be between 3 and 100 characters")
	}
	if req.Price == nil || *req.Price < 0 {
		return nil, xerrors.InvalidRequest("price must be zero or greater")
	}
	if req.DurationDays <= 0 {
		return nil, xerrors.InvalidRequest("duration_days must be positive")
	}

	plan := &subscription.Plan{
		Name:         name,
		Price:        *req.Price,
		Features:     req.Features,
		DurationDays: req.DurationDays,
	}

	if err := s.repo.Create(ctx, plan); err != nil {
		if xerrors.KindOf(err) == xerrors.KindConflict {
			return nil, xerrors.Conflict("plan name already exists", 0)
		}
		s.logger.Error("failed to create plan", zap.Error(err))
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	s.logger.Info("plan created",
		zap.Int64("plan_id", plan.ID),
		zap.String("name", plan.Name),
		zap.Int("duration_days", plan.DurationDays),
	)

	return plan, nil
}

// GetPlan retrieves a plan by ID
func (s *PlanService) GetPlan(ctx context.Context, id int64) (*subscription.Plan, error) {
	return s.repo.FindByID(ctx, id)
}

// ListPlans pages through the catalog ordered by id
func (s *PlanService) ListPlans(ctx context.Context, skip, limit int) ([]*subscription.Plan, error) {
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	plans, err := s.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// SeedDefaults inserts any of DefaultPlans missing by name. Returns how many were added.
func (s *PlanService) SeedDefaults(ctx context.Context) (int, error) {
	added := 0
	for _, def := range DefaultPlans {
		_, err := s.repo.FindByName(ctx, def.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, xerrors.ErrNotFound) {
			return added, fmt.Errorf("failed to look up plan %q: %w", def.Name, err)
		}

		plan := def
		if err := s.repo.Create(ctx, &plan); err != nil {
			// Another replica seeded it first.
			if xerrors.KindOf(err) == xerrors.KindConflict {
				continue
			}
			return added, fmt.Errorf("failed to seed plan %q: %w", def.Name, err)
		}
		added++
	}

	if added > 0 {
		s.logger.Info("seeded default plans", zap.Int("count", added))
	}
	return added, nil
}
