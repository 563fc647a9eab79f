// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"subscription-service/internal/domain/subscription"
	xerrors "subscription-service/internal/pkg/errors"
	"subscription-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Store is the subscription half of the record store.
type Store interface {
	Create(ctx context.Context, sub *subscription.Subscription) error
	FindActiveByUser(ctx context.Context, userID int64) (*subscription.Subscription, error)
	FindLatestByUser(ctx context.Context, userID int64) (*subscription.Subscription, error)
	ListByUser(ctx context.Context, userID int64) ([]*subscription.Subscription, error)
	ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error)
	UpdatePlan(ctx context.Context, id, planID int64, endDate time.Time) (*subscription.Subscription, error)
	UpdateStatus(ctx context.Context, id int64, from, to subscription.SubscriptionStatus) (*subscription.Subscription, error)
	// Expire applies ACTIVE -> EXPIRED only if the row is still due as of asOf.
	Expire(ctx context.Context, id int64, asOf time.Time) (*subscription.Subscription, error)
}

type PlanReader interface {
	FindByID(ctx context.Context, id int64) (*subscription.Plan, error)
}

// Publisher receives committed lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event subscription.Event) error
}

// SubscriptionService owns every write to a subscription's status and end date.
type SubscriptionService struct {
	store     Store
	plans     PlanReader
	publisher Publisher
	clock     subscription.Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewSubscriptionService(
	store Store,
	plans PlanReader,
	publisher Publisher,
	clock subscription.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SubscriptionService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if clock == nil {
		clock = subscription.SystemClock{}
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{
		store:     store,
		plans:     plans,
		publisher: publisher,
		clock:     clock,
		metrics:   m,
		logger:    logger,
	}
}

// Subscribe starts an ACTIVE subscription on planID running from today.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, planID int64) (*subscription.Subscription, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	existing, err := s.GetActiveSubscription(ctx, userID)
	switch {
	case err == nil:
		return nil, xerrors.Conflict(
			fmt.Sprintf("user already has an active subscription (id %d)", existing.ID), existing.ID)
	case !errors.Is(err, xerrors.ErrNotFound):
		return nil, err
	}

	today := subscription.Today(s.clock)
	sub := &subscription.Subscription{
		UserID:    userID,
		PlanID:    plan.ID,
		StartDate: today,
		EndDate:   subscription.EndDate(today, plan.DurationDays),
		Status:    subscription.StatusActive,
	}

	if err := s.store.Create(ctx, sub); err != nil {
		// A concurrent subscribe won the active slot after our check.
		if xerrors.KindOf(err) == xerrors.KindConflict {
			if winner, ferr := s.store.FindActiveByUser(ctx, userID); ferr == nil {
				return nil, xerrors.Conflict(
					fmt.Sprintf("user already has an active subscription (id %d)", winner.ID), winner.ID)
			}
		}
		return nil, err
	}

	s.logger.Info("subscription created",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("user_id", userID),
		zap.Int64("plan_id", plan.ID),
		zap.String("end_date", sub.EndDate.Format(subscription.DateLayout)),
	)
	s.record(ctx, subscription.NewEvent(subscription.EventCreated, sub, s.clock.Now()))

	return sub, nil
}

// GetActiveSubscription returns the user's ACTIVE subscription or a NotFound error.
func (s *SubscriptionService) GetActiveSubscription(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	sub, err := s.store.FindActiveByUser(ctx, userID)
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindIntegrity {
			s.logger.Error("multiple active subscriptions for user",
				zap.Int64("user_id", userID),
				zap.Bool("alert", true),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return sub, nil
}

// ChangePlan moves the active subscription to newPlanID. The term restarts
// today; start_date is kept.
func (s *SubscriptionService) ChangePlan(ctx context.Context, userID, newPlanID int64) (*subscription.Subscription, error) {
	current, err := s.GetActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	plan, err := s.plans.FindByID(ctx, newPlanID)
	if err != nil {
		return nil, err
	}

	if current.PlanID == plan.ID {
		return nil, xerrors.InvalidRequest("subscription is already on this plan")
	}
	if !subscription.CanTransition(current.Status, subscription.StatusActive) {
		return nil, xerrors.InvalidRequest(fmt.Sprintf("cannot change plan of a %s subscription", current.Status))
	}

	endDate := subscription.EndDate(subscription.Today(s.clock), plan.DurationDays)

	updated, err := s.store.UpdatePlan(ctx, current.ID, plan.ID, endDate)
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription plan changed",
		zap.Int64("subscription_id", updated.ID),
		zap.Int64("user_id", userID),
		zap.Int64("from_plan_id", current.PlanID),
		zap.Int64("to_plan_id", plan.ID),
		zap.String("end_date", updated.EndDate.Format(subscription.DateLayout)),
	)

	event := subscription.NewEvent(subscription.EventPlanChanged, updated, s.clock.Now())
	event.PreviousPlanID = current.PlanID
	s.record(ctx, event)

	return updated, nil
}

// Cancel moves the active subscription to CANCELLED.
func (s *SubscriptionService) Cancel(ctx context.Context, userID int64) error {
	current, err := s.GetActiveSubscription(ctx, userID)
	if errors.Is(err, xerrors.ErrNotFound) {
		// Repeating a cancel is a bad request, not a missing resource.
		if latest, lerr := s.store.FindLatestByUser(ctx, userID); lerr == nil && latest.Status == subscription.StatusCancelled {
			return xerrors.InvalidRequest("subscription is already cancelled")
		}
		return err
	}
	if err != nil {
		return err
	}

	if current.Status == subscription.StatusCancelled {
		return xerrors.InvalidRequest("subscription is already cancelled")
	}
	if !subscription.CanTransition(current.Status, subscription.StatusCancelled) {
		return xerrors.InvalidRequest(fmt.Sprintf("cannot cancel a %s subscription", current.Status))
	}

	updated, err := s.store.UpdateStatus(ctx, current.ID, current.Status, subscription.StatusCancelled)
	if err != nil {
		return err
	}

	s.logger.Info("subscription cancelled",
		zap.Int64("subscription_id", updated.ID),
		zap.Int64("user_id", userID),
	)
	s.record(ctx, subscription.NewEvent(subscription.EventCancelled, updated, s.clock.Now()))

	return nil
}

// ExpireDue moves every ACTIVE subscription whose end date is on or before
// asOf to EXPIRED, one row at a time. Rows that fail are reported in the
// joined error and the rest are still processed.
func (s *SubscriptionService) ExpireDue(ctx context.Context, asOf time.Time) (int, error) {
	asOf = subscription.DateOf(asOf)

	due, err := s.store.ListDue(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	expired := 0
	var errs []error
	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !subscription.CanTransition(sub.Status, subscription.StatusExpired) {
			continue
		}

		updated, err := s.store.Expire(ctx, sub.ID, asOf)
		if errors.Is(err, xerrors.ErrNotFound) {
			// Cancelled, expired or extended by someone else since the scan
			s.logger.Debug("subscription no longer due, skipping",
				zap.Int64("subscription_id", sub.ID))
			continue
		}
		if err != nil {
			s.logger.Error("failed to expire subscription",
				zap.Int64("subscription_id", sub.ID),
				zap.Int64("user_id", sub.UserID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("expire subscription %d: %w", sub.ID, err))
			continue
		}

		expired++
		s.logger.Info("subscription expired",
			zap.Int64("subscription_id", updated.ID),
			zap.Int64("user_id", updated.UserID),
			zap.String("end_date", updated.EndDate.Format(subscription.DateLayout)),
		)
		s.record(ctx, subscription.NewEvent(subscription.EventExpired, updated, s.clock.Now()))
	}

	return expired, errors.Join(errs...)
}

// ListHistory returns every subscription the user ever held, newest first.
func (s *SubscriptionService) ListHistory(ctx context.Context, userID int64) ([]*subscription.Subscription, error) {
	subs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []*subscription.Subscription{}
	}
	return subs, nil
}

// Today is the calendar date the engine currently works against.
func (s *SubscriptionService) Today() time.Time {
	return subscription.Today(s.clock)
}

func (s *SubscriptionService) record(ctx context.Context, event subscription.Event) {
	s.metrics.Transitions.WithLabelValues(string(event.Type)).Inc()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish subscription event",
			zap.String("event", string(event.Type)),
			zap.Int64("subscription_id", event.SubscriptionID),
			zap.Error(err),
		)
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, subscription.Event) error { return nil }
