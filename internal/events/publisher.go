// Package events delivers committed subscription lifecycle events to
// downstream sinks.
package events

import (
	"context"
	"errors"
	"fmt"

	"subscription-service/internal/domain/subscription"
	"subscription-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Publisher delivers one lifecycle event.
type Publisher interface {
	Publish(ctx context.Context, event subscription.Event) error
}

// Sink is a named Publisher inside a fan-out.
type Sink struct {
	Name      string
	Publisher Publisher
}

// Multi delivers every event to each sink in order. A failing sink does
// not stop delivery to the others.
type Multi struct {
	sinks   []Sink
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewMulti(m *metrics.Metrics, logger *zap.Logger, sinks ...Sink) *Multi {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{sinks: sinks, metrics: m, logger: logger}
}

func (p *Multi) Publish(ctx context.Context, event subscription.Event) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Publisher.Publish(ctx, event); err != nil {
			p.metrics.EventsDropped.WithLabelValues(s.Name).Inc()
			p.logger.Warn("event sink rejected event",
				zap.String("sink", s.Name),
				zap.String("event", string(event.Type)),
				zap.Int64("subscription_id", event.SubscriptionID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, subscription.Event) error { return nil }
