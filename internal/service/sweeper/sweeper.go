// Package sweeper runs the recurring expiration pass over due subscriptions.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"subscription-service/internal/domain/subscription"
	"subscription-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultPanic   = "panic"
)

// Expirer is the lifecycle engine's expiration path.
type Expirer interface {
	ExpireDue(ctx context.Context, asOf time.Time) (int, error)
}

// Config controls when the sweeper wakes.
type Config struct {
	// DailyHour and DailyMinute pick the local wall-clock time of the daily run.
	DailyHour   int
	DailyMinute int
	// Interval, when positive, replaces the daily schedule with a fixed cadence.
	Interval time.Duration
	// Timeout bounds a single tick. Zero means no bound.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DailyHour:   1,
		DailyMinute: 0,
		Timeout:     5 * time.Minute,
	}
}

// Sweeper owns its schedule; construct one per engine.
type Sweeper struct {
	engine  Expirer
	config  Config
	clock   subscription.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	// done is closed by the loop goroutine as its last act.
	done chan struct{}
}

func New(engine Expirer, config Config, clock subscription.Clock, m *metrics.Metrics, logger *zap.Logger) *Sweeper {
	if clock == nil {
		clock = subscription.SystemClock{}
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		engine:  engine,
		config:  config,
		clock:   clock,
		metrics: m,
		logger:  logger.With(zap.String("component", "sweeper")),
	}
}

// Start launches the schedule loop. Calling Start while a loop is running,
// or still finishing after Stop, is a no-op.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.runningLocked() {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stopChan, s.done = stop, done
	s.mu.Unlock()

	go s.run(ctx, stop, done)

	if s.config.Interval > 0 {
		s.logger.Info("sweeper started", zap.Duration("interval", s.config.Interval))
	} else {
		s.logger.Info("sweeper started",
			zap.String("daily_at", fmt.Sprintf("%02d:%02d", s.config.DailyHour, s.config.DailyMinute)))
	}
	return nil
}

// Stop ends the loop and waits for an in-flight tick to return. It waits
// even when the loop already exited because its context ended.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	if stop != nil {
		close(stop)
	}
	<-done

	if stop != nil {
		s.logger.Info("sweeper stopped")
	}
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Sweeper) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Sweeper) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		wait := s.nextRun(s.clock.Now())
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			// Errors are already logged and counted; the next wake still happens.
			_, _ = s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single tick: ExpireDue(today) under its own timeout.
// A panic inside the engine is recovered and reported as an error.
func (s *Sweeper) RunOnce(ctx context.Context) (expired int, err error) {
	started := time.Now()
	today := subscription.Today(s.clock)

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	result := resultSuccess
	defer func() {
		if r := recover(); r != nil {
			result = resultPanic
			err = fmt.Errorf("sweeper tick panicked: %v", r)
			s.logger.Error("sweeper tick panicked",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
		s.metrics.ObserveSweep(result, expired, time.Since(started))
	}()

	s.logger.Info("sweeper tick started", zap.String("as_of", today.Format(subscription.DateLayout)))

	expired, err = s.engine.ExpireDue(ctx, today)
	if err != nil {
		result = resultError
		s.logger.Error("sweeper tick failed",
			zap.Int("expired", expired),
			zap.Duration("took", time.Since(started)),
			zap.Error(err),
		)
		return expired, err
	}

	s.logger.Info("sweeper tick finished",
		zap.Int("expired", expired),
		zap.Duration("took", time.Since(started)),
	)
	return expired, nil
}

// nextRun is the delay from now until the next scheduled wake.
func (s *Sweeper) nextRun(now time.Time) time.Duration {
	if s.config.Interval > 0 {
		return s.config.Interval
	}

	next := time.Date(now.Year(), now.Month(), now.Day(),
		s.config.DailyHour, s.config.DailyMinute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
