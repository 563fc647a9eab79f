// Package retry re-runs store calls that failed for transient reasons.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a fixed-wait retry schedule. Attempts counts the first call.
type Policy struct {
	Attempts int
	Wait     time.Duration
	// OnRetry is called before each new attempt with the number of the attempt that failed.
	OnRetry func(attempt int, err error)
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Wait: 2 * time.Second}
}

// Do runs op until it succeeds, fails with an error retryable rejects,
// or the attempts are used up. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, retryable func(error) bool, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Wait), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, _ time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	})
}
