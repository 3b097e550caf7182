package fetcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy retries an operation a fixed number of times with a fixed
// inter-attempt delay. Only errors accepted by Retryable are retried; any
// other error propagates immediately. The zero policy runs the operation
// exactly once.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy is three attempts, two seconds apart, retrying
// transient fetch failures only.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
		Retryable:   IsTransient,
	}
}

// Do invokes op until it succeeds, returns a non-retryable error, the
// attempt budget is exhausted, or ctx is cancelled. The last error observed
// is returned unwrapped so callers keep the original taxonomy.
func (p RetryPolicy) Do(ctx context.Context, logger zerolog.Logger, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		logger.Warn().Err(lastErr).Int("attempt", attempt).Int("max_attempts", attempts).
			Dur("delay", p.Delay).Msg("retrying after transient failure")

		if err := sleepCtx(ctx, p.Delay); err != nil {
			return err
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
