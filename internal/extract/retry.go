package extract

import (
	"context"
	"time"
)

// RetryPolicy drives the engine's attempt loop. Sleep is injectable so
// tests can run with a fake clock.
type RetryPolicy struct {
	MaxAttempts int
	Sleep       func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Sleep:       sleepCtx,
	}
}

// Backoff returns the delay before the next attempt: 2^attempt seconds.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
