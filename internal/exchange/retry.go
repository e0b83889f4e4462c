package exchange

import (
	"context"
	"log/slog"
	"time"
)

// RetrySettings bound the internal retry loop of every remote venue call.
type RetrySettings struct {
	Attempts int
	Delay    time.Duration
	Timeout  time.Duration
}

// DefaultRetrySettings mirror the usual gateway defaults.
func DefaultRetrySettings() RetrySettings {
	return RetrySettings{Attempts: 3, Delay: 5 * time.Second, Timeout: 30 * time.Second}
}

// withRetry runs fn up to r.Attempts times with a fixed delay between
// attempts, returning the last error if all attempts fail.
func withRetry(ctx context.Context, logger *slog.Logger, r RetrySettings, op string, fn func(ctx context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if r.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		}
		err = fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		logger.Warn("request attempt failed", "op", op, "attempt", attempt, "error", err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Delay):
		}
	}
	return err
}
