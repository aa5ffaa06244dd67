package resilience

import (
	"context"
	"log/slog"
	"time"
)

// Retry invokes op until it succeeds, retrying failures whose classified kind
// is in recoverable. The delay before retry i is baseDelay * 2^(i-1).
// Non-recoverable failures propagate immediately; after maxRetries additional
// attempts the last error is returned. A canceled context stops the wait and
// returns the last error.
func Retry[T any](ctx context.Context, log *slog.Logger, name string, op func() (T, error), recoverable map[Kind]bool, maxRetries int, baseDelay time.Duration) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			log.Warn("retrying operation",
				"operation", name,
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, lastErr
			}
		}

		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !recoverable[Classify(err)] {
			return zero, err
		}
	}

	log.Error("operation exhausted retries", "operation", name, "retries", maxRetries, "error", lastErr)
	return zero, lastErr
}

// Attempt invokes op and returns fallback on any failure. It never returns an
// error; use it for optional side effects only.
func Attempt[T any](log *slog.Logger, name string, op func() (T, error), fallback T) T {
	result, err := op()
	if err != nil {
		log.Warn("optional operation failed", "operation", name, "error", err)
		return fallback
	}
	return result
}
