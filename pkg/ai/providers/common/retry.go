package common

import (
	"context"
	"fmt"
	"time"
)

// RetryWithBackoff runs fn up to maxRetries times (total attempts, not
// retries). After attempt i fails (0-indexed), if more attempts remain, it
// sleeps retryDelay * 2^i before attempt i+1. No sleep follows the final
// attempt. ctx cancellation aborts both the in-flight call and any backoff
// sleep.
func RetryWithBackoff(ctx context.Context, maxRetries int, retryDelay time.Duration, fn func(ctx context.Context) error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("retry: exhausted attempts with no recorded error")
}
