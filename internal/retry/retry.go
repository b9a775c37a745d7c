// Package retry provides a bounded retry loop with exponential backoff.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Do runs fn up to attempts times, sleeping base, 2*base, 4*base... between
// failed tries. It returns nil on the first success and the last error once
// attempts are exhausted or the context is canceled mid-backoff.
func Do(ctx context.Context, attempts int, base time.Duration, logger *zap.Logger, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := base
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.Warn("Operation failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}

	logger.Error("Operation failed, retries exhausted",
		zap.String("op", op),
		zap.Int("attempts", attempts),
		zap.Error(err))
	return err
}
