package ingestion

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidMaxAttempts is returned when RetryWithBackoff gets a non-positive attempt count.
var ErrInvalidMaxAttempts = errors.New("maxAttempts must be > 0")

// RetryWithBackoff runs operation up to maxAttempts times, sleeping baseDelay,
// 2*baseDelay, 4*baseDelay... between attempts. It returns the last error.
func RetryWithBackoff(
	ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration, logger *zap.Logger,
) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // context error returned as-is
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("Operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		logger.Debug("Operation failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(lastErr),
		)
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err() //nolint:wrapcheck // context error returned as-is
		case <-timer.C:
		}
		delay *= 2
	}

	return lastErr
}
