package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Whole-file retry policy: bounded exponential backoff applied around a
// complete file upload attempt. Chunk-level retry inside a session is
// separate and tighter (see transfer.go).
const (
	retryAttempts   = 3
	retryMultiplier = 2 * time.Second
	retryMinDelay   = 3 * time.Second
	retryMaxDelay   = 6 * time.Second
)

// withRetry runs fn up to retryAttempts times with exponential backoff.
// Cancellation outcomes are never retried. The last attempt's error is
// returned as the authoritative failure; the attempt count is logged, not
// attached to the error.
func withRetry(ctx context.Context, logger *slog.Logger, sleep func(context.Context, time.Duration) error, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if errors.Is(lastErr, ErrCancelled) {
			return lastErr
		}

		if attempt == retryAttempts {
			break
		}

		backoff := retryBackoff(attempt)
		logger.Warn("upload attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", lastErr.Error()),
		)

		if sleepErr := sleep(ctx, backoff); sleepErr != nil {
			return fmt.Errorf("uploader: retry wait interrupted: %w", sleepErr)
		}
	}

	logger.Error("upload failed after all attempts",
		slog.Int("attempts", retryAttempts),
		slog.String("error", lastErr.Error()),
	)

	return lastErr
}

// retryBackoff computes the wait before the next attempt: multiplier doubled
// per attempt, clamped to [retryMinDelay, retryMaxDelay].
func retryBackoff(attempt int) time.Duration {
	backoff := retryMultiplier << (attempt - 1)

	if backoff < retryMinDelay {
		return retryMinDelay
	}

	if backoff > retryMaxDelay {
		return retryMaxDelay
	}

	return backoff
}

// sleepContext waits for d or until ctx is done. Default sleep function;
// tests inject a no-op.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
