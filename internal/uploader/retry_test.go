package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopSleep returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0

	err := withRetry(context.Background(), slog.Default(), noopSleep, func() error {
		calls++

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_SucceedsAfterTwoFailures(t *testing.T) {
	calls := 0

	err := withRetry(context.Background(), slog.Default(), noopSleep, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	finalErr := errors.New("attempt 3 failure")

	err := withRetry(context.Background(), slog.Default(), noopSleep, func() error {
		calls++
		if calls < retryAttempts {
			return errors.New("earlier failure")
		}

		return finalErr
	})
	require.Error(t, err)
	assert.Equal(t, retryAttempts, calls)
	assert.Equal(t, finalErr, err, "the last attempt's error is authoritative")
}

func TestWithRetry_CancelledNeverRetried(t *testing.T) {
	calls := 0

	err := withRetry(context.Background(), slog.Default(), noopSleep, func() error {
		calls++

		return ErrCancelled
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_WrappedCancelledNeverRetried(t *testing.T) {
	calls := 0

	err := withRetry(context.Background(), slog.Default(), noopSleep, func() error {
		calls++

		return fmt.Errorf("walking tree: %w", ErrCancelled)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_SleepInterrupted(t *testing.T) {
	sleepErr := errors.New("interrupted")

	err := withRetry(context.Background(), slog.Default(),
		func(_ context.Context, _ time.Duration) error { return sleepErr },
		func() error { return errors.New("fail") },
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, sleepErr)
}

func TestRetryBackoff_Clamped(t *testing.T) {
	assert.Equal(t, 3*time.Second, retryBackoff(1), "2s doubles from below the floor")
	assert.Equal(t, 4*time.Second, retryBackoff(2))
	assert.Equal(t, 6*time.Second, retryBackoff(3), "8s clamps to the ceiling")
	assert.Equal(t, 6*time.Second, retryBackoff(4))
}
