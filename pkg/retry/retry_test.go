package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songlinshu/vector/errors"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientFailures(t *testing.T) {
	cfg := Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	cfg := Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return fmt.Errorf("attempt %d", calls)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "attempt 2")
}

func TestDoStopsOnInvalidError(t *testing.T) {
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Test", "Do", "bad input")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.IsInvalid(err))
}

func TestDoStopsOnFatalError(t *testing.T) {
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errors.WrapFatal(errors.ErrNoRootType, "Test", "Do", "broken schema")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := Config{MaxAttempts: 10, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second}
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func() error {
		calls++
		return fmt.Errorf("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoRejectsBadSchedule(t *testing.T) {
	err := Do(context.Background(), Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}, func() error {
		return nil
	})
	require.Error(t, err)
}
