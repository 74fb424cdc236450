package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingPolicy(delays *[]time.Duration) Policy {
	p := DefaultPolicy()
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), recordingPolicy(&delays), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestDoRetriesWithExponentialBackoff(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), recordingPolicy(&delays), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestDoExhaustsBudgetAndReturnsLastError(t *testing.T) {
	var delays []time.Duration
	calls := 0
	lastErr := errors.New("still broken")

	err := Do(context.Background(), recordingPolicy(&delays), func() error {
		calls++
		return lastErr
	})

	assert.ErrorIs(t, err, lastErr)
	assert.Equal(t, 3, calls)
	// no sleep after the final attempt
	assert.Len(t, delays, 2)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	var delays []time.Duration
	permanent := errors.New("permanent")

	p := recordingPolicy(&delays)
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := Do(context.Background(), p, func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, DefaultPolicy(), func() error {
		t.Fatal("operation must not run on cancelled context")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	var delays []time.Duration
	calls := 0

	got, err := DoWithResult(context.Background(), recordingPolicy(&delays), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "enriched", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "enriched", got)
	assert.Equal(t, []time.Duration{time.Second}, delays)
}

func TestDelayCappedAtMax(t *testing.T) {
	p := Policy{
		MaxAttempts:  6,
		InitialDelay: time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   2.0,
	}.normalized()

	assert.Equal(t, time.Second, p.delayFor(1))
	assert.Equal(t, 2*time.Second, p.delayFor(2))
	assert.Equal(t, 3*time.Second, p.delayFor(3))
	assert.Equal(t, 3*time.Second, p.delayFor(5))
}
