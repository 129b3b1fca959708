package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoValSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(eris.New("overloaded"), 529)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoValStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(5), func(context.Context) (int, error) {
		calls++
		return 0, eris.New("invalid request")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := NewTransientError(eris.New("still down"), 503)
	_, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		return 0, boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDoValHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastRetry(10), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(eris.New("timeout"), 0)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_, _ = DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		return 0, NewTransientError(eris.New("boom"), 500)
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoWrapsDoVal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(2), func(context.Context) error {
		calls++
		if calls == 1 {
			return NewTransientError(eris.New("flaky"), 503)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2.0,
	}

	assert.Equal(t, 100*time.Millisecond, backoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, backoff(1, cfg))
	assert.Equal(t, 300*time.Millisecond, backoff(2, cfg))
	assert.Equal(t, 300*time.Millisecond, backoff(10, cfg))
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}

	for i := 0; i < 50; i++ {
		d := backoff(0, cfg)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := withDefaults(RetryConfig{})
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.Multiplier)
}
