package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   5 * time.Millisecond,
		MaxDelay:       20 * time.Millisecond,
		Multiplier:     2.0,
		AttemptTimeout: time.Second,
	}
}

func TestRetryer_SuccessFirstTry(t *testing.T) {
	attempts := 0
	r := NewRetryer(fastRetryConfig())

	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryer_TransientEventualSuccess(t *testing.T) {
	attempts := 0
	r := NewRetryer(fastRetryConfig())

	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return MarkTransient(errors.New("connection dropped"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "one transient failure should cost exactly one extra attempt")
}

func TestRetryer_PermanentFailsImmediately(t *testing.T) {
	attempts := 0
	permErr := MarkPermanent(errors.New("invalid api key"))
	r := NewRetryer(fastRetryConfig())

	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permErr
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "permanent errors must not be retried")
}

func TestRetryer_UnclassifiedNotRetried(t *testing.T) {
	attempts := 0
	r := NewRetryer(fastRetryConfig())

	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("something odd happened")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "unclassified errors must not be retried")
}

func TestRetryer_RetryIfWidensEligibility(t *testing.T) {
	attempts := 0
	cfg := fastRetryConfig()
	cfg.RetryIf = func(err error) bool { return true }
	r := NewRetryer(cfg)

	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("something odd happened")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryer_RetryIfCannotOverridePermanent(t *testing.T) {
	attempts := 0
	cfg := fastRetryConfig()
	cfg.RetryIf = func(err error) bool { return true }
	r := NewRetryer(cfg)

	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return MarkPermanent(errors.New("unauthorized"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryer_ExhaustionReturnsLastError(t *testing.T) {
	attempts := 0
	lastErr := MarkTransient(errors.New("still down"))
	r := NewRetryer(fastRetryConfig())

	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return lastErr
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts, "should attempt exactly MaxAttempts times")
	assert.ErrorIs(t, err, lastErr)
}

func TestRetryer_ProviderTextTreatedAsTransient(t *testing.T) {
	attempts := 0
	r := NewRetryer(fastRetryConfig())

	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("429 Too Many Requests")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "rate limit text should be retried without explicit tagging")
}

func TestRetryer_AttemptTimeout(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxAttempts = 2
	cfg.AttemptTimeout = 20 * time.Millisecond
	r := NewRetryer(cfg)

	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		// Misbehaving operation that ignores its context.
		time.Sleep(80 * time.Millisecond)
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts, "a timed out attempt counts as transient and is retried")
	assert.Contains(t, err.Error(), "timed out")
}

func TestRetryer_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetryConfig()
	cfg.InitialDelay = 50 * time.Millisecond
	r := NewRetryer(cfg)

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, func(ctx context.Context) error {
		attempts++
		return MarkTransient(errors.New("down"))
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "cancellation during backoff should stop the loop")
}

func TestNewRetryer_FillsDefaults(t *testing.T) {
	r := NewRetryer(RetryConfig{})

	assert.Equal(t, 3, r.cfg.MaxAttempts)
	assert.Equal(t, 1*time.Second, r.cfg.InitialDelay)
	assert.Equal(t, 10*time.Second, r.cfg.MaxDelay)
	assert.Equal(t, 2.0, r.cfg.Multiplier)
	assert.Equal(t, 30*time.Second, r.cfg.AttemptTimeout)
}
