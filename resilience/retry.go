package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior for calls to one dependency.
type RetryConfig struct {
	MaxAttempts    int           // Total attempts including the first (default: 3)
	InitialDelay   time.Duration // Delay before the second attempt (default: 1s)
	MaxDelay       time.Duration // Backoff ceiling (default: 10s)
	Multiplier     float64       // Backoff growth factor (default: 2.0)
	Jitter         bool          // Randomize each delay within [delay/2, delay)
	AttemptTimeout time.Duration // Each attempt races this deadline (default: 30s)

	// RetryIf widens retry eligibility beyond transient errors. It is
	// consulted only for unclassified errors; permanent errors are never
	// retried.
	RetryIf func(error) bool
}

// DefaultRetryConfig returns sensible defaults for embedding and vector
// index calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		AttemptTimeout: 30 * time.Second,
	}
}

// Retryer runs operations with exponential backoff.
type Retryer struct {
	cfg RetryConfig
}

// NewRetryer creates a Retryer, filling zero config fields with defaults.
func NewRetryer(cfg RetryConfig) *Retryer {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	return &Retryer{cfg: cfg}
}

// Do runs op, retrying transient failures with exponential backoff. The
// error from the final attempt is returned when all attempts fail. Context
// cancellation stops the loop immediately, including mid-backoff.
func (r *Retryer) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	delay := r.cfg.InitialDelay

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = r.attempt(ctx, op)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		if !r.shouldRetry(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt == r.cfg.MaxAttempts {
			break
		}

		wait := delay
		if r.cfg.Jitter {
			wait = jitter(delay)
		}

		slog.Debug("operation failed, will retry",
			"attempt", attempt,
			"maxAttempts", r.cfg.MaxAttempts,
			"delay", wait,
			"error", lastErr)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = min(time.Duration(float64(delay)*r.cfg.Multiplier), r.cfg.MaxDelay)
	}

	return fmt.Errorf("after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

// attempt runs op once, racing it against the attempt timeout. The result
// channel is buffered so an operation that ignores cancellation can still
// finish its goroutine after the race is lost.
func (r *Retryer) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return MarkTransient(fmt.Errorf("attempt timed out after %s", r.cfg.AttemptTimeout))
		}
		return attemptCtx.Err()
	}
}

// shouldRetry decides whether lastErr is worth another attempt.
func (r *Retryer) shouldRetry(err error) bool {
	switch Classify(err) {
	case KindTransient:
		return true
	case KindPermanent:
		return false
	default:
		return r.cfg.RetryIf != nil && r.cfg.RetryIf(err)
	}
}

// jitter spreads a delay uniformly over [d/2, d) so synchronized clients
// don't hammer a recovering dependency in lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)))
}
