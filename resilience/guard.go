package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Guard pairs a circuit breaker with a retryer for one external dependency.
// Guards are injected wherever the dependency is called; there is no global
// registry, so two components talking to the same provider share a Guard by
// construction, not by accident.
type Guard struct {
	dep     string
	breaker *CircuitBreaker
	retryer *Retryer
}

// NewGuard creates a Guard named after the dependency it protects.
func NewGuard(dep string, retryCfg RetryConfig, breakerCfg CircuitBreakerConfig) *Guard {
	return &Guard{
		dep:     dep,
		breaker: NewCircuitBreaker(breakerCfg),
		retryer: NewRetryer(retryCfg),
	}
}

// Do runs op behind the breaker. An open breaker fails fast before any
// attempt is made. The whole retried call records exactly one outcome on
// the breaker, so a burst of retries cannot trip it on its own.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := g.breaker.Allow(); err != nil {
		return fmt.Errorf("%s: %w", g.dep, err)
	}

	err := g.retryer.Do(ctx, op)
	if err != nil {
		// The caller walking away says nothing about dependency health.
		if errors.Is(err, context.Canceled) {
			return err
		}
		g.breaker.RecordFailure()
		slog.Debug("guarded call failed",
			"dependency", g.dep,
			"state", g.breaker.State().String(),
			"error", err)
		return fmt.Errorf("%s: %w", g.dep, err)
	}

	g.breaker.RecordSuccess()
	return nil
}

// Breaker exposes the underlying circuit breaker for status reporting.
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}

// Dependency returns the name of the guarded dependency.
func (g *Guard) Dependency() string {
	return g.dep
}
