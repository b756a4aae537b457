// Package resilience wraps calls to external dependencies with retry and
// circuit breaking.
//
// Each dependency (embedding provider, vector index) gets its own Guard,
// which pairs a CircuitBreaker with a Retryer:
//   - The breaker fails fast while a dependency is known to be down.
//   - The retryer absorbs transient failures with exponential backoff.
//
// Errors are classified as transient, permanent or unknown; only transient
// errors are retried. Callers may widen eligibility with RetryConfig.RetryIf,
// but permanent errors are never retried.
package resilience
