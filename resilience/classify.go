package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorKind classifies a failure for retry decisions.
type ErrorKind int

const (
	// KindUnknown means the error carries no classification. Unknown
	// errors are not retried.
	KindUnknown ErrorKind = iota
	// KindTransient marks failures worth retrying (network, timeouts,
	// rate limits, 5xx responses).
	KindTransient
	// KindPermanent marks failures that will not improve on retry
	// (authentication, validation).
	KindPermanent
)

// classifiedError tags an error with a kind without hiding it.
type classifiedError struct {
	kind ErrorKind
	err  error
}

func (e *classifiedError) Error() string { return e.err.Error() }

func (e *classifiedError) Unwrap() error { return e.err }

// MarkTransient tags err as retryable.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: KindTransient, err: err}
}

// MarkPermanent tags err as never retryable.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: KindPermanent, err: err}
}

// Classify returns the kind carried by err, falling back to inspection of
// the error chain and, last, provider message heuristics. Explicit tags
// always win over heuristics.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	return classifyMessage(err.Error())
}

// Transient reports whether err should trigger a retry.
func Transient(err error) bool {
	return Classify(err) == KindTransient
}

// Permanent reports whether err must never be retried.
func Permanent(err error) bool {
	return Classify(err) == KindPermanent
}

// classifyMessage applies provider error text heuristics. Providers rarely
// return typed errors, so the text is often all there is to go on.
func classifyMessage(msg string) ErrorKind {
	// Auth and request errors - never retry
	if containsAny(msg, "unauthorized", "forbidden", "invalid api key", "401", "403") {
		return KindPermanent
	}

	// Rate limit errors - always retry
	if containsAny(msg, "rate limit", "quota exceeded", "429") {
		return KindTransient
	}

	// Transient server errors - retry
	if containsAny(msg, "500", "502", "503", "504", "unavailable", "overloaded") {
		return KindTransient
	}

	// Network errors - retry
	if containsAny(msg, "connection refused", "connection reset", "broken pipe",
		"no such host", "timeout", "temporary") {
		return KindTransient
	}

	return KindUnknown
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
