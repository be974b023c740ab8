// Package resilience wraps calls to flaky upstream services with per-attempt
// timeouts, capped exponential backoff and a per-dependency circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// transientStatuses are retried; any other non-2xx status is returned at once.
var transientStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(code int) bool {
	return transientStatuses[code]
}

// TransientError is a retryable failure: a timeout, a connection failure or
// one of the transient HTTP statuses. StatusCode is zero for transport errors.
type TransientError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ClientError is a non-retryable HTTP failure.
type ClientError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// CircuitOpenError is returned without calling the dependency while its
// breaker is open. RetryAfter estimates the remaining cool-down.
type CircuitOpenError struct {
	Dependency string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s, retry after %s", e.Dependency, e.RetryAfter.Round(time.Millisecond))
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsCircuitOpen reports whether err came from an open breaker.
func IsCircuitOpen(err error) bool {
	var ce *CircuitOpenError
	return errors.As(err, &ce)
}

// DefaultIsFailure counts everything against the breaker except caller
// cancellation and 4xx responses, which say nothing about upstream health.
func DefaultIsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ce *ClientError
	if errors.As(err, &ce) && ce.StatusCode < 500 {
		return false
	}
	return true
}
