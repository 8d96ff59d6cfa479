package ssdb

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards request/response cycles against a failing server.
// *gobreaker.CircuitBreaker[[]string] implements it.
//
// Only framing and transport failures reach the breaker: a non-success status
// from the server is decided after the cycle and does not count as a failure.
type CircuitBreaker interface {
	Execute(req func() ([]string, error)) ([]string, error)
	State() gobreaker.State
}

var _ CircuitBreaker = (*gobreaker.CircuitBreaker[[]string])(nil)

// NewCircuitBreakerConfig returns a function that creates a circuit breaker for a server.
// The breaker trips when at least 3 requests were made in the interval and 60% failed.
// Context cancellation and deadline errors are not counted as failures.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			// Context errors do not count as failures
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			},
		}
		return gobreaker.NewCircuitBreaker[[]string](settings)
	}
}
