package sandbox

import (
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerSettings configures the breaker guarding a VMProvider's boot path.
// A strategy guest that fails to boot repeatedly (missing interpreter, bad bundle,
// exhausted host resources) should stop eating retries from the runner.
type CircuitBreakerSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// DefaultCircuitBreakerSettings favors a longer open timeout than the consumer's
// document-store breaker: a failing guest provider usually needs host-side
// intervention, not a fast retry.
func DefaultCircuitBreakerSettings() CircuitBreakerSettings {
	return CircuitBreakerSettings{
		MinRequests:     5,
		FailureRatio:    0.5,
		OpenTimeout:     30 * time.Second,
		HalfOpenMaxReqs: 1,
		CountInterval:   30 * time.Second,
	}
}

// NewBootBreaker builds a gobreaker.CircuitBreaker guarding VMProvider.Boot calls (the
// Runner calls Connect outside it). It trips once a ratio of recent boot attempts have failed.
func NewBootBreaker(settings CircuitBreakerSettings, onStateChange func(from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sandbox.boot",
		MaxRequests: settings.HalfOpenMaxReqs,
		Interval:    settings.CountInterval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if onStateChange != nil {
				onStateChange(from, to)
			}
		},
	})
}
