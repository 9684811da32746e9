package consumer

import (
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerSettings configures the document-store breaker guarding Firestore
// writes in the consumer's dispatch path.
type CircuitBreakerSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// DefaultCircuitBreakerSettings mirrors the database breaker's quick-recovery profile:
// the document store is on the hot path for every delivered message.
func DefaultCircuitBreakerSettings() CircuitBreakerSettings {
	return CircuitBreakerSettings{
		MinRequests:     10,
		FailureRatio:    0.6,
		OpenTimeout:     15 * time.Second,
		HalfOpenMaxReqs: 5,
		CountInterval:   10 * time.Second,
	}
}

// NewDocStoreBreaker builds a gobreaker.CircuitBreaker that trips once a ratio of
// recent Firestore calls have failed, giving the document store a chance to recover
// without the worker pool hammering it on every message.
func NewDocStoreBreaker(settings CircuitBreakerSettings, onStateChange func(from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "consumer.docstore",
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
