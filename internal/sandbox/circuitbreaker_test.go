package sandbox

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBootBreakerTripsAfterFailureRatio(t *testing.T) {
	settings := CircuitBreakerSettings{
		MinRequests:     3,
		FailureRatio:    0.5,
		OpenTimeout:     0,
		HalfOpenMaxReqs: 1,
		CountInterval:   0,
	}

	var transitions []gobreaker.State
	cb := NewBootBreaker(settings, func(_, to gobreaker.State) {
		transitions = append(transitions, to)
	})

	failing := func() (any, error) { return nil, errors.New("boot failed") }

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(failing)
	}

	_, err := cb.Execute(failing)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, transitions, gobreaker.StateOpen)
}

func TestNewBootBreakerStaysClosedBelowMinRequests(t *testing.T) {
	settings := DefaultCircuitBreakerSettings()
	cb := NewBootBreaker(settings, nil)

	_, err := cb.Execute(func() (any, error) { return nil, errors.New("boot failed") })
	require.Error(t, err)
	assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
}
