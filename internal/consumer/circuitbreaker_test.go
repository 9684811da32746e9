package consumer

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocStoreBreakerTripsAfterFailureRatio(t *testing.T) {
	settings := CircuitBreakerSettings{
		MinRequests:     4,
		FailureRatio:    0.5,
		OpenTimeout:     0,
		HalfOpenMaxReqs: 1,
		CountInterval:   0,
	}

	var transitions []gobreaker.State
	cb := NewDocStoreBreaker(settings, func(_, to gobreaker.State) {
		transitions = append(transitions, to)
	})

	failing := func() (any, error) { return nil, errors.New("boom") }
	ok := func() (any, error) { return "ok", nil }

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(failing)
	}
	_, err := cb.Execute(ok)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(failing)
	}

	_, err = cb.Execute(ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, transitions, gobreaker.StateOpen)
}

func TestNewDocStoreBreakerStaysClosedBelowMinRequests(t *testing.T) {
	settings := DefaultCircuitBreakerSettings()
	cb := NewDocStoreBreaker(settings, nil)

	_, err := cb.Execute(func() (any, error) { return nil, errors.New("boom") })
	require.Error(t, err)
	assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
}
