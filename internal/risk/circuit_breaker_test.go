package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCircuitBreakerManager(t *testing.T) {
	manager := NewCircuitBreakerManager()

	require.NotNil(t, manager)
	require.NotNil(t, manager.database)
	require.NotNil(t, manager.metrics)

	// Verify initial state is closed
	assert.Equal(t, gobreaker.StateClosed, manager.database.State())
}

func TestCircuitBreakerManager_Database(t *testing.T) {
	manager := NewCircuitBreakerManager()

	t.Run("successful requests keep circuit closed", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			_, err := manager.Database().Execute(func() (interface{}, error) {
				return "success", nil
			})
			require.NoError(t, err)
		}
		assert.Equal(t, gobreaker.StateClosed, manager.Database().State())
	})

	t.Run("circuit opens after threshold failures", func(t *testing.T) {
		manager := NewCircuitBreakerManager()

		// Database CB: needs 10 requests with 60% failure rate
		for i := 0; i < 10; i++ {
			manager.Database().Execute(func() (interface{}, error) {
				return nil, errors.New("database connection failed")
			})
		}

		assert.Equal(t, gobreaker.StateOpen, manager.Database().State())

		// Next request should fail immediately with ErrOpenState
		_, err := manager.Database().Execute(func() (interface{}, error) {
			return "should not execute", nil
		})
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	})

	t.Run("database breaker has a 15-second open timeout", func(t *testing.T) {
		manager := NewCircuitBreakerManager()

		// Database has a 15-second timeout, the quickest recovery this platform
		// configures for any breaker (see internal/consumer and internal/sandbox).
		require.NotNil(t, manager)
		require.NotNil(t, manager.Database())
		assert.Equal(t, 15*time.Second, DBOpenTimeout)
	})
}

func TestCircuitBreakerMetrics_RecordRequest(t *testing.T) {
	manager := NewCircuitBreakerManager()
	metrics := manager.Metrics()

	t.Run("record successful request", func(t *testing.T) {
		metrics.RecordRequest("database", true)
		// Metrics are recorded, but we can't easily assert on Prometheus metrics
		// in unit tests. This test verifies the method doesn't panic.
	})

	t.Run("record failed request", func(t *testing.T) {
		metrics.RecordRequest("database", false)
		// Verify no panic occurs
	})
}

func TestCircuitBreakerManager_StateTransitions(t *testing.T) {
	manager := NewCircuitBreakerManager()

	t.Run("state transitions trigger metrics updates", func(t *testing.T) {
		// Start in closed state
		assert.Equal(t, gobreaker.StateClosed, manager.Database().State())

		// Trigger failures to open
		for i := 0; i < 10; i++ {
			manager.Database().Execute(func() (interface{}, error) {
				return nil, errors.New("failure")
			})
		}

		// Verify state changed to open
		assert.Equal(t, gobreaker.StateOpen, manager.Database().State())

		// Metrics should have been updated (callback was triggered)
		// We can't easily verify Prometheus metrics here, but we've verified
		// the state transition occurred
	})
}

func TestCircuitBreakerManager_ConcurrentAccess(t *testing.T) {
	manager := NewCircuitBreakerManager()

	t.Run("concurrent requests to same circuit breaker", func(t *testing.T) {
		done := make(chan bool, 10)

		for i := 0; i < 10; i++ {
			go func() {
				defer func() { done <- true }()

				_, err := manager.Database().Execute(func() (interface{}, error) {
					time.Sleep(10 * time.Millisecond)
					return "success", nil
				})

				// Should either succeed or fail with open state error
				if err != nil && !errors.Is(err, gobreaker.ErrOpenState) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}

		// Wait for all goroutines
		for i := 0; i < 10; i++ {
			<-done
		}
	})
}

func TestCircuitBreakerManager_MixedSuccessFailure(t *testing.T) {
	manager := NewCircuitBreakerManager()

	t.Run("mixed success and failure stays closed", func(t *testing.T) {
		// Execute requests with failure rate below the 60% threshold
		for i := 0; i < 10; i++ {
			manager.Database().Execute(func() (interface{}, error) {
				if i%3 == 0 {
					return nil, errors.New("occasional failure")
				}
				return "success", nil
			})
		}

		assert.Equal(t, gobreaker.StateClosed, manager.Database().State())
	})
}

func TestCircuitBreakerManager_HalfOpen(t *testing.T) {
	t.Run("circuit transitions through states correctly", func(t *testing.T) {
		manager := NewCircuitBreakerManager()

		// 1. Start in closed state
		assert.Equal(t, gobreaker.StateClosed, manager.Database().State())

		// 2. Trigger failures to open circuit
		for i := 0; i < 10; i++ {
			manager.Database().Execute(func() (interface{}, error) {
				return nil, errors.New("failure")
			})
		}
		assert.Equal(t, gobreaker.StateOpen, manager.Database().State())

		// 3. After timeout, first request transitions to half-open
		// Note: we can't easily test the timeout in a unit test without
		// mocking time, but we verify the state machine works.

		// 4. Verify requests fail while open
		_, err := manager.Database().Execute(func() (interface{}, error) {
			return "test", nil
		})
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	})
}

func TestCircuitBreakerManager_ErrorPropagation(t *testing.T) {
	manager := NewCircuitBreakerManager()

	t.Run("function errors are propagated", func(t *testing.T) {
		expectedErr := errors.New("specific error message")

		_, err := manager.Database().Execute(func() (interface{}, error) {
			return nil, expectedErr
		})

		assert.Equal(t, expectedErr, err)
	})

	t.Run("return values are propagated", func(t *testing.T) {
		expectedValue := map[string]interface{}{
			"status": "ok",
			"data":   []int{1, 2, 3},
		}

		result, err := manager.Database().Execute(func() (interface{}, error) {
			return expectedValue, nil
		})

		require.NoError(t, err)
		assert.Equal(t, expectedValue, result)
	})
}

func TestCircuitBreakerManager_MetricsSingleton(t *testing.T) {
	t.Run("multiple managers share metrics", func(t *testing.T) {
		manager1 := NewCircuitBreakerManager()
		manager2 := NewCircuitBreakerManager()

		// Both managers should exist
		require.NotNil(t, manager1)
		require.NotNil(t, manager2)

		// They should have their own circuit breakers
		require.NotNil(t, manager1.Database())
		require.NotNil(t, manager2.Database())

		// Metrics should be the same instance (singleton pattern)
		assert.Same(t, manager1.metrics, manager2.metrics)
	})
}

func TestCircuitBreakerManager_RealWorldScenario(t *testing.T) {
	t.Run("simulate database outage and fail-fast behavior", func(t *testing.T) {
		manager := NewCircuitBreakerManager()

		// Phase 1: Normal operation (small number to not affect failure ratio)
		for i := 0; i < 3; i++ {
			result, err := manager.Database().Execute(func() (interface{}, error) {
				return "event_persisted", nil
			})
			require.NoError(t, err)
			assert.Equal(t, "event_persisted", result)
		}
		assert.Equal(t, gobreaker.StateClosed, manager.Database().State())

		// Phase 2: Database has issues - failure rate crosses the 60% threshold
		for i := 0; i < 10; i++ {
			manager.Database().Execute(func() (interface{}, error) {
				return nil, errors.New("connection refused")
			})
		}
		assert.Equal(t, gobreaker.StateOpen, manager.Database().State())

		// Phase 3: Requests fail fast while circuit is open
		_, err := manager.Database().Execute(func() (interface{}, error) {
			t.Fatal("should not execute while circuit is open")
			return nil, nil
		})
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	})
}
