package clients

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBreaker(maxFailures, halfOpenLimit int) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   maxFailures,
		Cooldown:      30 * time.Second,
		HalfOpenLimit: halfOpenLimit,
	})
	cb.now = func() time.Time { return now }

	return cb, &now
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newBreaker(3, 1)

	assert.True(t, cb.Allow())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newBreaker(3, 1)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenTrials(t *testing.T) {
	cb, now := newBreaker(1, 2)

	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	*now = now.Add(29 * time.Second)
	assert.False(t, cb.Allow())

	*now = now.Add(time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow(), "trial limit reached")

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newBreaker(1, 2)

	cb.RecordFailure()
	*now = now.Add(time.Minute)

	require.True(t, cb.Allow())
	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb, now := newBreaker(1, 1)

	var transitions []string

	cb.OnStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	cb.RecordFailure()
	*now = now.Add(time.Minute)
	cb.Allow()
	cb.RecordSuccess()

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_ConfigFloors(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	assert.Equal(t, 1, cb.cfg.MaxFailures)
	assert.Equal(t, 1, cb.cfg.HalfOpenLimit)
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1000, Cooldown: time.Second, HalfOpenLimit: 1})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if cb.Allow() {
				if i%2 == 0 {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, StateClosed, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
