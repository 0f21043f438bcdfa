package clients

import (
	"sync"
	"time"
)

// State is the position of a circuit breaker.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota

	// StateOpen rejects requests until the cool-down has passed.
	StateOpen

	// StateHalfOpen lets a limited number of trial requests through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int

	// Cooldown is how long the circuit stays open before trying again.
	Cooldown time.Duration

	// HalfOpenLimit is both the number of concurrent half-open requests and the
	// number of consecutive trial successes needed to close again.
	HalfOpenLimit int
}

// CircuitBreaker stops calling the language model after repeated failures,
// so a struggling upstream gets room to recover and callers fail fast.
//
//	closed    --MaxFailures failures-->  open
//	open      --Cooldown elapsed------>  half-open
//	half-open --HalfOpenLimit successes->  closed
//	half-open --any failure----------->  open
type CircuitBreaker struct {
	mu       sync.Mutex
	cfg      CircuitBreakerConfig
	state    State
	failures int
	trials   int // in flight while half-open
	passed   int // successful trials while half-open
	openedAt time.Time

	onChange func(from, to State)
	now      func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}

	if cfg.HalfOpenLimit < 1 {
		cfg.HalfOpenLimit = 1
	}

	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers fn to be called after every transition.
// fn runs outside the breaker's lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.onChange = fn
}

// Allow reports whether a request may proceed. A true result must be
// followed by exactly one RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	var from State

	changed := false

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			cb.mu.Unlock()
			return false
		}

		from, changed = cb.moveTo(StateHalfOpen)
		cb.trials = 1

	case StateHalfOpen:
		if cb.trials >= cb.cfg.HalfOpenLimit {
			cb.mu.Unlock()
			return false
		}

		cb.trials++
	}

	fn := cb.onChange
	cb.mu.Unlock()

	if changed && fn != nil {
		fn(from, StateHalfOpen)
	}

	return true
}

// RecordSuccess reports a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()

	var (
		from    State
		changed bool
	)

	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.trials--
		cb.passed++

		if cb.passed >= cb.cfg.HalfOpenLimit {
			from, changed = cb.moveTo(StateClosed)
		}
	}

	cb.notify(from, changed)
}

// RecordFailure reports a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()

	var (
		from    State
		changed bool
	)

	switch cb.state {
	case StateClosed:
		cb.failures++

		if cb.failures >= cb.cfg.MaxFailures {
			from, changed = cb.moveTo(StateOpen)
		}

	case StateHalfOpen:
		from, changed = cb.moveTo(StateOpen)
	}

	cb.notify(from, changed)
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// moveTo changes state and resets counters. Caller holds mu.
func (cb *CircuitBreaker) moveTo(to State) (State, bool) {
	from := cb.state
	if from == to {
		return from, false
	}

	cb.state = to
	cb.failures = 0
	cb.passed = 0
	cb.trials = 0

	if to == StateOpen {
		cb.openedAt = cb.now()
	}

	return from, true
}

// notify releases mu and fires the change callback.
func (cb *CircuitBreaker) notify(from State, changed bool) {
	to := cb.state
	fn := cb.onChange
	cb.mu.Unlock()

	if changed && fn != nil {
		fn(from, to)
	}
}
