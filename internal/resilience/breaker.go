// Package resilience wraps outbound analyzer calls with a circuit breaker
// and bounded retry.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the circuit breaker's current mode.
type BreakerState int

const (
	// StateClosed passes calls through and counts consecutive failures.
	StateClosed BreakerState = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits probe calls to test whether the upstream recovered.
	StateHalfOpen
)

func (s BreakerState) String() string {
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

// ErrCircuitOpen is returned for calls rejected while the breaker is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig tunes the breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold opens the breaker after this many consecutive
	// failures. Default 5.
	FailureThreshold int
	// ResetTimeout is the cooldown before an open breaker admits a probe.
	// Default 30s.
	ResetTimeout time.Duration
	// HalfOpenProbes is how many probes must succeed before closing again.
	// Default 1.
	HalfOpenProbes int
	// ShouldTrip decides whether an error counts toward the threshold.
	// Nil counts every non-nil error.
	ShouldTrip func(err error) bool
	// OnStateChange observes transitions.
	OnStateChange func(from, to BreakerState)
}

// DefaultCircuitBreakerConfig returns the production defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenProbes:   1,
	}
}

// CircuitBreaker guards a single upstream. Safe for concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu           sync.Mutex
	state        BreakerState
	failures     int
	lastFailure  time.Time
	probePassed  int

	now func() time.Time
}

// NewCircuitBreaker builds a closed breaker. Zero config fields get defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed, now: time.Now}
}

// Execute runs fn unless the breaker is open, recording the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// State reports the effective state, accounting for an elapsed cooldown.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailure) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	old := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.probePassed = 0
	if old != StateClosed && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(old, StateClosed)
	}
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.cfg.ResetTimeout {
			cb.transition(StateHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	trip := cb.cfg.ShouldTrip
	if trip == nil {
		trip = func(e error) bool { return e != nil }
	}

	if err == nil || !trip(err) {
		switch cb.state {
		case StateHalfOpen:
			cb.probePassed++
			if cb.probePassed >= cb.cfg.HalfOpenProbes {
				cb.transition(StateClosed)
				cb.failures = 0
				cb.probePassed = 0
			}
		case StateClosed:
			cb.failures = 0
		}
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// One failed probe reopens.
		cb.transition(StateOpen)
		cb.probePassed = 0
	}
}

func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
