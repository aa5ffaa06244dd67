package retrieval

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a per-method circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // normal operation
	CircuitOpen                         // method rejected until recovery timeout
	CircuitHalfOpen                     // single trial allowed
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned when a method is rejected by its breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards one retrieval method. It opens after a number of
// consecutive failures and allows a single trial after the recovery timeout.
type CircuitBreaker struct {
	threshold       int
	recoveryTimeout time.Duration

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
}

// NewCircuitBreaker creates a closed breaker. Zero or negative arguments fall
// back to 3 failures and 60 seconds.
func NewCircuitBreaker(threshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, recoveryTimeout: recoveryTimeout}
}

// IsOpen reports whether the method should be rejected, performing the
// time-based open -> half_open transition first.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.lastFailureTime) >= cb.recoveryTimeout {
		cb.state = CircuitHalfOpen
	}
	return cb.state == CircuitOpen
}

// RecordSuccess closes the breaker and resets the failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failureCount = 0
}

// RecordFailure counts a failure. In half-open state any failure reopens the
// breaker and restarts the recovery timer.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	if cb.state == CircuitHalfOpen || cb.failureCount >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// Reset returns the breaker to closed with a zero failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.lastFailureTime = time.Time{}
}

// Failures returns the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// State returns the current state without performing transitions.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
