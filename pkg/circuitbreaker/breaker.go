package circuitbreaker

import (
	"sync"
	"time"

	"github.com/speedrun-hq/cyclerunner/pkg/logger"
)

// CircuitBreaker stops running an action after repeated failures
type CircuitBreaker struct {
	name          string
	enabled       bool
	failureCount  int
	failureWindow time.Duration
	failThreshold int
	resetTimeout  time.Duration
	lastFailure   time.Time
	tripped       bool
	tripTime      time.Time
	now           func() time.Time
	logger        logger.Logger
	mu            sync.Mutex
}

// State is a snapshot of a circuit breaker
type State struct {
	Name         string    `json:"name"`
	Enabled      bool      `json:"enabled"`
	Open         bool      `json:"open"`
	FailureCount int       `json:"failure_count"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
	TripTime     time.Time `json:"trip_time,omitempty"`
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(
	name string,
	enabled bool,
	threshold int,
	window time.Duration,
	resetTimeout time.Duration,
	now func() time.Time,
	log logger.Logger,
) *CircuitBreaker {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &CircuitBreaker{
		name:          name,
		enabled:       enabled,
		failThreshold: threshold,
		failureWindow: window,
		resetTimeout:  resetTimeout,
		now:           now,
		logger:        log,
	}
}

// RecordFailure records a failure and trips the circuit if threshold is exceeded
func (cb *CircuitBreaker) RecordFailure() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()

	// If the circuit is already tripped, check if it's time to try again
	if cb.tripped {
		if now.Sub(cb.tripTime) > cb.resetTimeout {
			cb.logger.NoticeWithAction(cb.name, "Circuit breaker: Attempting to reset after timeout")
			cb.tripped = false
			cb.failureCount = 0
		} else {
			return true // Still tripped
		}
	}

	// Reset failure count if outside window
	if now.Sub(cb.lastFailure) > cb.failureWindow {
		cb.failureCount = 0
	}

	cb.failureCount++
	cb.lastFailure = now

	if cb.failureCount >= cb.failThreshold {
		cb.tripped = true
		cb.tripTime = now
		cb.logger.ErrorWithAction(cb.name, "Circuit breaker tripped: %d failures in window, pausing for %s", cb.failureCount, cb.resetTimeout)
		return true
	}

	return false
}

// RecordSuccess clears the failure count
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
}

// IsOpen returns true if the circuit is open (tripped)
func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// If tripped but reset timeout has passed, try again
	if cb.tripped && cb.now().Sub(cb.tripTime) > cb.resetTimeout {
		cb.logger.NoticeWithAction(cb.name, "Circuit breaker: reset after %s", cb.resetTimeout)
		cb.tripped = false
		cb.failureCount = 0
		return false
	}

	return cb.tripped
}

// Reset manually resets the circuit breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.tripped = false
	cb.failureCount = 0
}

// State returns a snapshot of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return State{
		Name:         cb.name,
		Enabled:      cb.enabled,
		Open:         cb.tripped,
		FailureCount: cb.failureCount,
		LastFailure:  cb.lastFailure,
		TripTime:     cb.tripTime,
	}
}

// IsEnabled returns true if the circuit breaker is enabled
func (cb *CircuitBreaker) IsEnabled() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.enabled
}
