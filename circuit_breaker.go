package normup

import (
	"context"
	"errors"
	"sync"
	"time"
)

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	}
	return "closed"
}

type circuitBreakerConfig struct {
	failureThreshold    int
	openTimeout         time.Duration
	halfOpenMaxInFlight int
	onStateChange       func(state string)
	now                 func() time.Time
}

// circuitBreaker stops dispatching to a storage engine after consecutive
// availability failures. Errors that describe the payload (duplicates,
// constraint violations, bad columns) never count.
type circuitBreaker struct {
	cfg circuitBreakerConfig

	mu       sync.Mutex
	state    circuitState
	failures int
	openedAt time.Time
	trials   int
}

var errCircuitOpen = errors.New("circuit breaker is open")

// IsCircuitOpen reports whether err was produced by an open circuit
func IsCircuitOpen(err error) bool { return errors.Is(err, errCircuitOpen) }

func newCircuitBreaker(cfg circuitBreakerConfig) *circuitBreaker {
	if cfg.halfOpenMaxInFlight <= 0 {
		cfg.halfOpenMaxInFlight = 1
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &circuitBreaker{cfg: cfg}
}

// before admits or rejects one storage call
func (cb *circuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == stateOpen {
		if cb.cfg.now().Sub(cb.openedAt) < cb.cfg.openTimeout {
			return errCircuitOpen
		}
		cb.moveTo(stateHalfOpen)
	}
	if cb.state == stateHalfOpen {
		if cb.trials >= cb.cfg.halfOpenMaxInFlight {
			return errCircuitOpen
		}
		cb.trials++
	}
	return nil
}

// after records the outcome of a call admitted by before
func (cb *circuitBreaker) after(callErr error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == stateHalfOpen && cb.trials > 0 {
		cb.trials--
	}
	if !isAvailabilityFailure(callErr) {
		if cb.state == stateHalfOpen {
			cb.moveTo(stateClosed)
		}
		cb.failures = 0
		return
	}
	switch cb.state {
	case stateHalfOpen:
		cb.moveTo(stateOpen)
	case stateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.failureThreshold {
			cb.moveTo(stateOpen)
		}
	}
}

func (cb *circuitBreaker) moveTo(s circuitState) {
	if cb.state == s {
		return
	}
	cb.state = s
	cb.trials = 0
	switch s {
	case stateClosed:
		cb.failures = 0
	case stateOpen:
		cb.openedAt = cb.cfg.now()
	}
	if cb.cfg.onStateChange != nil {
		cb.cfg.onStateChange(s.String())
	}
}

func (cb *circuitBreaker) current() circuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func isAvailabilityFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var oe *ORMError
	if errors.As(err, &oe) {
		switch oe.Code {
		case ErrCodeConnection, ErrCodeTransaction:
			return true
		}
		return false
	}
	return true
}
