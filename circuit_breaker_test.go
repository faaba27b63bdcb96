package normup

import (
	"context"
	"errors"
	"testing"
	"time"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCircuitBreaker_Transitions(t *testing.T) {
	var states []string
	clock := &manualClock{t: fixedNow}
	cb := newCircuitBreaker(circuitBreakerConfig{failureThreshold: 2, openTimeout: 50 * time.Millisecond, halfOpenMaxInFlight: 1, onStateChange: func(s string) { states = append(states, s) }, now: clock.now})

	// two failures -> open
	if err := cb.before(); err != nil {
		t.Fatalf("before: %v", err)
	}
	cb.after(errors.New("x"))
	if err := cb.before(); err != nil {
		t.Fatalf("before2: %v", err)
	}
	cb.after(errors.New("x"))
	if err := cb.before(); !IsCircuitOpen(err) {
		t.Fatalf("expected open error, got %v", err)
	}

	clock.advance(60 * time.Millisecond)
	if err := cb.before(); err != nil {
		t.Fatalf("half-open before: %v", err)
	}
	if cb.current() != stateHalfOpen {
		t.Fatalf("want half_open, got %s", cb.current())
	}
	// a second trial is refused while the first is in flight
	if err := cb.before(); !IsCircuitOpen(err) {
		t.Fatalf("expected trial limit, got %v", err)
	}
	// successful trial -> closed
	cb.after(nil)
	if err := cb.before(); err != nil {
		t.Fatalf("closed again: %v", err)
	}
	want := []string{"open", "half_open", "closed"}
	if len(states) != len(want) {
		t.Fatalf("states %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states %v", states)
		}
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &manualClock{t: fixedNow}
	cb := newCircuitBreaker(circuitBreakerConfig{failureThreshold: 1, openTimeout: time.Second, now: clock.now})
	cb.after(&ORMError{Code: ErrCodeConnection})
	clock.advance(time.Second)
	if err := cb.before(); err != nil {
		t.Fatalf("half-open before: %v", err)
	}
	cb.after(errors.New("still down"))
	if cb.current() != stateOpen {
		t.Fatalf("want open, got %s", cb.current())
	}
	if err := cb.before(); !IsCircuitOpen(err) {
		t.Fatalf("timeout restarts when reopened, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := newCircuitBreaker(circuitBreakerConfig{failureThreshold: 2, openTimeout: time.Hour})
	cb.after(errors.New("x"))
	cb.after(nil)
	cb.after(errors.New("x"))
	if cb.current() != stateClosed {
		t.Fatalf("non-consecutive failures must not open, got %s", cb.current())
	}
}

func TestCircuitBreaker_PayloadErrorsDoNotTrip(t *testing.T) {
	cb := newCircuitBreaker(circuitBreakerConfig{failureThreshold: 1, openTimeout: time.Hour})
	for _, err := range []error{
		&ORMError{Code: ErrCodeDuplicate},
		&ORMError{Code: ErrCodeConstraint},
		&ORMError{Code: ErrCodeInvalidColumn},
		context.Canceled,
	} {
		cb.after(err)
	}
	if cb.current() != stateClosed {
		t.Fatalf("payload errors opened the circuit")
	}
	cb.after(&ORMError{Code: ErrCodeTransaction})
	if cb.current() != stateOpen {
		t.Fatalf("transaction failure should open, got %s", cb.current())
	}
}
