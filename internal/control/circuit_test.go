package control

import (
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Now()
	c := NewCircuitBreaker(3, 30*time.Second)

	c.RecordFailure("transport", now)
	c.RecordFailure("transport", now)
	if c.State() != CircuitClosed {
		t.Fatalf("expected closed below threshold, got %s", c.State())
	}
	c.RecordFailure("transport", now)
	if c.State() != CircuitOpen {
		t.Fatalf("expected open at threshold, got %s", c.State())
	}
	if c.OpenedClass() != "transport" {
		t.Fatalf("unexpected opened class: %s", c.OpenedClass())
	}
	if c.Allow(now) {
		t.Fatal("expected open circuit to reject work")
	}
}

func TestCircuitBreaker_FailuresCountedPerClass(t *testing.T) {
	now := time.Now()
	c := NewCircuitBreaker(3, 30*time.Second)

	c.RecordFailure("transport", now)
	c.RecordFailure("provider", now)
	c.RecordFailure("transport", now)
	c.RecordFailure("provider", now)
	if c.State() != CircuitClosed {
		t.Fatalf("expected closed with mixed classes below threshold, got %s", c.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	now := time.Now()
	c := NewCircuitBreaker(1, 10*time.Second)
	c.RecordFailure("transport", now)

	if c.Allow(now.Add(5 * time.Second)) {
		t.Fatal("expected rejection before cooldown elapses")
	}
	if !c.Allow(now.Add(10 * time.Second)) {
		t.Fatal("expected probe allowed after cooldown")
	}
	if c.State() != CircuitHalfOpen {
		t.Fatalf("expected half_open, got %s", c.State())
	}

	// A failed probe reopens immediately.
	c.RecordFailure("transport", now.Add(11*time.Second))
	if c.State() != CircuitOpen {
		t.Fatalf("expected reopen on failed probe, got %s", c.State())
	}
}

func TestCircuitBreaker_ClosesOnSuccess(t *testing.T) {
	now := time.Now()
	c := NewCircuitBreaker(1, 10*time.Second)
	c.RecordFailure("transport", now)
	c.Allow(now.Add(10 * time.Second))
	c.RecordSuccess()
	if c.State() != CircuitClosed {
		t.Fatalf("expected closed after successful probe, got %s", c.State())
	}
	if c.OpenedClass() != "" {
		t.Fatalf("expected opened class reset, got %q", c.OpenedClass())
	}
}
