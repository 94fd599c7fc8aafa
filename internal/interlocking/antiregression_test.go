package interlocking

import (
	"testing"
	"time"
)

func TestAntiRegressionNotifyStaysStableWhenMatching(t *testing.T) {
	ar := NewAntiRegression(ExtOutputChangeActionDoNothing, func() {
		t.Fatalf("command should not be invoked while matching")
	}, func() bool { return true }, nil)

	ar.Notify()
	if ar.State() != RetryStateStable {
		t.Fatalf("expected Stable, got %s", ar.State())
	}
}

func TestAntiRegressionNotifyBeginsCorrectingOnMismatch(t *testing.T) {
	ar := NewAntiRegression(ExtOutputChangeActionDoNothing, func() {}, func() bool { return false }, nil)
	ar.Notify()
	if ar.State() != RetryStateCorrecting {
		t.Fatalf("expected Correcting after a mismatched Notify, got %s", ar.State())
	}
	ar.Stop()
}

func TestAntiRegressionRetriesThenEscalates(t *testing.T) {
	ar := &AntiRegression{
		maxAttempts:   2,
		retryInterval: time.Millisecond,
		action:        ExtOutputChangeActionEmergencyStopWorld,
	}
	var commands int
	matched := false
	escalated := make(chan ExtOutputChangeAction, 1)
	ar.Command = func() { commands++ }
	ar.Match = func() bool { return matched }
	ar.OnEscalate = func(a ExtOutputChangeAction) { escalated <- a }

	ar.Notify()

	select {
	case a := <-escalated:
		if a != ExtOutputChangeActionEmergencyStopWorld {
			t.Fatalf("expected escalation with EmergencyStopWorld, got %v", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for escalation")
	}
	if commands != 2 {
		t.Fatalf("expected exactly maxAttempts=2 retries before escalating, got %d", commands)
	}
	if ar.State() != RetryStateEscalating {
		t.Fatalf("expected Escalating, got %s", ar.State())
	}
}

func TestAntiRegressionRecoversMidRetry(t *testing.T) {
	ar := &AntiRegression{
		maxAttempts:   5,
		retryInterval: 5 * time.Millisecond,
		action:        ExtOutputChangeActionDoNothing,
	}
	matched := false
	ar.Command = func() {}
	ar.Match = func() bool { return matched }
	ar.OnEscalate = func(ExtOutputChangeAction) { t.Fatalf("should not escalate once recovered") }

	ar.Notify()
	time.Sleep(10 * time.Millisecond)
	matched = true
	ar.Notify()
	if ar.State() != RetryStateStable {
		t.Fatalf("expected Stable once Match reports recovery, got %s", ar.State())
	}
	time.Sleep(5 * time.Millisecond)
	ar.Stop()
}
