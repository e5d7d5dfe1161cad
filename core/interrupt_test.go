package orchestration

import (
	"testing"
	"time"
)

func TestBargeInCoordinatorCollapsesOverlappingTriggers(t *testing.T) {
	coordinator := newBargeInCoordinator(50 * time.Millisecond)

	if !coordinator.TryBegin() {
		t.Fatalf("expected first trigger to claim the guard")
	}
	if coordinator.TryBegin() {
		t.Fatalf("expected overlapping trigger to be rejected")
	}

	coordinator.Release()
	if coordinator.TryBegin() {
		t.Fatalf("expected trigger during cooldown to be rejected")
	}

	time.Sleep(120 * time.Millisecond)
	if !coordinator.TryBegin() {
		t.Fatalf("expected guard lifted after cooldown")
	}
}

func TestBargeInCoordinatorCancelLiftsGuardImmediately(t *testing.T) {
	coordinator := newBargeInCoordinator(time.Hour)

	coordinator.TryBegin()
	coordinator.Release()
	coordinator.Cancel()

	if coordinator.InProgress() {
		t.Fatalf("expected guard lifted after cancel")
	}
	if !coordinator.TryBegin() {
		t.Fatalf("expected trigger accepted after cancel")
	}
}
