package recognition

import (
	"testing"
	"time"
)

func TestCooldownUnmarkedStudent(t *testing.T) {
	tracker := NewCooldownTracker(5 * time.Minute)
	if got := tracker.Remaining(1, time.Now()); got != 0 {
		t.Errorf("expected 0 for an unmarked student, got %d", got)
	}
}

func TestCooldownSuppressesWithinWindow(t *testing.T) {
	tracker := NewCooldownTracker(5 * time.Minute)
	start := time.Now()

	tracker.Mark(1, start)

	if got := tracker.Remaining(1, start.Add(10*time.Second)); got != 290 {
		t.Errorf("expected 290 seconds remaining, got %d", got)
	}

	// Fractional remainders round up.
	if got := tracker.Remaining(1, start.Add(299*time.Second+500*time.Millisecond)); got != 1 {
		t.Errorf("expected 1 second remaining, got %d", got)
	}
}

func TestCooldownExpires(t *testing.T) {
	tracker := NewCooldownTracker(5 * time.Minute)
	start := time.Now()

	tracker.Mark(1, start)

	if got := tracker.Remaining(1, start.Add(5*time.Minute)); got != 0 {
		t.Errorf("expected 0 after the window elapsed, got %d", got)
	}
}

func TestCooldownPerStudent(t *testing.T) {
	tracker := NewCooldownTracker(5 * time.Minute)
	start := time.Now()

	tracker.Mark(1, start)

	if got := tracker.Remaining(2, start.Add(time.Second)); got != 0 {
		t.Errorf("expected other students to be unaffected, got %d", got)
	}
}
