package ratelimit

import (
	"testing"
	"time"
)

func TestSlidingWindowAdmitsUpToLimit(t *testing.T) {
	l := NewSlidingWindow(2, time.Hour)
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	if !l.Admit(now) {
		t.Fatalf("first admit rejected")
	}
	if !l.Admit(now.Add(time.Minute)) {
		t.Fatalf("second admit rejected")
	}
	if l.Admit(now.Add(2 * time.Minute)) {
		t.Fatalf("third admit should be rejected at limit 2")
	}
	if got := l.Count(now.Add(2 * time.Minute)); got != 2 {
		t.Fatalf("expected count 2, got %d", got)
	}
}

func TestSlidingWindowFreesCapacityAsEventsAge(t *testing.T) {
	l := NewSlidingWindow(2, time.Hour)
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	l.Admit(now)
	l.Admit(now.Add(30 * time.Minute))

	// First event leaves the window one hour after it was admitted.
	if l.Admit(now.Add(59 * time.Minute)) {
		t.Fatalf("expected rejection while window is full")
	}
	if !l.Admit(now.Add(61 * time.Minute)) {
		t.Fatalf("expected admission after oldest event aged out")
	}
}

func TestSlidingWindowRejectionsNotRecorded(t *testing.T) {
	l := NewSlidingWindow(1, time.Hour)
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	l.Admit(now)
	for i := 0; i < 10; i++ {
		l.Admit(now.Add(time.Duration(i) * time.Minute))
	}
	// Rejections must not push back the recovery point.
	if !l.Admit(now.Add(time.Hour + time.Second)) {
		t.Fatalf("expected recovery exactly one window after the admitted event")
	}
}
