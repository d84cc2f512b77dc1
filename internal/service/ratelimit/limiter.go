// Package ratelimit caps signal creation over a sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow admits at most `limit` events per `window`, measured over the
// exact trailing interval rather than fixed buckets. Only CREATE events are
// counted; renewals and expiries pass through untouched.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		stamps: make([]time.Time, 0, limit),
	}
}

// Admit records the event at `now` if capacity remains in the trailing window
// and reports whether it was admitted. Rejected events are not recorded, so a
// burst of rejections does not extend the suppression.
func (s *SlidingWindow) Admit(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(now)
	if len(s.stamps) >= s.limit {
		return false
	}
	s.stamps = append(s.stamps, now)
	return true
}

// SetLimit adjusts the admission cap. Events already admitted inside the
// window are kept, even when the new cap is lower.
func (s *SlidingWindow) SetLimit(limit int) {
	s.mu.Lock()
	s.limit = limit
	s.mu.Unlock()
}

// Count returns the number of admitted events still inside the window.
func (s *SlidingWindow) Count(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(now)
	return len(s.stamps)
}

func (s *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.stamps) && !s.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.stamps = append(s.stamps[:0], s.stamps[i:]...)
	}
}
