package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"OptionPulse/internal/domain/models"
)

type captureRunner struct {
	mu      sync.Mutex
	batches [][]models.IndicatorSnapshot
}

func (r *captureRunner) RunCycle(_ context.Context, snaps []models.IndicatorSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, snaps)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordEvent(string, string)      {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordActiveSignals(int)         {}
func (nopMetrics) RecordConfidence(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)    {}

func snapAt(strike float64, ts time.Time, rsi float64) models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		Symbol:     "NIFTY",
		Strike:     strike,
		OptionType: models.CE,
		PCR:        1.0,
		RSI:        rsi,
		OI:         50000,
		Volume:     1000,
		AvgVolume:  900,
		LastPrice:  120,
		Timestamp:  ts,
	}
}

func TestSchedulerDeduplicatesLatestPerKey(t *testing.T) {
	s := NewCycleScheduler(&captureRunner{}, nopMetrics{}, time.Hour)
	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	if err := s.Offer(snapAt(24000, t0, 40)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := s.Offer(snapAt(24000, t0.Add(time.Second), 45)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := s.Offer(snapAt(24100, t0, 50)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if got := s.PendingCount(); got != 2 {
		t.Fatalf("expected 2 pending keys, got %d", got)
	}

	batch := s.drain()
	for _, snap := range batch {
		if snap.Strike == 24000 && snap.RSI != 45 {
			t.Fatalf("expected latest snapshot to win, got rsi %.1f", snap.RSI)
		}
	}
}

func TestSchedulerIgnoresOlderSnapshot(t *testing.T) {
	s := NewCycleScheduler(&captureRunner{}, nopMetrics{}, time.Hour)
	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	if err := s.Offer(snapAt(24000, t0, 40)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	// Out-of-order delivery: an older reading must not overwrite a newer one.
	if err := s.Offer(snapAt(24000, t0.Add(-time.Minute), 60)); err != nil {
		t.Fatalf("offer: %v", err)
	}

	batch := s.drain()
	if len(batch) != 1 || batch[0].RSI != 40 {
		t.Fatalf("expected newer snapshot retained, got %v", batch)
	}
}

func TestSchedulerRejectsInvalidSnapshot(t *testing.T) {
	s := NewCycleScheduler(&captureRunner{}, nopMetrics{}, time.Hour)

	bad := snapAt(24000, time.Now(), 40)
	bad.RSI = 150
	if err := s.Offer(bad); err == nil {
		t.Fatalf("expected validation error")
	}
	if got := s.PendingCount(); got != 0 {
		t.Fatalf("invalid snapshot must not queue, got %d pending", got)
	}
}

func TestSchedulerTickDrainsQueue(t *testing.T) {
	runner := &captureRunner{}
	s := NewCycleScheduler(runner, nopMetrics{}, 10*time.Millisecond)

	if err := s.Offer(snapAt(24000, time.Now(), 40)); err != nil {
		t.Fatalf("offer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for {
		runner.mu.Lock()
		n := len(runner.batches)
		runner.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("scheduler never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := s.PendingCount(); got != 0 {
		t.Fatalf("expected queue drained after tick, got %d", got)
	}
}

func TestMarketHoursGate(t *testing.T) {
	gate, err := NewMarketHoursGate("09:15", "15:30", time.UTC)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}

	// 2026-08-24 is a Monday.
	monday := func(h, m int) time.Time {
		return time.Date(2026, 8, 24, h, m, 0, 0, time.UTC)
	}
	cases := []struct {
		t    time.Time
		open bool
	}{
		{monday(9, 14), false},
		{monday(9, 15), true},
		{monday(12, 0), true},
		{monday(15, 30), true},
		{monday(15, 31), false},
		{time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC), false}, // Saturday
	}
	for _, c := range cases {
		if got := gate.Open(c.t); got != c.open {
			t.Fatalf("%v: expected open=%v, got %v", c.t, c.open, got)
		}
	}
}

func TestMarketHoursGateRejectsInvertedWindow(t *testing.T) {
	if _, err := NewMarketHoursGate("15:30", "09:15", time.UTC); err == nil {
		t.Fatalf("expected inverted window rejection")
	}
}
