package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"OptionPulse/internal/domain/models"
	domrepo "OptionPulse/internal/domain/repository"
)

// CycleRunner is the minimal engine interface the scheduler needs.
type CycleRunner interface {
	RunCycle(ctx context.Context, snaps []models.IndicatorSnapshot) error
}

// CycleScheduler sits between the snapshot intake and the decision engine.
// It accumulates snapshots, deduplicates them latest-per-key, and invokes the
// engine once per monitoring interval. Invocation is serialized: a slow cycle
// delays the next tick instead of overlapping it.
type CycleScheduler struct {
	runner   CycleRunner
	metrics  domrepo.Metrics
	interval time.Duration
	gate     *MarketHoursGate

	mu      sync.Mutex
	pending map[models.SignalKey]models.IndicatorSnapshot
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

type SchedulerOption func(*CycleScheduler)

// WithMarketHours restricts cycle execution to a trading session window.
func WithMarketHours(gate *MarketHoursGate) SchedulerOption {
	return func(s *CycleScheduler) { s.gate = gate }
}

func NewCycleScheduler(runner CycleRunner, metrics domrepo.Metrics, interval time.Duration, opts ...SchedulerOption) *CycleScheduler {
	s := &CycleScheduler{
		runner:   runner,
		metrics:  metrics,
		interval: interval,
		pending:  make(map[models.SignalKey]models.IndicatorSnapshot),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Offer queues a snapshot for the next cycle. A newer snapshot for the same
// key replaces the older one; stale readings never reach the engine.
func (s *CycleScheduler) Offer(snap models.IndicatorSnapshot) error {
	if err := snap.Validate(); err != nil {
		s.metrics.RecordError("scheduler_validate")
		return fmt.Errorf("scheduler: %w", err)
	}

	s.mu.Lock()
	prev, ok := s.pending[snap.Key()]
	if !ok || !snap.Timestamp.Before(prev.Timestamp) {
		s.pending[snap.Key()] = snap
	}
	s.mu.Unlock()
	return nil
}

// Start launches the tick loop. The loop owns all engine invocations.
func (s *CycleScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop halts the tick loop and waits for an in-flight cycle to finish.
func (s *CycleScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()
	close(s.stopCh)
	<-s.doneCh
}

// PendingCount returns the number of keys queued for the next cycle.
func (s *CycleScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *CycleScheduler) tick(ctx context.Context) {
	if s.gate != nil && !s.gate.Open(time.Now()) {
		return
	}

	batch := s.drain()
	start := time.Now()
	if err := s.runner.RunCycle(ctx, batch); err != nil {
		s.metrics.RecordError("scheduler_cycle")
	}
	s.metrics.RecordLatency("scheduler_tick", time.Since(start).Seconds())
}

// drain swaps out the pending map so intake never blocks on a running cycle.
func (s *CycleScheduler) drain() []models.IndicatorSnapshot {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[models.SignalKey]models.IndicatorSnapshot, len(pending))
	s.mu.Unlock()

	batch := make([]models.IndicatorSnapshot, 0, len(pending))
	for _, snap := range pending {
		batch = append(batch, snap)
	}
	return batch
}

// MarketHoursGate keeps cycles inside the trading session. Times are
// interpreted in the gate's location, typically the exchange timezone.
type MarketHoursGate struct {
	start, end time.Duration // offsets from midnight
	loc        *time.Location
}

// NewMarketHoursGate parses "HH:MM" session bounds.
func NewMarketHoursGate(start, end string, loc *time.Location) (*MarketHoursGate, error) {
	s, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("market hours start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return nil, fmt.Errorf("market hours end: %w", err)
	}
	if e <= s {
		return nil, fmt.Errorf("market hours end %s must follow start %s", end, start)
	}
	if loc == nil {
		loc = time.Local
	}
	return &MarketHoursGate{start: s, end: e, loc: loc}, nil
}

// Open reports whether the session is open at t. Weekends are closed.
func (g *MarketHoursGate) Open(t time.Time) bool {
	t = t.In(g.loc)
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, g.loc)
	offset := t.Sub(midnight)
	return offset >= g.start && offset <= g.end
}

func parseClock(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
