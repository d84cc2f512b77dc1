package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"OptionPulse/internal/domain/models"
	"OptionPulse/pkg/config"
	"OptionPulse/pkg/logger"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	events []*models.SignalEvent
	fail   bool
}

func (d *fakeDispatcher) Dispatch(_ context.Context, ev *models.SignalEvent) error {
	return d.DispatchBatch(context.Background(), []*models.SignalEvent{ev})
}

func (d *fakeDispatcher) DispatchBatch(_ context.Context, evs []*models.SignalEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("broker unavailable")
	}
	d.events = append(d.events, evs...)
	return nil
}

func (d *fakeDispatcher) Close() error { return nil }

func (d *fakeDispatcher) byType(t models.EventType) []*models.SignalEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*models.SignalEvent
	for _, ev := range d.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fakeArchive struct {
	mu     sync.Mutex
	events []*models.SignalEvent
}

func (a *fakeArchive) Init(context.Context) error { return nil }

func (a *fakeArchive) Append(_ context.Context, ev *models.SignalEvent) error {
	return a.AppendBatch(context.Background(), []*models.SignalEvent{ev})
}

func (a *fakeArchive) AppendBatch(_ context.Context, evs []*models.SignalEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, evs...)
	return nil
}

func (a *fakeArchive) History(context.Context, models.SignalKey, int) ([]*models.SignalEvent, error) {
	return nil, nil
}

func (a *fakeArchive) Health(context.Context) error { return nil }
func (a *fakeArchive) Close() error                 { return nil }

type fakeMetrics struct {
	mu     sync.Mutex
	events map[string]int
	errors map[string]int
	active int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{events: make(map[string]int), errors: make(map[string]int)}
}

func (m *fakeMetrics) RecordEvent(kind, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[kind]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordActiveSignals(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

func (m *fakeMetrics) RecordConfidence(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)    {}

type fakeScorer struct {
	probaUp float64
	err     error
}

func (s *fakeScorer) Score(context.Context, models.SignalKey, map[string]float64) (float64, error) {
	return s.probaUp, s.err
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestEngine(t *testing.T, cfg config.EngineConfig, clock *manualClock, opts ...EngineOption) (*SignalEngine, *fakeDispatcher, *fakeArchive, *fakeMetrics) {
	t.Helper()
	disp := &fakeDispatcher{}
	arch := &fakeArchive{}
	met := newFakeMetrics()
	agg := newTestAggregator(t, &cfg)

	opts = append([]EngineOption{WithClock(clock.Now)}, opts...)
	eng, err := NewSignalEngine(&cfg, agg, disp, arch, met, testLogger(t), opts...)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return eng, disp, arch, met
}

func bullishSnapshot(strike float64) models.IndicatorSnapshot {
	s := testSnapshot()
	s.Strike = strike
	s.PCR = 0.65
	s.RSI = 25
	s.OIChangePct = 20
	s.Volume = 2000
	return s
}

func TestEngineCycleCreatesAndDispatches(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	eng, disp, arch, met := newTestEngine(t, config.DefaultEngine(), clock)

	res, err := eng.RunCycle(context.Background(), []models.IndicatorSnapshot{bullishSnapshot(24000)})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.Evaluated != 1 || len(res.Events) != 1 {
		t.Fatalf("unexpected cycle result %+v", res)
	}

	creates := disp.byType(models.EventCreate)
	if len(creates) != 1 || creates[0].Direction != models.BuyCE {
		t.Fatalf("expected one dispatched CREATE BUY_CE, got %v", creates)
	}
	if len(arch.events) != 1 {
		t.Fatalf("expected archived event, got %d", len(arch.events))
	}
	if met.active != 1 || met.events[string(models.EventCreate)] != 1 {
		t.Fatalf("unexpected metrics %+v", met)
	}
	if len(eng.ActiveSignals()) != 1 {
		t.Fatalf("expected one active signal")
	}
}

func TestEngineRateLimitSuppressesExternally(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.MaxSignalsPerHour = 2
	clock := &manualClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	eng, disp, arch, _ := newTestEngine(t, cfg, clock)

	snaps := []models.IndicatorSnapshot{
		bullishSnapshot(24000),
		bullishSnapshot(24100),
		bullishSnapshot(24200),
	}
	res, err := eng.RunCycle(context.Background(), snaps)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if len(res.Events) != 2 || len(res.Suppressed) != 1 {
		t.Fatalf("expected 2 admitted + 1 suppressed, got %d/%d", len(res.Events), len(res.Suppressed))
	}
	if res.Suppressed[0].Reason != models.ReasonRateLimited {
		t.Fatalf("expected rate-limit reason, got %q", res.Suppressed[0].Reason)
	}

	// Suppression is external only: all three signals remain tracked.
	if got := len(eng.ActiveSignals()); got != 3 {
		t.Fatalf("expected 3 tracked signals, got %d", got)
	}
	if got := len(disp.byType(models.EventSuppressed)); got != 0 {
		t.Fatalf("suppressed events must not reach the dispatcher, got %d", got)
	}
	// The archive keeps the suppression record.
	if len(arch.events) != 3 {
		t.Fatalf("expected 3 archived events, got %d", len(arch.events))
	}
	if eng.CreationBudgetUsed() != 2 {
		t.Fatalf("expected budget 2 used, got %d", eng.CreationBudgetUsed())
	}
}

func TestEngineRenewalsNotRateLimited(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.MaxSignalsPerHour = 1
	clock := &manualClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	eng, disp, _, _ := newTestEngine(t, cfg, clock)

	snap := bullishSnapshot(24000)
	if _, err := eng.RunCycle(context.Background(), []models.IndicatorSnapshot{snap}); err != nil {
		t.Fatalf("create cycle: %v", err)
	}

	// A materially different confidence forces a RENEW notification.
	clock.Advance(5 * time.Minute)
	stronger := snap
	stronger.RSI = 20
	if _, err := eng.RunCycle(context.Background(), []models.IndicatorSnapshot{stronger}); err != nil {
		t.Fatalf("renew cycle: %v", err)
	}

	if got := len(disp.byType(models.EventRenew)); got != 1 {
		t.Fatalf("expected renewal to pass the limiter, got %d", got)
	}
}

func TestEngineSweepsStaleKeysWithoutSnapshots(t *testing.T) {
	cfg := config.DefaultEngine()
	clock := &manualClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	eng, disp, _, _ := newTestEngine(t, cfg, clock)

	if _, err := eng.RunCycle(context.Background(), []models.IndicatorSnapshot{bullishSnapshot(24000)}); err != nil {
		t.Fatalf("create cycle: %v", err)
	}

	// No snapshot for the key in the next cycle; expiry still fires.
	clock.Advance(cfg.Cooldown() + time.Second)
	res, err := eng.RunCycle(context.Background(), nil)
	if err != nil {
		t.Fatalf("sweep cycle: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Type != models.EventExpire {
		t.Fatalf("expected sweep EXPIRE, got %v", res.Events)
	}
	if got := len(disp.byType(models.EventExpire)); got != 1 {
		t.Fatalf("expected dispatched EXPIRE, got %d", got)
	}
	if len(eng.ActiveSignals()) != 0 {
		t.Fatalf("expected empty active set after sweep")
	}
}

func TestEngineScorerVeto(t *testing.T) {
	cfg := config.DefaultEngine()
	clock := &manualClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	scorer := &fakeScorer{probaUp: 0.2}
	eng, disp, _, _ := newTestEngine(t, cfg, clock, WithScorer(scorer, 0.55))

	res, err := eng.RunCycle(context.Background(), []models.IndicatorSnapshot{bullishSnapshot(24000)})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(res.Events) != 0 || len(eng.ActiveSignals()) != 0 {
		t.Fatalf("expected scorer veto to block creation, got %v", res.Events)
	}
	if got := len(disp.byType(models.EventCreate)); got != 0 {
		t.Fatalf("expected no dispatched CREATE after veto, got %d", got)
	}
}

func TestEngineScorerErrorDoesNotBlock(t *testing.T) {
	cfg := config.DefaultEngine()
	clock := &manualClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	scorer := &fakeScorer{err: errors.New("model offline")}
	eng, _, _, met := newTestEngine(t, cfg, clock, WithScorer(scorer, 0.55))

	res, err := eng.RunCycle(context.Background(), []models.IndicatorSnapshot{bullishSnapshot(24000)})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Type != models.EventCreate {
		t.Fatalf("expected deterministic decision to stand, got %v", res.Events)
	}
	if met.errors["scorer"] != 1 {
		t.Fatalf("expected scorer error recorded")
	}
}

func TestEngineDispatchFailureDoesNotFailCycle(t *testing.T) {
	cfg := config.DefaultEngine()
	clock := &manualClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	eng, disp, _, met := newTestEngine(t, cfg, clock)
	disp.fail = true

	res, err := eng.RunCycle(context.Background(), []models.IndicatorSnapshot{bullishSnapshot(24000)})
	if err != nil {
		t.Fatalf("cycle must not fail on dispatch error: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("expected event finalized despite dispatch failure")
	}
	if met.errors["dispatch"] != 1 {
		t.Fatalf("expected dispatch error recorded")
	}
	// Tracked state is already committed; the signal stays active.
	if len(eng.ActiveSignals()) != 1 {
		t.Fatalf("expected signal tracked despite dispatch failure")
	}
}

func TestEngineRejectsInvalidConfigUpdate(t *testing.T) {
	cfg := config.DefaultEngine()
	clock := &manualClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	eng, _, _, _ := newTestEngine(t, cfg, clock)

	bad := config.DefaultEngine()
	bad.ConfidenceThreshold = 2
	if err := eng.UpdateConfig(&bad); err == nil {
		t.Fatalf("expected invalid config rejection")
	}

	// The previous config is still in force.
	res, err := eng.RunCycle(context.Background(), []models.IndicatorSnapshot{bullishSnapshot(24000)})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("expected cycle to run with prior config")
	}
}

func TestEngineHotReloadRebuildsEvaluators(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	eng, disp, _, _ := newTestEngine(t, config.DefaultEngine(), clock)

	snap := testSnapshot()
	snap.PCR = 0.9 // inside the stock neutral band

	res, err := eng.RunCycle(context.Background(), []models.IndicatorSnapshot{snap})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(res.Events) != 0 {
		t.Fatalf("no events expected under stock thresholds, got %d", len(res.Events))
	}

	tuned := config.DefaultEngine()
	tuned.PCRThresholds.BuyCEMax = 0.9
	tuned.PCRThresholds.NeutralRange = []float64{1.05, 1.1}
	if err := eng.UpdateConfig(&tuned); err != nil {
		t.Fatalf("update config: %v", err)
	}

	clock.Advance(30 * time.Second)
	res, err = eng.RunCycle(context.Background(), []models.IndicatorSnapshot{snap})
	if err != nil {
		t.Fatalf("cycle after reload: %v", err)
	}

	creates := disp.byType(models.EventCreate)
	if len(creates) != 1 || creates[0].Direction != models.BuyCE {
		t.Fatalf("expected CREATE BUY_CE under reloaded thresholds, got %v", creates)
	}
	if creates[0].Confidence < tuned.ConfidenceThreshold {
		t.Fatalf("confidence %.2f below threshold after reload", creates[0].Confidence)
	}
}

func TestEngineHotReloadAppliesWeights(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	eng, disp, _, _ := newTestEngine(t, config.DefaultEngine(), clock)

	// PCR bullish, RSI mildly bearish: equal weights dilute confidence
	// below the threshold.
	snap := testSnapshot()
	snap.PCR = 0.65
	snap.RSI = 75

	res, err := eng.RunCycle(context.Background(), []models.IndicatorSnapshot{snap})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(res.Events) != 0 {
		t.Fatalf("no events expected under equal weights, got %d", len(res.Events))
	}

	tuned := config.DefaultEngine()
	tuned.Weights = map[string]float64{
		config.EvaluatorPCR:      4,
		config.EvaluatorRSI:      1,
		config.EvaluatorOIVolume: 1,
	}
	if err := eng.UpdateConfig(&tuned); err != nil {
		t.Fatalf("update config: %v", err)
	}

	clock.Advance(30 * time.Second)
	res, err = eng.RunCycle(context.Background(), []models.IndicatorSnapshot{snap})
	if err != nil {
		t.Fatalf("cycle after reload: %v", err)
	}

	creates := disp.byType(models.EventCreate)
	if len(creates) != 1 || creates[0].Direction != models.BuyCE {
		t.Fatalf("expected reweighted CREATE BUY_CE, got %v", creates)
	}
}
