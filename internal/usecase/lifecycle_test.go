package usecase

import (
	"testing"
	"time"

	"OptionPulse/internal/domain/models"
	"OptionPulse/pkg/config"
)

var testKey = models.SignalKey{Symbol: "NIFTY", Strike: 24000, OptionType: models.CE}

func bullish(confidence float64) models.SignalDecision {
	return models.SignalDecision{Direction: models.BuyCE, Confidence: confidence, Reasons: []string{"pcr bullish"}}
}

func bearish(confidence float64) models.SignalDecision {
	return models.SignalDecision{Direction: models.BuyPE, Confidence: confidence, Reasons: []string{"pcr bearish"}}
}

func neutral() models.SignalDecision {
	return models.SignalDecision{Direction: models.Neutral, Confidence: 0}
}

func TestLifecycleCreateOnQualifyingDecision(t *testing.T) {
	cfg := config.DefaultEngine()
	m := NewLifecycleManager()
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	events, err := m.Apply(testKey, bullish(0.8), now, &cfg)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(events) != 1 || events[0].Type != models.EventCreate {
		t.Fatalf("expected single CREATE, got %v", events)
	}

	active := m.ActiveSignals()
	if len(active) != 1 {
		t.Fatalf("expected one active signal, got %d", len(active))
	}
	sig := active[0]
	if sig.Direction != models.BuyCE || !sig.IsActive || sig.State != models.StateActive {
		t.Fatalf("unexpected tracked signal %+v", sig)
	}
	if !sig.ExpiresAt.Equal(now.Add(cfg.Cooldown())) {
		t.Fatalf("expected expiry at now+cooldown, got %v", sig.ExpiresAt)
	}
}

func TestLifecycleBelowThresholdNoCreate(t *testing.T) {
	cfg := config.DefaultEngine()
	m := NewLifecycleManager()
	now := time.Now()

	events, err := m.Apply(testKey, bullish(0.5), now, &cfg)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(events) != 0 || m.ActiveCount() != 0 {
		t.Fatalf("expected no events and no active signals, got %v / %d", events, m.ActiveCount())
	}
}

func TestLifecycleRenewExtendsExpiry(t *testing.T) {
	cfg := config.DefaultEngine()
	m := NewLifecycleManager()
	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	if _, err := m.Apply(testKey, bullish(0.8), t0, &cfg); err != nil {
		t.Fatalf("create: %v", err)
	}
	first := m.ActiveSignals()[0].ExpiresAt

	t1 := t0.Add(5 * time.Minute)
	events, err := m.Apply(testKey, bullish(0.9), t1, &cfg)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if len(events) != 1 || events[0].Type != models.EventRenew {
		t.Fatalf("expected RENEW, got %v", events)
	}

	sig := m.ActiveSignals()[0]
	if !sig.ExpiresAt.After(first) {
		t.Fatalf("expected expiry to advance strictly, %v -> %v", first, sig.ExpiresAt)
	}
	if !sig.ExpiresAt.Equal(t1.Add(cfg.Cooldown())) {
		t.Fatalf("expected expiry anchored to renewal time, got %v", sig.ExpiresAt)
	}
	if sig.RenewedCount != 1 {
		t.Fatalf("expected renewed count 1, got %d", sig.RenewedCount)
	}
	if !sig.CreatedAt.Equal(t0) {
		t.Fatalf("created_at must not move on renewal, got %v", sig.CreatedAt)
	}
}

func TestLifecycleRenewWithinNoiseMarginIsSilent(t *testing.T) {
	cfg := config.DefaultEngine()
	m := NewLifecycleManager()
	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	if _, err := m.Apply(testKey, bullish(0.80), t0, &cfg); err != nil {
		t.Fatalf("create: %v", err)
	}

	t1 := t0.Add(2 * time.Minute)
	events, err := m.Apply(testKey, bullish(0.82), t1, &cfg)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected silent renewal inside noise margin, got %v", events)
	}

	// Validity still extended even without a notification.
	sig := m.ActiveSignals()[0]
	if !sig.ExpiresAt.Equal(t1.Add(cfg.Cooldown())) {
		t.Fatalf("expected silent renewal to extend expiry, got %v", sig.ExpiresAt)
	}
	if sig.RenewedCount != 1 {
		t.Fatalf("expected renewed count 1, got %d", sig.RenewedCount)
	}
}

func TestLifecycleDirectionFlip(t *testing.T) {
	cfg := config.DefaultEngine()
	m := NewLifecycleManager()
	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	if _, err := m.Apply(testKey, bullish(0.8), t0, &cfg); err != nil {
		t.Fatalf("create: %v", err)
	}

	t1 := t0.Add(3 * time.Minute)
	events, err := m.Apply(testKey, bearish(0.75), t1, &cfg)
	if err != nil {
		t.Fatalf("flip: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected EXPIRE+CREATE on flip, got %v", events)
	}
	if events[0].Type != models.EventExpire || events[0].Reason != models.ReasonDirectionFlip {
		t.Fatalf("expected flip EXPIRE first, got %+v", events[0])
	}
	if events[1].Type != models.EventCreate || events[1].Direction != models.BuyPE {
		t.Fatalf("expected CREATE BUY_PE second, got %+v", events[1])
	}

	active := m.ActiveSignals()
	if len(active) != 1 {
		t.Fatalf("one-active invariant broken: %d active", len(active))
	}
	if active[0].Direction != models.BuyPE || active[0].RenewedCount != 0 {
		t.Fatalf("expected fresh BUY_PE signal, got %+v", active[0])
	}

	hist := m.RecentHistory(testKey)
	if len(hist) != 1 || hist[0].ExpireReason != models.ReasonDirectionFlip {
		t.Fatalf("expected flipped signal in history, got %+v", hist)
	}
}

func TestLifecycleExpiresAfterCooldown(t *testing.T) {
	cfg := config.DefaultEngine()
	m := NewLifecycleManager()
	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	if _, err := m.Apply(testKey, bullish(0.8), t0, &cfg); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Just before expiry: below-threshold decision holds the signal.
	t1 := t0.Add(cfg.Cooldown() - time.Second)
	events, err := m.Apply(testKey, neutral(), t1, &cfg)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if len(events) != 0 || m.ActiveCount() != 1 {
		t.Fatalf("expected hold before expiry, got %v / %d active", events, m.ActiveCount())
	}

	// Just past expiry.
	t2 := t0.Add(cfg.Cooldown() + time.Second)
	events, err = m.Apply(testKey, neutral(), t2, &cfg)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(events) != 1 || events[0].Type != models.EventExpire || events[0].Reason != models.ReasonCooldownElapsed {
		t.Fatalf("expected cooldown EXPIRE, got %v", events)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("expected empty active set after expiry")
	}
}

func TestLifecycleSweepExpiresIdleKeys(t *testing.T) {
	cfg := config.DefaultEngine()
	m := NewLifecycleManager()
	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	otherKey := models.SignalKey{Symbol: "BANKNIFTY", Strike: 51000, OptionType: models.PE}
	if _, err := m.Apply(testKey, bullish(0.8), t0, &cfg); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Apply(otherKey, bearish(0.9), t0.Add(10*time.Minute), &cfg); err != nil {
		t.Fatalf("create other: %v", err)
	}

	events := m.SweepExpired(t0.Add(cfg.Cooldown() + time.Second))
	if len(events) != 1 || events[0].Key != testKey {
		t.Fatalf("expected only the stale key swept, got %v", events)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("expected the fresh key to survive the sweep")
	}
}

func TestLifecycleHistoryBounded(t *testing.T) {
	cfg := config.DefaultEngine()
	m := NewLifecycleManager()
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	for i := 0; i < historyPerKey+10; i++ {
		if _, err := m.Apply(testKey, bullish(0.8), now, &cfg); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		now = now.Add(cfg.Cooldown() + time.Second)
		if _, err := m.Apply(testKey, neutral(), now, &cfg); err != nil {
			t.Fatalf("expire %d: %v", i, err)
		}
		now = now.Add(time.Second)
	}

	if got := len(m.RecentHistory(testKey)); got != historyPerKey {
		t.Fatalf("expected history capped at %d, got %d", historyPerKey, got)
	}
}
