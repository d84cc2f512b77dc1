package usecase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"OptionPulse/internal/domain/models"
	"OptionPulse/pkg/config"
)

// ErrStateConsistency marks a broken lifecycle invariant, e.g. two active
// signals for one key. It aborts the cycle and is never silently repaired.
var ErrStateConsistency = errors.New("signal state consistency violation")

const historyPerKey = 50

// LifecycleManager exclusively owns the tracked-signal table. All mutation
// goes through Apply/SweepExpired behind one mutex, preserving the
// one-active-signal-per-key invariant even when per-key evaluation runs in
// parallel upstream.
type LifecycleManager struct {
	mu      sync.RWMutex
	active  map[models.SignalKey]*models.TrackedSignal
	history map[models.SignalKey][]models.TrackedSignal
}

func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		active:  make(map[models.SignalKey]*models.TrackedSignal),
		history: make(map[models.SignalKey][]models.TrackedSignal),
	}
}

// Apply runs the per-key state machine against the latest decision and
// returns the lifecycle events it produced. Events are not yet rate-limited;
// the engine filters CREATE events afterwards.
func (m *LifecycleManager) Apply(key models.SignalKey, dec models.SignalDecision, now time.Time, cfg *config.EngineConfig) ([]*models.SignalEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.active[key]
	if ok && !cur.IsActive {
		return nil, fmt.Errorf("%w: inactive signal in active table for %s", ErrStateConsistency, key)
	}

	qualifies := dec.Direction != models.Neutral && dec.Confidence >= cfg.ConfidenceThreshold

	if !ok {
		if !qualifies {
			return nil, nil
		}
		return []*models.SignalEvent{m.create(key, dec, now, cfg)}, nil
	}

	switch {
	case qualifies && dec.Direction == cur.Direction && now.Before(cur.ExpiresAt):
		// Renewal always extends validity; the RENEW notification is gated on
		// the noise margin to avoid spam on trivial confidence fluctuation.
		notify := absDiff(dec.Confidence, cur.Confidence) > cfg.NoiseMargin
		cur.LastRenewedAt = now
		cur.ExpiresAt = now.Add(cfg.Cooldown())
		cur.RenewedCount++
		cur.Confidence = dec.Confidence
		if !notify {
			return nil, nil
		}
		return []*models.SignalEvent{{
			Type:       models.EventRenew,
			Key:        key,
			Direction:  cur.Direction,
			Confidence: cur.Confidence,
			Reasons:    dec.Reasons,
			Timestamp:  now,
		}}, nil

	case qualifies && dec.Direction != cur.Direction:
		// Direction flip: close the old signal and open the new one in the
		// same cycle with a fresh renewal count.
		expire := m.expire(key, now, models.ReasonDirectionFlip)
		create := m.create(key, dec, now, cfg)
		return []*models.SignalEvent{expire, create}, nil

	case !now.Before(cur.ExpiresAt):
		return []*models.SignalEvent{m.expire(key, now, models.ReasonCooldownElapsed)}, nil

	default:
		// Below threshold but not yet expired: hold until natural expiry so a
		// single noisy reading does not flap the signal.
		return nil, nil
	}
}

// SweepExpired expires every active signal whose validity window has passed,
// including keys that received no snapshot this cycle.
func (m *LifecycleManager) SweepExpired(now time.Time) []*models.SignalEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []*models.SignalEvent
	for key, sig := range m.active {
		if !now.Before(sig.ExpiresAt) {
			events = append(events, m.expire(key, now, models.ReasonCooldownElapsed))
		}
	}
	return events
}

// ActiveSignals returns a read-only snapshot of the active set.
func (m *LifecycleManager) ActiveSignals() []models.TrackedSignal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.TrackedSignal, 0, len(m.active))
	for _, sig := range m.active {
		out = append(out, *sig)
	}
	return out
}

// ActiveCount returns the number of active signals.
func (m *LifecycleManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// RecentHistory returns the bounded in-memory record of closed signals for a
// key, newest first.
func (m *LifecycleManager) RecentHistory(key models.SignalKey) []models.TrackedSignal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.history[key]
	out := make([]models.TrackedSignal, len(h))
	for i := range h {
		out[len(h)-1-i] = h[i]
	}
	return out
}

// create and expire assume the mutex is held.

func (m *LifecycleManager) create(key models.SignalKey, dec models.SignalDecision, now time.Time, cfg *config.EngineConfig) *models.SignalEvent {
	m.active[key] = &models.TrackedSignal{
		Key:           key,
		Direction:     dec.Direction,
		Confidence:    dec.Confidence,
		State:         models.StateActive,
		CreatedAt:     now,
		LastRenewedAt: now,
		ExpiresAt:     now.Add(cfg.Cooldown()),
		RenewedCount:  0,
		IsActive:      true,
	}
	return &models.SignalEvent{
		Type:       models.EventCreate,
		Key:        key,
		Direction:  dec.Direction,
		Confidence: dec.Confidence,
		Reasons:    dec.Reasons,
		Timestamp:  now,
	}
}

func (m *LifecycleManager) expire(key models.SignalKey, now time.Time, reason string) *models.SignalEvent {
	sig := m.active[key]
	sig.State = models.StateExpired
	sig.IsActive = false
	sig.ExpireReason = reason
	delete(m.active, key)

	h := append(m.history[key], *sig)
	if len(h) > historyPerKey {
		h = h[len(h)-historyPerKey:]
	}
	m.history[key] = h

	return &models.SignalEvent{
		Type:       models.EventExpire,
		Key:        key,
		Direction:  sig.Direction,
		Confidence: sig.Confidence,
		Reason:     reason,
		Timestamp:  now,
	}
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
