package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"OptionPulse/internal/domain/models"
	"OptionPulse/internal/domain/repository"
	"OptionPulse/internal/domain/service"
	"OptionPulse/internal/service/ratelimit"
	"OptionPulse/internal/services/evaluators"
	"OptionPulse/pkg/config"
	"OptionPulse/pkg/logger"
)

// SignalEngine drives one decision cycle: sweep stale signals, evaluate the
// cycle's snapshots, run the lifecycle state machine, rate-limit creations
// and hand finalized events to the dispatch gateway.
//
// A cycle is fail-atomic per key: an error on one key skips that key and
// leaves its tracked state untouched; other keys proceed.
type SignalEngine struct {
	cfg        *config.EngineConfig
	cfgMu      sync.RWMutex
	aggregator *ConfidenceAggregator
	lifecycle  *LifecycleManager
	limiter    *ratelimit.SlidingWindow
	dispatcher repository.Dispatcher
	archive    repository.SignalArchive
	metrics    repository.Metrics
	scorer     service.DirectionScorer
	minProba   float64
	clock      func() time.Time
	log        *logger.Logger
}

type EngineOption func(*SignalEngine)

// WithClock overrides the engine time source.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *SignalEngine) { e.clock = clock }
}

// WithScorer attaches an optional learned direction scorer. Decisions whose
// winning direction the scorer contradicts below minProba are vetoed to
// neutral; scorer errors never block the deterministic path.
func WithScorer(scorer service.DirectionScorer, minProba float64) EngineOption {
	return func(e *SignalEngine) {
		e.scorer = scorer
		e.minProba = minProba
	}
}

func NewSignalEngine(
	cfg *config.EngineConfig,
	aggregator *ConfidenceAggregator,
	dispatcher repository.Dispatcher,
	archive repository.SignalArchive,
	metrics repository.Metrics,
	log *logger.Logger,
	opts ...EngineOption,
) (*SignalEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	e := &SignalEngine{
		cfg:        cfg,
		aggregator: aggregator,
		lifecycle:  NewLifecycleManager(),
		limiter:    ratelimit.NewSlidingWindow(cfg.MaxSignalsPerHour, time.Hour),
		dispatcher: dispatcher,
		archive:    archive,
		metrics:    metrics,
		clock:      time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// UpdateConfig swaps the engine tuning between cycles. The new config is
// validated as a unit and the evaluator registry is rebuilt from it, so
// thresholds, OI bias and weights all take effect on the next cycle. A
// rejected config leaves the previous tuning in force.
func (e *SignalEngine) UpdateConfig(cfg *config.EngineConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("engine config rejected: %w", err)
	}
	registry, err := evaluators.NewDefaultRegistry(cfg)
	if err != nil {
		return fmt.Errorf("engine config rejected: %w", err)
	}
	aggregator := NewConfidenceAggregator(registry)

	e.cfgMu.Lock()
	e.cfg = cfg
	e.aggregator = aggregator
	e.cfgMu.Unlock()
	e.limiter.SetLimit(cfg.MaxSignalsPerHour)
	e.log.Info("engine config updated",
		logger.Int("cooldown_minutes", cfg.SignalCooldownMinutes),
		logger.Any("confidence_threshold", cfg.ConfidenceThreshold))
	return nil
}

// config returns the tuning and the aggregator built from it as one unit, so
// a cycle never mixes old thresholds with new weights.
func (e *SignalEngine) config() (*config.EngineConfig, *ConfidenceAggregator) {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg, e.aggregator
}

// CycleResult summarizes one decision cycle for logging and metrics.
type CycleResult struct {
	Evaluated  int
	Events     []*models.SignalEvent
	Suppressed []*models.SignalEvent
	Failed     []models.SignalKey
}

// RunCycle processes one batch of deduplicated snapshots. Snapshots are
// assumed latest-per-key; the scheduler guarantees serialized invocation, so
// RunCycle itself does not need to be reentrant.
func (e *SignalEngine) RunCycle(ctx context.Context, snaps []models.IndicatorSnapshot) (*CycleResult, error) {
	start := e.clock()
	cfg, agg := e.config()
	res := &CycleResult{}

	// Time-based expiry first, so keys with no fresh snapshot still expire.
	res.Events = append(res.Events, e.lifecycle.SweepExpired(start)...)

	for _, snap := range snaps {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		key := snap.Key()
		events, err := e.processKey(ctx, key, snap, agg, cfg)
		if err != nil {
			res.Failed = append(res.Failed, key)
			e.metrics.RecordError("cycle_key")
			e.log.Error("key evaluation failed", logger.String("key", key.String()), logger.Error(err))
			continue
		}
		res.Evaluated++
		res.Events = append(res.Events, events...)
	}

	res.Events, res.Suppressed = e.admitCreations(res.Events)
	e.publish(ctx, res)

	e.metrics.RecordActiveSignals(e.lifecycle.ActiveCount())
	e.metrics.RecordLatency("cycle", e.clock().Sub(start).Seconds())
	return res, nil
}

func (e *SignalEngine) processKey(ctx context.Context, key models.SignalKey, snap models.IndicatorSnapshot, agg *ConfidenceAggregator, cfg *config.EngineConfig) ([]*models.SignalEvent, error) {
	dec := agg.Evaluate(snap)

	if dec.Direction != models.Neutral {
		e.metrics.RecordConfidence(key.Symbol, dec.Confidence)
		dec = e.applyScorer(ctx, key, snap, dec)
	}

	return e.lifecycle.Apply(key, dec, e.clock(), cfg)
}

// applyScorer vetoes a directional decision the learned model disagrees with.
// Absent, failing or indifferent scorers leave the decision untouched.
func (e *SignalEngine) applyScorer(ctx context.Context, key models.SignalKey, snap models.IndicatorSnapshot, dec models.SignalDecision) models.SignalDecision {
	if e.scorer == nil {
		return dec
	}

	features := map[string]float64{
		"pcr":           snap.PCR,
		"rsi":           snap.RSI,
		"oi":            float64(snap.OI),
		"oi_change_pct": snap.OIChangePct,
		"volume":        float64(snap.Volume),
		"avg_volume":    snap.AvgVolume,
		"last_price":    snap.LastPrice,
	}
	probaUp, err := e.scorer.Score(ctx, key, features)
	if err != nil {
		e.metrics.RecordError("scorer")
		e.log.Warn("direction scorer unavailable", logger.String("key", key.String()), logger.Error(err))
		return dec
	}

	proba := probaUp
	if dec.Direction == models.BuyPE {
		proba = 1 - probaUp
	}
	if proba < e.minProba {
		e.log.Info("decision vetoed by scorer",
			logger.String("key", key.String()),
			logger.String("direction", string(dec.Direction)),
			logger.Any("proba", proba))
		return models.SignalDecision{Direction: models.Neutral, Confidence: 0}
	}
	return dec
}

// admitCreations runs CREATE events through the sliding-window limiter.
// Suppression is external only: a rate-limited signal stays tracked as
// active, but the gateway receives a SUPPRESSED event instead of the CREATE.
// Renewals and expiries are never limited.
func (e *SignalEngine) admitCreations(events []*models.SignalEvent) (admitted, suppressed []*models.SignalEvent) {
	for _, ev := range events {
		if ev.Type != models.EventCreate {
			admitted = append(admitted, ev)
			continue
		}
		if e.limiter.Admit(ev.Timestamp) {
			admitted = append(admitted, ev)
			continue
		}
		suppressed = append(suppressed, &models.SignalEvent{
			Type:       models.EventSuppressed,
			Key:        ev.Key,
			Direction:  ev.Direction,
			Confidence: ev.Confidence,
			Reason:     models.ReasonRateLimited,
			Timestamp:  ev.Timestamp,
		})
		e.metrics.RecordEvent(string(models.EventSuppressed), ev.Key.Symbol)
		e.log.Warn("signal creation rate limited", logger.String("key", ev.Key.String()))
	}
	return admitted, suppressed
}

// publish hands the cycle's events to the gateway and archive. Failures are
// logged and counted but do not fail the cycle; tracked state has already
// been finalized.
func (e *SignalEngine) publish(ctx context.Context, res *CycleResult) {
	for _, ev := range res.Events {
		e.metrics.RecordEvent(string(ev.Type), ev.Key.Symbol)
	}

	if len(res.Events) > 0 && e.dispatcher != nil {
		if err := e.dispatcher.DispatchBatch(ctx, res.Events); err != nil {
			e.metrics.RecordError("dispatch")
			e.log.Error("event dispatch failed", logger.Int("events", len(res.Events)), logger.Error(err))
		}
	}

	all := append(append([]*models.SignalEvent{}, res.Events...), res.Suppressed...)
	if len(all) > 0 && e.archive != nil {
		if err := e.archive.AppendBatch(ctx, all); err != nil {
			e.metrics.RecordError("archive")
			e.log.Error("event archiving failed", logger.Int("events", len(all)), logger.Error(err))
		}
	}
}

// Close releases the dispatch and archive resources.
func (e *SignalEngine) Close() error {
	var errs []error
	if e.dispatcher != nil {
		errs = append(errs, e.dispatcher.Close())
	}
	if e.archive != nil {
		errs = append(errs, e.archive.Close())
	}
	return errors.Join(errs...)
}

// ActiveSignals exposes the tracked active set for the query surface.
func (e *SignalEngine) ActiveSignals() []models.TrackedSignal {
	return e.lifecycle.ActiveSignals()
}

// RecentHistory exposes the bounded in-memory closed-signal record for a key.
func (e *SignalEngine) RecentHistory(key models.SignalKey) []models.TrackedSignal {
	return e.lifecycle.RecentHistory(key)
}

// CreationBudgetUsed reports how many creations the trailing window holds.
func (e *SignalEngine) CreationBudgetUsed() int {
	return e.limiter.Count(e.clock())
}
