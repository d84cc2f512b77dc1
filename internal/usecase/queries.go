package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"OptionPulse/internal/domain/models"
	domrepo "OptionPulse/internal/domain/repository"
	"OptionPulse/internal/service/cache"
	"OptionPulse/pkg/config"
)

// SignalQueryUseCase serves the read-only monitoring surface: the active set,
// per-key event history and overall engine status. It never mutates tracked
// state.
type SignalQueryUseCase struct {
	engine     *SignalEngine
	archive    domrepo.SignalArchive
	cache      cache.BytesCache
	historyTTL time.Duration
	timeout    time.Duration
}

func NewSignalQueryUseCase(engine *SignalEngine, archive domrepo.SignalArchive, bc cache.BytesCache, cfg *config.Config) *SignalQueryUseCase {
	ttl := cfg.Cache.HistoryTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &SignalQueryUseCase{
		engine:     engine,
		archive:    archive,
		cache:      bc,
		historyTTL: ttl,
		timeout:    10 * time.Second,
	}
}

// ActiveSignals returns the active set, optionally filtered by symbol.
func (uc *SignalQueryUseCase) ActiveSignals(symbol string) []models.TrackedSignal {
	signals := uc.engine.ActiveSignals()
	if symbol == "" {
		return signals
	}
	out := signals[:0]
	for _, s := range signals {
		if s.Key.Symbol == symbol {
			out = append(out, s)
		}
	}
	return out
}

// History returns the archived event history for one key, newest first,
// bounded to [from, to]. Results are cached briefly since the dashboard
// polls this endpoint.
func (uc *SignalQueryUseCase) History(ctx context.Context, req *models.SignalHistoryRequest, from, to time.Time) ([]*models.SignalEvent, error) {
	key := models.SignalKey{
		Symbol:     req.Symbol,
		Strike:     req.Strike,
		OptionType: models.NormalizeOptionType(req.OptionType),
	}

	cacheKey := fmt.Sprintf("signal_history:%s:%d:%d:%d", key, req.Limit, from.Unix(), to.Unix())
	if uc.cache != nil {
		if b, ok, err := uc.cache.GetBytes(cacheKey); err == nil && ok {
			var events []*models.SignalEvent
			if err := json.Unmarshal(b, &events); err == nil {
				return events, nil
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	events, err := uc.archive.History(ctx, key, req.Limit)
	if err != nil {
		// Degrade to the bounded in-memory record when the archive is down.
		recent := uc.engine.RecentHistory(key)
		if len(recent) == 0 {
			return nil, fmt.Errorf("signal history: %w", err)
		}
		out := make([]*models.SignalEvent, 0, len(recent))
		for i := range recent {
			sig := recent[i]
			out = append(out, &models.SignalEvent{
				Type:       models.EventExpire,
				Key:        sig.Key,
				Direction:  sig.Direction,
				Confidence: sig.Confidence,
				Reason:     sig.ExpireReason,
				Timestamp:  sig.ExpiresAt,
			})
		}
		return filterByTime(out, from, to), nil
	}
	events = filterByTime(events, from, to)

	if uc.cache != nil {
		if b, err := json.Marshal(events); err == nil {
			_ = uc.cache.SetBytes(cacheKey, b, uc.historyTTL)
		}
	}
	return events, nil
}

// filterByTime keeps events with timestamps inside [from, to]. A zero bound
// is open on that side.
func filterByTime(events []*models.SignalEvent, from, to time.Time) []*models.SignalEvent {
	out := events[:0]
	for _, ev := range events {
		if !from.IsZero() && ev.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && ev.Timestamp.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Status gathers the engine status snapshot. Sub-checks run concurrently and
// partial failures are reported per component rather than failing the call.
func (uc *SignalQueryUseCase) Status(ctx context.Context) *models.EngineStatusResponse {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	engCfg, _ := uc.engine.config()
	res := &models.EngineStatusResponse{
		Config: engCfg,
		Errors: map[string]string{},
	}

	type item struct {
		name string
		err  error
	}
	ch := make(chan item, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.ActiveSignals = uc.engine.ActiveSignals()
		res.ActiveCount = len(res.ActiveSignals)
		used := uc.engine.CreationBudgetUsed()
		if remaining := engCfg.MaxSignalsPerHour - used; remaining > 0 {
			res.RateLimitRemaining = remaining
		}
		ch <- item{"engine", nil}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		if uc.archive != nil {
			err = uc.archive.Health(ctx)
		}
		res.ArchiveHealthy = err == nil
		ch <- item{"archive", err}
	}()

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res
}
