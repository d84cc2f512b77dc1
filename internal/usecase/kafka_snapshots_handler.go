package usecase

import (
	"context"
	"encoding/json"
	"time"

	"OptionPulse/internal/domain/models"
	domrepo "OptionPulse/internal/domain/repository"
	mid "OptionPulse/internal/middleware"
	pkgkafka "OptionPulse/pkg/kafka"
)

// KafkaSnapshotsHandler consumes indicator snapshots published by the
// upstream feature pipeline and queues them for the next decision cycle.
type KafkaSnapshotsHandler struct {
	topic     string
	scheduler *mid.CycleScheduler
	metrics   domrepo.Metrics
}

func NewKafkaSnapshotsHandler(topic string, scheduler *mid.CycleScheduler, metrics domrepo.Metrics) *KafkaSnapshotsHandler {
	return &KafkaSnapshotsHandler{topic: topic, scheduler: scheduler, metrics: metrics}
}

func (h *KafkaSnapshotsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, strike, option_type, pcr, rsi, oi,
// oi_change_pct, volume, avg_volume, last_price, ts}
func (h *KafkaSnapshotsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol      string  `json:"symbol"`
		Strike      float64 `json:"strike"`
		OptionType  string  `json:"option_type"`
		PCR         float64 `json:"pcr"`
		RSI         float64 `json:"rsi"`
		OI          int64   `json:"oi"`
		OIChangePct float64 `json:"oi_change_pct"`
		Volume      int64   `json:"volume"`
		AvgVolume   float64 `json:"avg_volume"`
		LastPrice   float64 `json:"last_price"`
		Ts          int64   `json:"ts"` // ms
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	ts := time.UnixMilli(m.Ts).UTC()
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())

	snap := models.IndicatorSnapshot{
		Symbol:      m.Symbol,
		Strike:      m.Strike,
		OptionType:  models.NormalizeOptionType(m.OptionType),
		PCR:         m.PCR,
		RSI:         m.RSI,
		OI:          m.OI,
		OIChangePct: m.OIChangePct,
		Volume:      m.Volume,
		AvgVolume:   m.AvgVolume,
		LastPrice:   m.LastPrice,
		Timestamp:   ts,
	}
	if err := h.scheduler.Offer(snap); err != nil {
		h.metrics.RecordError("consumer_snapshot_reject")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotsHandler)(nil)
