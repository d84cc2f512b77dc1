package usecase

import (
	"math"
	"testing"
	"time"

	"OptionPulse/internal/domain/models"
	"OptionPulse/internal/services/evaluators"
	"OptionPulse/pkg/config"
)

func testSnapshot() models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		Symbol:     "NIFTY",
		Strike:     24000,
		OptionType: models.CE,
		PCR:        1.0,
		RSI:        50,
		OI:         50000,
		Volume:     1000,
		AvgVolume:  900,
		LastPrice:  120,
		Timestamp:  time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
	}
}

func newTestAggregator(t *testing.T, cfg *config.EngineConfig) *ConfidenceAggregator {
	t.Helper()
	reg, err := evaluators.NewDefaultRegistry(cfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return NewConfidenceAggregator(reg)
}

func TestAggregateBullishConsensus(t *testing.T) {
	cfg := config.DefaultEngine()
	agg := newTestAggregator(t, &cfg)

	// PCR 0.65 -> CE strength 1.0, RSI 25 -> CE 5/30, OI +20% with volume
	// spike -> CE 20/30. Equal weights: (1 + 1/6 + 2/3)/3.
	s := testSnapshot()
	s.PCR = 0.65
	s.RSI = 25
	s.OIChangePct = 20
	s.Volume = 2000

	dec := agg.Evaluate(s)
	if dec.Direction != models.BuyCE {
		t.Fatalf("expected BUY_CE, got %s", dec.Direction)
	}
	want := (1.0 + 5.0/30.0 + 20.0/30.0) / 3.0
	if math.Abs(dec.Confidence-want) > 1e-9 {
		t.Fatalf("expected confidence %v, got %v", want, dec.Confidence)
	}
	if dec.Confidence <= cfg.ConfidenceThreshold {
		t.Fatalf("expected confidence above threshold %.2f, got %v", cfg.ConfidenceThreshold, dec.Confidence)
	}
	if len(dec.Reasons) != 3 {
		t.Fatalf("expected three contributing reasons, got %v", dec.Reasons)
	}
}

func TestAggregateAllNeutral(t *testing.T) {
	cfg := config.DefaultEngine()
	agg := newTestAggregator(t, &cfg)

	// PCR 0.9 in band, RSI 50 mid-range, OI +5% insignificant.
	s := testSnapshot()
	s.PCR = 0.9
	s.OIChangePct = 5

	dec := agg.Evaluate(s)
	if dec.Direction != models.Neutral || dec.Confidence != 0 {
		t.Fatalf("expected NEUTRAL/0, got %s/%v", dec.Direction, dec.Confidence)
	}
	if len(dec.Reasons) != 0 {
		t.Fatalf("expected no reasons on neutral, got %v", dec.Reasons)
	}
}

func TestAggregateExactTieIsNeutral(t *testing.T) {
	cfg := config.DefaultEngine()
	agg := newTestAggregator(t, &cfg)

	votes := map[string]models.IndicatorVote{
		config.EvaluatorPCR: {Direction: models.BuyCE, Strength: 0.5, Reason: "pcr bullish"},
		config.EvaluatorRSI: {Direction: models.BuyPE, Strength: 0.5, Reason: "rsi overbought"},
	}
	dec := agg.Aggregate(votes)
	if dec.Direction != models.Neutral || dec.Confidence != 0 {
		t.Fatalf("expected NEUTRAL on tie, got %s/%v", dec.Direction, dec.Confidence)
	}
}

func TestAggregateNormalizesOverNonNeutralWeight(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.Weights = map[string]float64{
		config.EvaluatorPCR:      2,
		config.EvaluatorRSI:      1,
		config.EvaluatorOIVolume: 1,
	}
	agg := newTestAggregator(t, &cfg)

	votes := map[string]models.IndicatorVote{
		config.EvaluatorPCR:      {Direction: models.BuyPE, Strength: 0.8, Reason: "pcr bearish"},
		config.EvaluatorRSI:      {Direction: models.Neutral, Strength: 0, Reason: "rsi neutral"},
		config.EvaluatorOIVolume: {Direction: models.BuyCE, Strength: 0.4, Reason: "oi spike"},
	}
	dec := agg.Aggregate(votes)
	if dec.Direction != models.BuyPE {
		t.Fatalf("expected BUY_PE to win, got %s", dec.Direction)
	}
	// Neutral RSI weight is excluded from the denominator.
	want := (2 * 0.8) / 3.0
	if math.Abs(dec.Confidence-want) > 1e-9 {
		t.Fatalf("expected confidence %v, got %v", want, dec.Confidence)
	}
	if len(dec.Reasons) != 1 || dec.Reasons[0] != "pcr bearish" {
		t.Fatalf("expected only the winning voter's reason, got %v", dec.Reasons)
	}
}

func TestAggregateReasonsOrderedByStrength(t *testing.T) {
	cfg := config.DefaultEngine()
	agg := newTestAggregator(t, &cfg)

	votes := map[string]models.IndicatorVote{
		config.EvaluatorPCR:      {Direction: models.BuyCE, Strength: 0.3, Reason: "weak pcr"},
		config.EvaluatorRSI:      {Direction: models.BuyCE, Strength: 0.9, Reason: "strong rsi"},
		config.EvaluatorOIVolume: {Direction: models.BuyCE, Strength: 0.6, Reason: "medium oi"},
	}
	dec := agg.Aggregate(votes)
	if dec.Direction != models.BuyCE {
		t.Fatalf("expected BUY_CE, got %s", dec.Direction)
	}
	want := []string{"strong rsi", "medium oi", "weak pcr"}
	if len(dec.Reasons) != len(want) {
		t.Fatalf("expected %d reasons, got %v", len(want), dec.Reasons)
	}
	for i, r := range want {
		if dec.Reasons[i] != r {
			t.Fatalf("reason %d: expected %q, got %q (%v)", i, r, dec.Reasons[i], dec.Reasons)
		}
	}
}

func TestAggregateConfidenceNeverExceedsOne(t *testing.T) {
	cfg := config.DefaultEngine()
	agg := newTestAggregator(t, &cfg)

	votes := map[string]models.IndicatorVote{
		config.EvaluatorPCR:      {Direction: models.BuyCE, Strength: 1, Reason: "pcr"},
		config.EvaluatorRSI:      {Direction: models.BuyCE, Strength: 1, Reason: "rsi"},
		config.EvaluatorOIVolume: {Direction: models.BuyCE, Strength: 1, Reason: "oi"},
	}
	dec := agg.Aggregate(votes)
	if dec.Confidence > 1 {
		t.Fatalf("confidence %v exceeds 1", dec.Confidence)
	}
	if dec.Confidence != 1 {
		t.Fatalf("expected unanimous full-strength confidence 1, got %v", dec.Confidence)
	}
}
