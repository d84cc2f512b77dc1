package service

import (
	"context"

	"OptionPulse/internal/domain/models"
)

// Evaluator maps one snapshot to a directional vote. Implementations must be
// pure: no side effects, deterministic given configuration, and defensive
// against malformed snapshots (degrade to a neutral vote, never panic).
type Evaluator interface {
	Name() string
	Evaluate(snap models.IndicatorSnapshot) models.IndicatorVote
}

// DirectionScorer is the single interface through which an optional learned
// model is consulted. The deterministic decision stands when the scorer is
// absent or errors.
type DirectionScorer interface {
	Score(ctx context.Context, key models.SignalKey, features map[string]float64) (probaUp float64, err error)
}
