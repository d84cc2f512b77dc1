package evaluators

import (
	"fmt"

	"OptionPulse/internal/domain/models"
	domsvc "OptionPulse/internal/domain/service"
	"OptionPulse/pkg/config"
)

// PCREvaluator votes on the put-call ratio. Strength ramps linearly from 0
// at the neutral band edge to 1 at the trigger threshold, so a reading just
// outside the band produces a weak vote instead of a step jump.
type PCREvaluator struct {
	buyCEMax   float64
	buyPEMin   float64
	neutralLow float64
	neutralHi  float64
}

func NewPCREvaluator(cfg *config.EngineConfig) *PCREvaluator {
	return &PCREvaluator{
		buyCEMax:   cfg.PCRThresholds.BuyCEMax,
		buyPEMin:   cfg.PCRThresholds.BuyPEMin,
		neutralLow: cfg.PCRThresholds.NeutralRange[0],
		neutralHi:  cfg.PCRThresholds.NeutralRange[1],
	}
}

func (e *PCREvaluator) Name() string { return config.EvaluatorPCR }

func (e *PCREvaluator) Evaluate(snap models.IndicatorSnapshot) models.IndicatorVote {
	if err := snap.Validate(); err != nil {
		return models.NeutralVote("pcr: invalid snapshot: " + err.Error())
	}

	pcr := snap.PCR
	switch {
	case pcr < e.neutralLow:
		strength := clamp01((e.neutralLow - pcr) / (e.neutralLow - e.buyCEMax))
		return models.IndicatorVote{
			Direction: models.BuyCE,
			Strength:  strength,
			Reason:    fmt.Sprintf("pcr %.2f below neutral band (buy_ce_max %.2f)", pcr, e.buyCEMax),
		}
	case pcr > e.neutralHi:
		strength := clamp01((pcr - e.neutralHi) / (e.buyPEMin - e.neutralHi))
		return models.IndicatorVote{
			Direction: models.BuyPE,
			Strength:  strength,
			Reason:    fmt.Sprintf("pcr %.2f above neutral band (buy_pe_min %.2f)", pcr, e.buyPEMin),
		}
	default:
		return models.NeutralVote(fmt.Sprintf("pcr %.2f inside neutral band", pcr))
	}
}

var _ domsvc.Evaluator = (*PCREvaluator)(nil)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
