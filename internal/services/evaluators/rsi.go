package evaluators

import (
	"fmt"

	"OptionPulse/internal/domain/models"
	domsvc "OptionPulse/internal/domain/service"
	"OptionPulse/pkg/config"
)

// RSIEvaluator votes on momentum extremes: oversold favors a bounce (call),
// overbought favors a decline (put).
type RSIEvaluator struct {
	oversoldMax   float64
	overboughtMin float64
}

func NewRSIEvaluator(cfg *config.EngineConfig) *RSIEvaluator {
	return &RSIEvaluator{
		oversoldMax:   cfg.RSILevels.OversoldMax,
		overboughtMin: cfg.RSILevels.OverboughtMin,
	}
}

func (e *RSIEvaluator) Name() string { return config.EvaluatorRSI }

func (e *RSIEvaluator) Evaluate(snap models.IndicatorSnapshot) models.IndicatorVote {
	if err := snap.Validate(); err != nil {
		return models.NeutralVote("rsi: invalid snapshot: " + err.Error())
	}

	rsi := snap.RSI
	switch {
	case rsi < e.oversoldMax:
		strength := clamp01((e.oversoldMax - rsi) / e.oversoldMax)
		return models.IndicatorVote{
			Direction: models.BuyCE,
			Strength:  strength,
			Reason:    fmt.Sprintf("rsi %.1f oversold (max %.1f)", rsi, e.oversoldMax),
		}
	case rsi > e.overboughtMin:
		strength := clamp01((rsi - e.overboughtMin) / (100 - e.overboughtMin))
		return models.IndicatorVote{
			Direction: models.BuyPE,
			Strength:  strength,
			Reason:    fmt.Sprintf("rsi %.1f overbought (min %.1f)", rsi, e.overboughtMin),
		}
	default:
		return models.NeutralVote(fmt.Sprintf("rsi %.1f in normal range", rsi))
	}
}

var _ domsvc.Evaluator = (*RSIEvaluator)(nil)
