package evaluators

import (
	"fmt"
	"math"

	"OptionPulse/internal/domain/models"
	domsvc "OptionPulse/internal/domain/service"
	"OptionPulse/pkg/config"
)

// OIVolumeEvaluator votes on open-interest buildup confirmed by a volume
// spike. Contracts below the minimum OI level are treated as illiquid and
// forced neutral. The direction a rising-OI spike favors is configured per
// option type; a falling spike favors the opposite.
type OIVolumeEvaluator struct {
	significantChangePct float64
	volumeSpikeMult      float64
	minOILevel           int64
	bias                 map[models.OptionType]models.Direction
}

func NewOIVolumeEvaluator(cfg *config.EngineConfig) *OIVolumeEvaluator {
	bias := map[models.OptionType]models.Direction{
		models.CE: models.BuyCE,
		models.PE: models.BuyPE,
	}
	for ot, dir := range cfg.OIAnalysis.DirectionBias {
		bias[models.NormalizeOptionType(ot)] = models.Direction(dir)
	}
	return &OIVolumeEvaluator{
		significantChangePct: cfg.OIAnalysis.SignificantChangePct,
		volumeSpikeMult:      cfg.OIAnalysis.VolumeSpikeMultiplier,
		minOILevel:           cfg.OIAnalysis.MinOILevel,
		bias:                 bias,
	}
}

func (e *OIVolumeEvaluator) Name() string { return config.EvaluatorOIVolume }

func (e *OIVolumeEvaluator) Evaluate(snap models.IndicatorSnapshot) models.IndicatorVote {
	if err := snap.Validate(); err != nil {
		return models.NeutralVote("oi_volume: invalid snapshot: " + err.Error())
	}

	if snap.OI < e.minOILevel {
		return models.NeutralVote(fmt.Sprintf("oi %d below liquidity floor %d", snap.OI, e.minOILevel))
	}

	change := math.Abs(snap.OIChangePct)
	if change <= e.significantChangePct {
		return models.NeutralVote(fmt.Sprintf("oi change %.1f%% below significance %.1f%%", snap.OIChangePct, e.significantChangePct))
	}
	if float64(snap.Volume) < snap.AvgVolume*e.volumeSpikeMult {
		return models.NeutralVote(fmt.Sprintf("volume %d lacks spike (avg %.0f x%.1f)", snap.Volume, snap.AvgVolume, e.volumeSpikeMult))
	}

	dir := e.bias[snap.OptionType]
	if snap.OIChangePct < 0 {
		dir = dir.Opposite()
	}
	strength := math.Min(1, change/(2*e.significantChangePct))
	return models.IndicatorVote{
		Direction: dir,
		Strength:  strength,
		Reason:    fmt.Sprintf("oi change %+.1f%% with volume spike on %s", snap.OIChangePct, snap.OptionType),
	}
}

var _ domsvc.Evaluator = (*OIVolumeEvaluator)(nil)
