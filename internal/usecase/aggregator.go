package usecase

import (
	"sort"

	"OptionPulse/internal/domain/models"
	"OptionPulse/internal/services/evaluators"
)

// ConfidenceAggregator combines evaluator votes into one directional call
// with a normalized confidence. The aggregation is transparent: every emitted
// signal can cite the indicators that drove it.
type ConfidenceAggregator struct {
	registry *evaluators.Registry
}

func NewConfidenceAggregator(registry *evaluators.Registry) *ConfidenceAggregator {
	return &ConfidenceAggregator{registry: registry}
}

// Evaluate runs every registered evaluator over the snapshot and aggregates
// the votes. Votes are keyed by evaluator name in registry order.
func (a *ConfidenceAggregator) Evaluate(snap models.IndicatorSnapshot) models.SignalDecision {
	votes := make(map[string]models.IndicatorVote, a.registry.Len())
	for _, name := range a.registry.Names() {
		entry, _ := a.registry.Get(name)
		votes[name] = entry.Evaluator.Evaluate(snap)
	}
	return a.Aggregate(votes)
}

type weightedVote struct {
	name   string
	vote   models.IndicatorVote
	weight float64
}

// Aggregate computes the weighted per-direction sums and normalizes the
// winner against the weight mass of all non-neutral voters. An exact tie
// between both directions yields NEUTRAL: ambiguity must not produce a call.
func (a *ConfidenceAggregator) Aggregate(votes map[string]models.IndicatorVote) models.SignalDecision {
	var ceSum, peSum, votedWeight float64
	var nonNeutral []weightedVote

	for _, name := range a.registry.Names() {
		vote, ok := votes[name]
		if !ok || vote.Direction == models.Neutral {
			continue
		}
		entry, ok := a.registry.Get(name)
		if !ok {
			continue
		}
		w := entry.Weight
		votedWeight += w
		switch vote.Direction {
		case models.BuyCE:
			ceSum += w * vote.Strength
		case models.BuyPE:
			peSum += w * vote.Strength
		}
		nonNeutral = append(nonNeutral, weightedVote{name: name, vote: vote, weight: w})
	}

	if votedWeight == 0 {
		return models.SignalDecision{Direction: models.Neutral, Confidence: 0}
	}

	var winner models.Direction
	var winSum float64
	switch {
	case ceSum > peSum:
		winner, winSum = models.BuyCE, ceSum
	case peSum > ceSum:
		winner, winSum = models.BuyPE, peSum
	default:
		// equal weighted sums, both > 0
		return models.SignalDecision{Direction: models.Neutral, Confidence: 0}
	}

	confidence := winSum / votedWeight
	if confidence > 1 {
		confidence = 1
	}

	winning := nonNeutral[:0]
	for _, wv := range nonNeutral {
		if wv.vote.Direction == winner {
			winning = append(winning, wv)
		}
	}
	sort.SliceStable(winning, func(i, j int) bool {
		return winning[i].vote.Strength > winning[j].vote.Strength
	})
	reasons := make([]string, 0, len(winning))
	for _, wv := range winning {
		reasons = append(reasons, wv.vote.Reason)
	}

	return models.SignalDecision{Direction: winner, Confidence: confidence, Reasons: reasons}
}
