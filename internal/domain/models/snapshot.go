package models

import (
	"fmt"
	"time"
)

// Direction is the directional call of an indicator or an aggregated decision.
type Direction string

const (
	BuyCE   Direction = "BUY_CE"
	BuyPE   Direction = "BUY_PE"
	Neutral Direction = "NEUTRAL"
)

// Opposite returns the inverse directional call. Neutral maps to itself.
func (d Direction) Opposite() Direction {
	switch d {
	case BuyCE:
		return BuyPE
	case BuyPE:
		return BuyCE
	default:
		return Neutral
	}
}

// OptionType distinguishes call and put contracts.
type OptionType string

const (
	CE OptionType = "CE"
	PE OptionType = "PE"
)

// IsValidOptionType returns true if t is a supported option type.
func IsValidOptionType(t OptionType) bool {
	return t == CE || t == PE
}

// NormalizeOptionType converts a raw string to a valid option type (or CE).
func NormalizeOptionType(s string) OptionType {
	t := OptionType(s)
	if IsValidOptionType(t) {
		return t
	}
	return CE
}

// SignalKey identifies one tracked instrument: keys never alias across
// symbols, strikes or option types.
type SignalKey struct {
	Symbol     string     `json:"symbol"`
	Strike     float64    `json:"strike"`
	OptionType OptionType `json:"option_type"`
}

func (k SignalKey) String() string {
	return fmt.Sprintf("%s:%g:%s", k.Symbol, k.Strike, k.OptionType)
}

// IndicatorSnapshot is one cleaned market observation per
// (symbol, strike, option_type), produced upstream and consumed read-only.
type IndicatorSnapshot struct {
	Symbol      string     `json:"symbol"`
	Strike      float64    `json:"strike"`
	OptionType  OptionType `json:"option_type"`
	PCR         float64    `json:"pcr"`
	RSI         float64    `json:"rsi"`
	OI          int64      `json:"oi"`
	OIChangePct float64    `json:"oi_change_pct"`
	Volume      int64      `json:"volume"`
	AvgVolume   float64    `json:"avg_volume"`
	LastPrice   float64    `json:"last_price"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Key returns the tracking key for this snapshot.
func (s IndicatorSnapshot) Key() SignalKey {
	return SignalKey{Symbol: s.Symbol, Strike: s.Strike, OptionType: s.OptionType}
}

// Validate checks every field against its declared domain. Evaluators call
// this defensively even though upstream cleaning is expected.
func (s IndicatorSnapshot) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("symbol is empty")
	}
	if !IsValidOptionType(s.OptionType) {
		return fmt.Errorf("invalid option type %q", s.OptionType)
	}
	if s.PCR < 0 {
		return fmt.Errorf("pcr %.4f out of domain", s.PCR)
	}
	if s.RSI < 0 || s.RSI > 100 {
		return fmt.Errorf("rsi %.2f out of domain", s.RSI)
	}
	if s.OI < 0 {
		return fmt.Errorf("oi %d out of domain", s.OI)
	}
	if s.Volume < 0 {
		return fmt.Errorf("volume %d out of domain", s.Volume)
	}
	if s.AvgVolume < 0 {
		return fmt.Errorf("avg_volume %.2f out of domain", s.AvgVolume)
	}
	if s.LastPrice < 0 {
		return fmt.Errorf("last_price %.2f out of domain", s.LastPrice)
	}
	return nil
}

// IndicatorVote is one evaluator's directional vote for one snapshot.
// Ephemeral: it exists only within a single decision pass.
type IndicatorVote struct {
	Direction Direction
	Strength  float64 // [0,1]
	Reason    string
}

// NeutralVote builds a zero-strength neutral vote with the given reason.
func NeutralVote(reason string) IndicatorVote {
	return IndicatorVote{Direction: Neutral, Strength: 0, Reason: reason}
}

// SignalDecision is the aggregated output of one decision pass for one key.
// Discarded after the lifecycle manager consumes it.
type SignalDecision struct {
	Direction  Direction
	Confidence float64 // [0,1]
	// Reasons lists, in descending strength order, the reason of every
	// evaluator that voted for the winning direction.
	Reasons []string
}

// ChainRow is one raw option-chain record, used when the upstream feed
// delivers uncleaned chain frames instead of precomputed snapshots.
type ChainRow struct {
	Symbol       string     `json:"symbol"`
	Strike       float64    `json:"strike"`
	OptionType   OptionType `json:"option_type"`
	OpenInterest int64      `json:"open_interest"`
	ChangeInOI   int64      `json:"change_in_oi"`
	Volume       int64      `json:"volume"`
	LastPrice    float64    `json:"last_price"`
}
