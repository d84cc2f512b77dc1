// Package features derives indicator inputs from raw option-chain rows.
package features

import (
	"math"

	"OptionPulse/internal/domain/models"
)

// ATMStrike rounds the spot price to the nearest listed strike.
// Returns 0 when the step is not positive.
func ATMStrike(spot, step float64) float64 {
	if step <= 0 {
		return 0
	}
	return math.Round(spot/step) * step
}

// StrikeWindow returns the strikes within `width` steps of the ATM strike,
// ATM included. Width 2 with step 50 around 24000 yields 23900..24100.
func StrikeWindow(atm, step float64, width int) []float64 {
	if step <= 0 || width < 0 {
		return nil
	}
	out := make([]float64, 0, 2*width+1)
	for i := -width; i <= width; i++ {
		out = append(out, atm+float64(i)*step)
	}
	return out
}

// WindowPCR computes the put-call ratio over the chain rows whose strikes
// fall inside the window: total PE open interest over total CE open interest.
// Returns 0 and false when CE open interest in the window is zero.
func WindowPCR(rows []models.ChainRow, strikes []float64) (float64, bool) {
	if len(rows) == 0 || len(strikes) == 0 {
		return 0, false
	}
	inWindow := make(map[float64]struct{}, len(strikes))
	for _, s := range strikes {
		inWindow[s] = struct{}{}
	}

	var ceOI, peOI int64
	for _, row := range rows {
		if _, ok := inWindow[row.Strike]; !ok {
			continue
		}
		switch row.OptionType {
		case models.CE:
			ceOI += row.OpenInterest
		case models.PE:
			peOI += row.OpenInterest
		}
	}
	if ceOI <= 0 {
		return 0, false
	}
	return float64(peOI) / float64(ceOI), true
}

// OIChangePct computes the percentage change of open interest against its
// previous level. Returns 0 and false when there is no prior level.
func OIChangePct(current, previous int64) (float64, bool) {
	if previous <= 0 {
		return 0, false
	}
	return float64(current-previous) / float64(previous) * 100, true
}

// VolumeSpike reports whether volume exceeds its rolling average by the
// multiplier. A non-positive average never spikes.
func VolumeSpike(volume int64, avgVolume, multiplier float64) bool {
	if avgVolume <= 0 || multiplier <= 0 {
		return false
	}
	return float64(volume) >= avgVolume*multiplier
}

// RollingAverage computes the mean of the trailing `window` values.
// Shorter inputs use every available value; empty input returns 0.
func RollingAverage(values []int64, window int) float64 {
	if len(values) == 0 || window <= 0 {
		return 0
	}
	start := 0
	if len(values) > window {
		start = len(values) - window
	}
	var sum int64
	for _, v := range values[start:] {
		sum += v
	}
	return float64(sum) / float64(len(values)-start)
}
