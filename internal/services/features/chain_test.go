package features

import (
	"math"
	"testing"

	"OptionPulse/internal/domain/models"
)

func TestATMStrike(t *testing.T) {
	cases := []struct {
		spot, step, want float64
	}{
		{24012, 50, 24000},
		{24026, 50, 24050},
		{24025, 50, 24050}, // round half away from zero
		{51234, 100, 51200},
		{24000, 0, 0},
	}
	for _, c := range cases {
		if got := ATMStrike(c.spot, c.step); got != c.want {
			t.Fatalf("ATMStrike(%v, %v) = %v, want %v", c.spot, c.step, got, c.want)
		}
	}
}

func TestStrikeWindow(t *testing.T) {
	got := StrikeWindow(24000, 50, 2)
	want := []float64{23900, 23950, 24000, 24050, 24100}
	if len(got) != len(want) {
		t.Fatalf("expected %d strikes, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("strike %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestWindowPCR(t *testing.T) {
	rows := []models.ChainRow{
		{Strike: 23950, OptionType: models.CE, OpenInterest: 1000},
		{Strike: 23950, OptionType: models.PE, OpenInterest: 1500},
		{Strike: 24000, OptionType: models.CE, OpenInterest: 2000},
		{Strike: 24000, OptionType: models.PE, OpenInterest: 2500},
		// Outside the window, must be ignored.
		{Strike: 25000, OptionType: models.PE, OpenInterest: 99999},
	}
	strikes := StrikeWindow(24000, 50, 1)

	pcr, ok := WindowPCR(rows, strikes)
	if !ok {
		t.Fatalf("expected computable pcr")
	}
	want := 4000.0 / 3000.0
	if math.Abs(pcr-want) > 1e-9 {
		t.Fatalf("expected pcr %v, got %v", want, pcr)
	}
}

func TestWindowPCRZeroCallOI(t *testing.T) {
	rows := []models.ChainRow{
		{Strike: 24000, OptionType: models.PE, OpenInterest: 1000},
	}
	if _, ok := WindowPCR(rows, []float64{24000}); ok {
		t.Fatalf("expected pcr undefined with zero CE open interest")
	}
}

func TestOIChangePct(t *testing.T) {
	pct, ok := OIChangePct(12000, 10000)
	if !ok || math.Abs(pct-20) > 1e-9 {
		t.Fatalf("expected +20%%, got %v/%v", pct, ok)
	}
	pct, ok = OIChangePct(8000, 10000)
	if !ok || math.Abs(pct+20) > 1e-9 {
		t.Fatalf("expected -20%%, got %v/%v", pct, ok)
	}
	if _, ok := OIChangePct(8000, 0); ok {
		t.Fatalf("expected undefined change without prior level")
	}
}

func TestVolumeSpike(t *testing.T) {
	if !VolumeSpike(2000, 900, 2) {
		t.Fatalf("expected spike at 2000 vs avg 900 x2")
	}
	if VolumeSpike(1500, 900, 2) {
		t.Fatalf("expected no spike below multiplier")
	}
	if VolumeSpike(1500, 0, 2) {
		t.Fatalf("zero average must never spike")
	}
}

func TestRollingAverage(t *testing.T) {
	vals := []int64{100, 200, 300, 400}
	if got := RollingAverage(vals, 2); got != 350 {
		t.Fatalf("expected trailing average 350, got %v", got)
	}
	if got := RollingAverage(vals, 10); got != 250 {
		t.Fatalf("expected full average 250, got %v", got)
	}
	if got := RollingAverage(nil, 3); got != 0 {
		t.Fatalf("expected 0 on empty input, got %v", got)
	}
}
