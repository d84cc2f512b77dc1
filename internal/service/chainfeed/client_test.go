package chainfeed

import (
	"math"
	"testing"

	"OptionPulse/internal/domain/models"
)

func chainClient() *Client {
	c := New("", "", []string{"NIFTY"}, 50, 1, 0, 0)
	return c.(*Client)
}

func chainFrame(spot float64, rows []models.ChainRow) *feedMessage {
	return &feedMessage{
		Type:   "chain",
		Symbol: "NIFTY",
		Spot:   spot,
		RSI:    48,
		Ts:     1756000000000,
		Rows:   rows,
	}
}

func TestDeriveFromChainWindowPCR(t *testing.T) {
	c := chainClient()
	rows := []models.ChainRow{
		{Symbol: "NIFTY", Strike: 24000, OptionType: models.CE, OpenInterest: 100000, Volume: 1200, LastPrice: 110},
		{Symbol: "NIFTY", Strike: 24000, OptionType: models.PE, OpenInterest: 150000, Volume: 900, LastPrice: 95},
		{Symbol: "NIFTY", Strike: 24050, OptionType: models.CE, OpenInterest: 50000, Volume: 400, LastPrice: 80},
		// outside the one-step window around 24000
		{Symbol: "NIFTY", Strike: 24200, OptionType: models.PE, OpenInterest: 900000, Volume: 10, LastPrice: 40},
	}

	snaps := c.deriveFromChain(chainFrame(24010, rows))
	if len(snaps) != 3 {
		t.Fatalf("expected 3 in-window snapshots, got %d", len(snaps))
	}

	wantPCR := 150000.0 / 150000.0
	for _, s := range snaps {
		if math.Abs(s.PCR-wantPCR) > 1e-9 {
			t.Fatalf("pcr = %.4f, want %.4f", s.PCR, wantPCR)
		}
		if s.RSI != 48 {
			t.Fatalf("rsi = %.1f, want frame rsi 48", s.RSI)
		}
		if s.Symbol != "NIFTY" {
			t.Fatalf("symbol = %q", s.Symbol)
		}
	}
}

func TestDeriveFromChainTracksOIAndVolume(t *testing.T) {
	c := chainClient()
	first := []models.ChainRow{
		{Symbol: "NIFTY", Strike: 24000, OptionType: models.CE, OpenInterest: 100000, Volume: 1000, LastPrice: 100},
	}
	second := []models.ChainRow{
		{Symbol: "NIFTY", Strike: 24000, OptionType: models.CE, OpenInterest: 120000, Volume: 3000, LastPrice: 104},
	}

	snaps := c.deriveFromChain(chainFrame(24000, first))
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].OIChangePct != 0 {
		t.Fatalf("first frame has no OI baseline, got %.2f", snaps[0].OIChangePct)
	}
	if snaps[0].AvgVolume != 0 {
		t.Fatalf("first frame has no volume baseline, got %.2f", snaps[0].AvgVolume)
	}

	snaps = c.deriveFromChain(chainFrame(24000, second))
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if math.Abs(snaps[0].OIChangePct-20) > 1e-9 {
		t.Fatalf("oi change = %.2f, want 20", snaps[0].OIChangePct)
	}
	if math.Abs(snaps[0].AvgVolume-1000) > 1e-9 {
		t.Fatalf("avg volume = %.2f, want prior-frame 1000", snaps[0].AvgVolume)
	}
}

func TestDeriveFromChainNoCallOpenInterest(t *testing.T) {
	c := chainClient()
	rows := []models.ChainRow{
		{Symbol: "NIFTY", Strike: 24000, OptionType: models.PE, OpenInterest: 150000, Volume: 900},
	}
	if snaps := c.deriveFromChain(chainFrame(24000, rows)); snaps != nil {
		t.Fatalf("expected nil without call open interest, got %d snapshots", len(snaps))
	}
}
