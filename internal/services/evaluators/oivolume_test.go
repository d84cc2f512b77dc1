package evaluators

import (
	"math"
	"testing"

	"OptionPulse/internal/domain/models"
	"OptionPulse/pkg/config"
)

func TestOIVolumeSpikeVotesBias(t *testing.T) {
	cfg := config.DefaultEngine()
	ev := NewOIVolumeEvaluator(&cfg)

	s := validSnapshot()
	s.OIChangePct = 20
	s.Volume = 2000
	s.AvgVolume = 900
	v := ev.Evaluate(s)
	if v.Direction != models.BuyCE {
		t.Fatalf("expected BUY_CE on rising CE OI, got %s", v.Direction)
	}
	want := math.Min(1, 20.0/30.0)
	if math.Abs(v.Strength-want) > 1e-9 {
		t.Fatalf("expected strength %v, got %v", want, v.Strength)
	}
}

func TestOIVolumeFallingOIInvertsBias(t *testing.T) {
	cfg := config.DefaultEngine()
	ev := NewOIVolumeEvaluator(&cfg)

	s := validSnapshot()
	s.OIChangePct = -25
	s.Volume = 2000
	s.AvgVolume = 900
	v := ev.Evaluate(s)
	if v.Direction != models.BuyPE {
		t.Fatalf("expected BUY_PE on falling CE OI, got %s", v.Direction)
	}
}

func TestOIVolumeConfigurableBias(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.OIAnalysis.DirectionBias = map[string]string{"CE": "BUY_PE", "PE": "BUY_CE"}
	ev := NewOIVolumeEvaluator(&cfg)

	s := validSnapshot()
	s.OIChangePct = 20
	s.Volume = 2000
	s.AvgVolume = 900
	v := ev.Evaluate(s)
	if v.Direction != models.BuyPE {
		t.Fatalf("expected inverted bias BUY_PE, got %s", v.Direction)
	}
}

func TestOIVolumeBelowLiquidityFloorForcedNeutral(t *testing.T) {
	cfg := config.DefaultEngine()
	ev := NewOIVolumeEvaluator(&cfg)

	s := validSnapshot()
	s.OI = 500
	s.OIChangePct = 40
	s.Volume = 5000
	s.AvgVolume = 900
	v := ev.Evaluate(s)
	if v.Direction != models.Neutral || v.Strength != 0 {
		t.Fatalf("expected forced neutral below min OI, got %s/%v", v.Direction, v.Strength)
	}
}

func TestOIVolumeInsignificantChangeNeutral(t *testing.T) {
	cfg := config.DefaultEngine()
	ev := NewOIVolumeEvaluator(&cfg)

	s := validSnapshot()
	s.OIChangePct = 5
	s.Volume = 5000
	s.AvgVolume = 900
	v := ev.Evaluate(s)
	if v.Direction != models.Neutral {
		t.Fatalf("expected neutral below significance, got %s", v.Direction)
	}
}

func TestOIVolumeNoSpikeNeutral(t *testing.T) {
	cfg := config.DefaultEngine()
	ev := NewOIVolumeEvaluator(&cfg)

	s := validSnapshot()
	s.OIChangePct = 20
	s.Volume = 1000
	s.AvgVolume = 900
	v := ev.Evaluate(s)
	if v.Direction != models.Neutral {
		t.Fatalf("expected neutral without volume spike, got %s", v.Direction)
	}
}

func TestOIVolumeStrengthCapped(t *testing.T) {
	cfg := config.DefaultEngine()
	ev := NewOIVolumeEvaluator(&cfg)

	s := validSnapshot()
	s.OIChangePct = 90
	s.Volume = 9000
	s.AvgVolume = 900
	v := ev.Evaluate(s)
	if v.Strength != 1 {
		t.Fatalf("expected capped strength 1, got %v", v.Strength)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	cfg := config.DefaultEngine()
	r := NewRegistry()
	if err := r.Register(NewPCREvaluator(&cfg), 1); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := r.Register(NewPCREvaluator(&cfg), 1); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestDefaultRegistryOrder(t *testing.T) {
	cfg := config.DefaultEngine()
	r, err := NewDefaultRegistry(&cfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	names := r.Names()
	if len(names) != 3 {
		t.Fatalf("expected 3 evaluators, got %d", len(names))
	}
	if names[0] != config.EvaluatorPCR || names[1] != config.EvaluatorRSI || names[2] != config.EvaluatorOIVolume {
		t.Fatalf("unexpected order %v", names)
	}
}
