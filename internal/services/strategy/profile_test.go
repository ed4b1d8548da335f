package strategy

import (
	"math"
	"testing"

	"BtcTrader/internal/domain/models"
)

func TestAutoAndDayShareProfile(t *testing.T) {
	if ProfileFor(ModeAuto) != ProfileFor(ModeDay) {
		t.Fatalf("AUTO and DAY profiles differ")
	}
	if ProfileFor(ModeScalp).EmaFast != 9 || ProfileFor(ModeSwing).EmaSlow != 50 {
		t.Fatalf("unexpected profile table")
	}
	if got := ProfileFor(ModeDay).MinBars(); got != 27 {
		t.Fatalf("min bars = %d, want 27", got)
	}
}

func TestParseFallbacks(t *testing.T) {
	if ParseMode("scalp") != ModeScalp || ParseMode("nope") != ModeAuto || ParseMode("") != ModeAuto {
		t.Fatalf("unexpected mode parsing")
	}
	if ParseRiskPreset("weird") != RiskStandard || ParseRiskPreset("conservative") != RiskConservative {
		t.Fatalf("unexpected risk parsing")
	}
	if ParseOperationMode("") != OperationStable || ParseOperationMode("attack") != OperationAttack || ParseOperationMode("x") != OperationNeutral {
		t.Fatalf("unexpected operation mode parsing")
	}
}

func TestStableTuning(t *testing.T) {
	cfg := models.DefaultBotConfig("u1")
	cfg.StrategyMode = "DAY"
	cfg.OperationMode = ""
	p := ResolveParameters(cfg)
	if math.Abs(p.TrendThreshold-0.00575) > 1e-12 || math.Abs(p.VolatilityHigh-0.051) > 1e-12 {
		t.Fatalf("unexpected stable thresholds %+v", p)
	}
	if p.TrendRsiBuyMin != 54 || p.TrendRsiSellMax != 46 || p.RangeRsiBuyMax != 33 || p.RangeRsiSellMin != 67 {
		t.Fatalf("unexpected stable rsi gates %+v", p)
	}

	cfg.OperationMode = "NEUTRAL"
	if ResolveParameters(cfg) != ProfileFor(ModeDay) {
		t.Fatalf("neutral mode should keep the base profile")
	}
}

func TestOverrides(t *testing.T) {
	intp := func(v int) *int { return &v }
	floatp := func(v float64) *float64 { return &v }

	cfg := models.DefaultBotConfig("u1")
	cfg.OperationMode = "NEUTRAL"
	cfg.Overrides = models.StrategyOverrides{
		EmaFast:        intp(30),
		EmaSlow:        intp(20),   // not above ema fast
		RsiPeriod:      intp(200),  // out of range
		BbStdDev:       floatp(2.5),
		TrendRsiBuyMin: intp(40),   // not above sell max
		RangeRsiBuyMax: intp(25),
	}
	p := ResolveParameters(cfg)
	if p.EmaFast != 30 || p.EmaSlow != 31 {
		t.Fatalf("ema = %d/%d, want 30/31", p.EmaFast, p.EmaSlow)
	}
	if p.RsiPeriod != 14 || p.BbStdDev != 2.5 {
		t.Fatalf("unexpected overrides %+v", p)
	}
	if p.TrendRsiBuyMin != 52 || p.TrendRsiSellMax != 48 {
		t.Fatalf("inconsistent trend gates should revert, got %+v", p)
	}
	if p.RangeRsiBuyMax != 25 || p.RangeRsiSellMin != 65 {
		t.Fatalf("unexpected range gates %+v", p)
	}
}
