package strategy

import (
	"math"
	"strings"

	"BtcTrader/internal/domain/models"
)

// Mode is the closed set of strategy profiles a bot can run.
type Mode string

const (
	ModeScalp Mode = "SCALP"
	ModeDay   Mode = "DAY"
	ModeSwing Mode = "SWING"
	ModeAuto  Mode = "AUTO"
)

// Parameters is an immutable indicator/threshold profile.
type Parameters struct {
	EmaFast         int     `json:"ema_fast"`
	EmaSlow         int     `json:"ema_slow"`
	RsiPeriod       int     `json:"rsi_period"`
	AtrPeriod       int     `json:"atr_period"`
	BbPeriod        int     `json:"bb_period"`
	BbStdDev        float64 `json:"bb_std_dev"`
	TrendThreshold  float64 `json:"trend_threshold"`
	VolatilityHigh  float64 `json:"volatility_high"`
	TrendRsiBuyMin  float64 `json:"trend_rsi_buy_min"`
	TrendRsiSellMax float64 `json:"trend_rsi_sell_max"`
	RangeRsiBuyMax  float64 `json:"range_rsi_buy_max"`
	RangeRsiSellMin float64 `json:"range_rsi_sell_min"`
}

// MinBars is the shortest candle history the profile can evaluate.
func (p Parameters) MinBars() int {
	return max(p.EmaSlow, p.BbPeriod, p.RsiPeriod, p.AtrPeriod) + 1
}

var dayProfile = Parameters{12, 26, 14, 14, 20, 2.0, 0.005, 0.06, 52, 48, 35, 65}

var profiles = map[Mode]Parameters{
	ModeScalp: {9, 21, 14, 14, 20, 2.0, 0.003, 0.07, 55, 45, 35, 65},
	ModeDay:   dayProfile,
	ModeSwing: {20, 50, 14, 14, 20, 2.0, 0.008, 0.05, 52, 48, 30, 70},
	ModeAuto:  dayProfile,
}

// ParseMode resolves a raw mode name; anything unknown runs as AUTO.
func ParseMode(s string) Mode {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := profiles[m]; ok {
		return m
	}
	return ModeAuto
}

// Label is the strategy label used on insufficient-data holds.
func (m Mode) Label() string {
	if m == ModeAuto {
		return "Auto"
	}
	return string(m)
}

// ProfileFor returns the base profile of a mode.
func ProfileFor(m Mode) Parameters {
	if p, ok := profiles[m]; ok {
		return p
	}
	return dayProfile
}

// RiskPreset maps to a fixed share of cash committed per new position.
type RiskPreset string

const (
	RiskConservative RiskPreset = "CONSERVATIVE"
	RiskStandard     RiskPreset = "STANDARD"
	RiskAggressive   RiskPreset = "AGGRESSIVE"
)

var riskTable = map[RiskPreset]float64{
	RiskConservative: 0.3,
	RiskStandard:     0.7,
	RiskAggressive:   1.2,
}

// ParseRiskPreset resolves a raw preset name; anything unknown is STANDARD.
func ParseRiskPreset(s string) RiskPreset {
	r := RiskPreset(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := riskTable[r]; ok {
		return r
	}
	return RiskStandard
}

// RiskPerTradePct returns the percentage of cash allocated to one entry.
func (r RiskPreset) RiskPerTradePct() float64 {
	if v, ok := riskTable[r]; ok {
		return v
	}
	return riskTable[RiskStandard]
}

// OperationMode shifts entry thresholds toward caution (STABLE) or activity (ATTACK).
type OperationMode string

const (
	OperationStable  OperationMode = "STABLE"
	OperationAttack  OperationMode = "ATTACK"
	OperationNeutral OperationMode = "NEUTRAL"
)

// ParseOperationMode treats empty as STABLE and unknown values as NEUTRAL.
func ParseOperationMode(s string) OperationMode {
	switch OperationMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", OperationStable:
		return OperationStable
	case OperationAttack:
		return OperationAttack
	default:
		return OperationNeutral
	}
}

// Tune applies the operation mode to a base profile.
func (o OperationMode) Tune(p Parameters) Parameters {
	switch o {
	case OperationStable:
		p.TrendThreshold = clamp(p.TrendThreshold*1.15, 0.001, 0.05)
		p.VolatilityHigh = clamp(p.VolatilityHigh*0.85, 0.01, 0.2)
		p.TrendRsiBuyMin = clamp(p.TrendRsiBuyMin+2, 10, 90)
		p.TrendRsiSellMax = clamp(p.TrendRsiSellMax-2, 10, 90)
		p.RangeRsiBuyMax = clamp(p.RangeRsiBuyMax-2, 5, 70)
		p.RangeRsiSellMin = clamp(p.RangeRsiSellMin+2, 50, 95)
	case OperationAttack:
		p.TrendThreshold = clamp(p.TrendThreshold*0.85, 0.001, 0.05)
		p.VolatilityHigh = clamp(p.VolatilityHigh*1.2, 0.01, 0.2)
		p.TrendRsiBuyMin = clamp(p.TrendRsiBuyMin-2, 10, 90)
		p.TrendRsiSellMax = clamp(p.TrendRsiSellMax+2, 10, 90)
		p.RangeRsiBuyMax = clamp(p.RangeRsiBuyMax+2, 5, 70)
		p.RangeRsiSellMin = clamp(p.RangeRsiSellMin-2, 50, 95)
	}
	return p
}

// ResolveParameters builds the effective profile of a bot: base profile for its
// mode, tuned by operation mode, then per-field overrides that fall inside bounds.
func ResolveParameters(cfg models.BotConfig) Parameters {
	tuned := ParseOperationMode(cfg.OperationMode).Tune(ProfileFor(ParseMode(cfg.StrategyMode)))
	o := cfg.Overrides
	p := tuned

	p.EmaFast = pickInt(o.EmaFast, tuned.EmaFast, 2, 200)
	p.EmaSlow = pickInt(o.EmaSlow, tuned.EmaSlow, 5, 400)
	if p.EmaSlow <= p.EmaFast {
		p.EmaSlow = max(p.EmaFast+1, tuned.EmaSlow)
	}
	p.RsiPeriod = pickInt(o.RsiPeriod, tuned.RsiPeriod, 5, 60)
	p.AtrPeriod = pickInt(o.AtrPeriod, tuned.AtrPeriod, 5, 60)
	p.BbPeriod = pickInt(o.BbPeriod, tuned.BbPeriod, 10, 60)
	p.BbStdDev = pickFloat(o.BbStdDev, tuned.BbStdDev, 0.5, 5.0)
	p.TrendThreshold = pickFloat(o.TrendThreshold, tuned.TrendThreshold, 0.001, 0.05)
	p.VolatilityHigh = pickFloat(o.VolatilityHigh, tuned.VolatilityHigh, 0.01, 0.2)

	p.TrendRsiBuyMin = float64(pickInt(o.TrendRsiBuyMin, int(tuned.TrendRsiBuyMin), 10, 90))
	p.TrendRsiSellMax = float64(pickInt(o.TrendRsiSellMax, int(tuned.TrendRsiSellMax), 10, 90))
	if p.TrendRsiBuyMin <= p.TrendRsiSellMax {
		p.TrendRsiBuyMin, p.TrendRsiSellMax = tuned.TrendRsiBuyMin, tuned.TrendRsiSellMax
	}
	p.RangeRsiBuyMax = float64(pickInt(o.RangeRsiBuyMax, int(tuned.RangeRsiBuyMax), 5, 70))
	p.RangeRsiSellMin = float64(pickInt(o.RangeRsiSellMin, int(tuned.RangeRsiSellMin), 50, 95))
	if p.RangeRsiBuyMax >= p.RangeRsiSellMin {
		p.RangeRsiBuyMax, p.RangeRsiSellMin = tuned.RangeRsiBuyMax, tuned.RangeRsiSellMin
	}
	return p
}

func pickInt(v *int, fallback, lo, hi int) int {
	if v == nil || *v < lo || *v > hi {
		return fallback
	}
	return *v
}

func pickFloat(v *float64, fallback, lo, hi float64) float64 {
	if v == nil || math.IsNaN(*v) || *v < lo || *v > hi {
		return fallback
	}
	return *v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
