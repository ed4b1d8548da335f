// Package strategy classifies the market regime of a candle series and turns it
// into a trade decision under a mode profile.
package strategy

import (
	"math"

	"BtcTrader/internal/domain/models"
	"BtcTrader/internal/services/indicators"
)

const (
	labelCooldown      = "Cooldown"
	labelTrendFollow   = "TrendFollow"
	labelMeanReversion = "MeanReversion"

	ReasonInsufficientData = "insufficient data"
	ReasonNoIndicators     = "indicators unavailable"
	ReasonHighVolatility   = "volatility high"
	ReasonTrendWeak        = "trend not strong enough"
	ReasonNoMeanReversion  = "no mean reversion signal"
	ReasonTrendBuy         = "uptrend with momentum"
	ReasonTrendSell        = "downtrend with weak momentum"
	ReasonRangeBuy         = "price below lower band with oversold rsi"
	ReasonRangeSell        = "price above upper band with overbought rsi"
)

// Engine is stateless; one value can serve any number of goroutines.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Evaluate resolves the bot's effective parameters and evaluates the candles.
func (e *Engine) Evaluate(cfg models.BotConfig, candles []models.Candle) models.StrategyDecision {
	return e.EvaluateWith(
		ParseMode(cfg.StrategyMode),
		ParseRiskPreset(cfg.RiskPreset),
		cfg.MaxPositions,
		ResolveParameters(cfg),
		candles,
	)
}

// EvaluateWith runs the regime state machine over candles (most recent last).
func (e *Engine) EvaluateWith(mode Mode, risk RiskPreset, maxPositions int, p Parameters, candles []models.Candle) models.StrategyDecision {
	if len(candles) < p.MinBars() {
		return hold(ReasonInsufficientData, mode, risk, maxPositions)
	}

	closes := indicators.Closes(candles)
	lastClose := closes[len(closes)-1]

	emaFast, ok1 := indicators.EMA(closes, p.EmaFast)
	emaSlow, ok2 := indicators.EMA(closes, p.EmaSlow)
	rsi, ok3 := indicators.RSI(closes, p.RsiPeriod)
	atr, ok4 := indicators.ATR(candles, p.AtrPeriod)
	bands, ok5 := indicators.Bollinger(closes, p.BbPeriod, p.BbStdDev)
	if !(ok1 && ok2 && ok3 && ok4 && ok5) || lastClose <= 0 {
		return hold(ReasonNoIndicators, mode, risk, maxPositions)
	}

	trendStrength := (emaFast - emaSlow) / lastClose
	volatility := atr / lastClose
	regime := classify(trendStrength, volatility, p)

	d := models.StrategyDecision{
		Action:           models.ActionHold,
		Regime:           regime,
		RiskPerTradePct:  risk.RiskPerTradePct(),
		MaxPositions:     maxPositions,
		VolatilityPct:    volatility * 100,
		TrendStrengthPct: trendStrength * 100,
	}

	switch regime {
	case models.RegimeHighVolatility:
		d.Strategy = labelCooldown
		d.Reasons = []string{ReasonHighVolatility}
	case models.RegimeTrendUp, models.RegimeTrendDown:
		d.Strategy = labelTrendFollow
		switch {
		case trendStrength > p.TrendThreshold && rsi >= p.TrendRsiBuyMin:
			d.Action = models.ActionBuy
			d.Confidence = trendConfidence(trendStrength, p.TrendThreshold, (rsi-50)/50)
			d.Reasons = []string{ReasonTrendBuy}
		case trendStrength < -p.TrendThreshold && rsi <= p.TrendRsiSellMax:
			d.Action = models.ActionSell
			d.Confidence = trendConfidence(trendStrength, p.TrendThreshold, (50-rsi)/50)
			d.Reasons = []string{ReasonTrendSell}
		default:
			d.Reasons = []string{ReasonTrendWeak}
		}
	default:
		d.Strategy = labelMeanReversion
		switch {
		case lastClose < bands.Lower && rsi <= p.RangeRsiBuyMax:
			d.Action = models.ActionBuy
			d.Confidence = rangeConfidence(lastClose, bands.Lower, (50-rsi)/50)
			d.Reasons = []string{ReasonRangeBuy}
		case lastClose > bands.Upper && rsi >= p.RangeRsiSellMin:
			d.Action = models.ActionSell
			d.Confidence = rangeConfidence(lastClose, bands.Upper, (rsi-50)/50)
			d.Reasons = []string{ReasonRangeSell}
		default:
			d.Reasons = []string{ReasonNoMeanReversion}
		}
	}
	return d
}

// classify checks high volatility first, then trend strength, and falls back to range.
func classify(trendStrength, volatility float64, p Parameters) models.Regime {
	switch {
	case volatility >= p.VolatilityHigh:
		return models.RegimeHighVolatility
	case math.Abs(trendStrength) >= p.TrendThreshold:
		if trendStrength > 0 {
			return models.RegimeTrendUp
		}
		return models.RegimeTrendDown
	default:
		return models.RegimeRange
	}
}

func trendConfidence(trendStrength, threshold, rsiScore float64) float64 {
	trendScore := math.Min(1, math.Abs(trendStrength)/(2*threshold))
	return clamp(0.6*trendScore+0.4*clamp(rsiScore, 0, 1), 0, 1)
}

func rangeConfidence(price, band, rsiScore float64) float64 {
	if band == 0 {
		return clamp(0.5*clamp(rsiScore, 0, 1), 0, 1)
	}
	distance := math.Abs(price-band) / band
	return clamp(0.5*math.Min(1, distance/0.02)+0.5*clamp(rsiScore, 0, 1), 0, 1)
}

func hold(reason string, mode Mode, risk RiskPreset, maxPositions int) models.StrategyDecision {
	return models.StrategyDecision{
		Action:          models.ActionHold,
		Strategy:        mode.Label(),
		Regime:          models.RegimeUnknown,
		RiskPerTradePct: risk.RiskPerTradePct(),
		MaxPositions:    maxPositions,
		Reasons:         []string{reason},
	}
}
