// Package indicators holds pure technical indicator functions over price and
// candle sequences. Every function reports ok=false instead of a value when the
// input is too short, so callers must handle the abstain case explicitly.
package indicators

import (
	"math"

	"BtcTrader/internal/domain/models"
)

// Bands is a Bollinger band triple with the population standard deviation it was built from.
type Bands struct {
	Middle float64
	Upper  float64
	Lower  float64
	StdDev float64
}

// EMA seeds with the simple average of the first period values and then
// applies the 2/(period+1) multiplier to the rest.
func EMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[:period] {
		sum += v
	}
	ema := sum / float64(period)
	k := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = (v-ema)*k + ema
	}
	return ema, true
}

// RSI uses Wilder smoothing seeded by the average gain/loss of the first period deltas.
func RSI(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period+1 {
		return 0, false
	}
	gain, loss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d >= 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	p := float64(period)
	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		up, down := 0.0, 0.0
		if d >= 0 {
			up = d
		} else {
			down = -d
		}
		avgGain = (avgGain*(p-1) + up) / p
		avgLoss = (avgLoss*(p-1) + down) / p
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// ATR averages the first period true ranges and Wilder-smooths the rest.
func ATR(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trs = append(trs, trueRange(candles[i], candles[i-1].Close))
	}
	sum := 0.0
	for _, tr := range trs[:period] {
		sum += tr
	}
	atr := sum / float64(period)
	p := float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*(p-1) + tr) / p
	}
	return atr, true
}

// Bollinger builds bands from the mean and population deviation of the last period values.
func Bollinger(values []float64, period int, k float64) (Bands, bool) {
	if period <= 0 || len(values) < period {
		return Bands{}, false
	}
	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)
	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return Bands{
		Middle: mean,
		Upper:  mean + k*sd,
		Lower:  mean - k*sd,
		StdDev: sd,
	}, true
}

// Closes extracts close prices in order.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func trueRange(c models.Candle, prevClose float64) float64 {
	hl := c.High - c.Low
	hc := math.Abs(c.High - prevClose)
	lc := math.Abs(c.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}
