// Package selector ranks market snapshots for automatic market selection.
package selector

import (
	"math"
	"sort"

	"BtcTrader/internal/domain/models"
)

const (
	weightVolume     = 0.4
	weightSpread     = 0.2
	weightTrend      = 0.25
	weightVolatility = 0.15

	targetVolatilityPct = 3.0
)

// AutoSelector scores snapshots by volume, spread, trend and volatility.
type AutoSelector struct{}

func New() *AutoSelector { return &AutoSelector{} }

// TopN returns at most topN snapshots sorted by score descending. Ties keep input order.
func (s *AutoSelector) TopN(snapshots []models.MarketSnapshot, topN int) []models.CoinScore {
	if len(snapshots) == 0 || topN <= 0 {
		return []models.CoinScore{}
	}

	volume := newRange()
	spread := newRange()
	trend := newRange()
	for _, snap := range snapshots {
		volume.add(snap.Volume24h)
		spread.add(snap.SpreadPct)
		trend.add(math.Abs(snap.TrendStrengthPct))
	}

	scored := make([]models.CoinScore, 0, len(snapshots))
	for _, snap := range snapshots {
		score := weightVolume*volume.normalize(snap.Volume24h) +
			weightSpread*(1-spread.normalize(snap.SpreadPct)) +
			weightTrend*trend.normalize(math.Abs(snap.TrendStrengthPct)) +
			weightVolatility*volatilityScore(snap.VolatilityPct)
		scored = append(scored, models.CoinScore{Snapshot: snap, Score: round3(score)})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topN {
		scored = scored[:topN]
	}
	return scored
}

// volatilityScore peaks at the target volatility and falls to 0 at twice of it.
func volatilityScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp01(1 - math.Abs(v-targetVolatilityPct)/targetVolatilityPct)
}

type valueRange struct {
	min, max float64
	invalid  bool
}

func newRange() *valueRange {
	return &valueRange{min: math.Inf(1), max: math.Inf(-1)}
}

func (r *valueRange) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r.invalid = true
		return
	}
	r.min = math.Min(r.min, v)
	r.max = math.Max(r.max, v)
}

func (r *valueRange) normalize(v float64) float64 {
	if r.invalid || math.IsNaN(v) || r.max == r.min {
		return 0.5
	}
	return clamp01((v - r.min) / (r.max - r.min))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
