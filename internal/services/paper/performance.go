package paper

import (
	"context"
	"fmt"
	"time"

	"BtcTrader/internal/domain/models"
	"BtcTrader/internal/domain/repository"
	"BtcTrader/pkg/util"
)

// PerformanceLedger buckets equity into daily and weekly snapshots and derives
// the return and drawdown view from them.
type PerformanceLedger struct {
	store repository.PerformanceStore
	loc   *time.Location
	now   func() time.Time
}

func NewPerformanceLedger(store repository.PerformanceStore, loc *time.Location, now func() time.Time) *PerformanceLedger {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &PerformanceLedger{store: store, loc: loc, now: now}
}

// Record upserts equity into the current day and current week buckets.
func (p *PerformanceLedger) Record(ctx context.Context, userID string, equity float64) error {
	now := p.now()
	day := models.PerformanceSnapshot{
		UserID:     userID,
		PeriodType: models.PeriodDaily,
		PeriodDate: util.DayStart(now, p.loc),
		Equity:     equity,
		UpdatedAt:  now,
	}
	if err := p.store.Upsert(ctx, day); err != nil {
		return fmt.Errorf("upsert daily snapshot: %w", err)
	}
	week := day
	week.PeriodType = models.PeriodWeekly
	week.PeriodDate = util.WeekStart(now, p.loc)
	if err := p.store.Upsert(ctx, week); err != nil {
		return fmt.Errorf("upsert weekly snapshot: %w", err)
	}
	return nil
}

// Build returns the last days daily points and the last weeks weekly points.
// Total return and max drawdown come from the daily series.
// A non-positive days or weeks yields an empty series for that period.
func (p *PerformanceLedger) Build(ctx context.Context, userID string, days, weeks int) (models.PaperPerformance, error) {
	daily, err := p.list(ctx, userID, models.PeriodDaily, days)
	if err != nil {
		return models.PaperPerformance{}, fmt.Errorf("list daily snapshots: %w", err)
	}
	weekly, err := p.list(ctx, userID, models.PeriodWeekly, weeks)
	if err != nil {
		return models.PaperPerformance{}, fmt.Errorf("list weekly snapshots: %w", err)
	}
	return models.PaperPerformance{
		TotalReturnPct: TotalReturnPct(daily),
		MaxDrawdownPct: MaxDrawdownPct(daily),
		Daily:          p.points(daily),
		Weekly:         p.points(weekly),
	}, nil
}

func (p *PerformanceLedger) list(ctx context.Context, userID string, period models.PeriodType, limit int) ([]models.PerformanceSnapshot, error) {
	if limit <= 0 {
		return nil, nil
	}
	return p.store.List(ctx, userID, period, limit)
}

func (p *PerformanceLedger) points(snaps []models.PerformanceSnapshot) []models.PerformancePoint {
	out := make([]models.PerformancePoint, 0, len(snaps))
	for i, s := range snaps {
		ret := 0.0
		if i > 0 {
			ret = pctChange(snaps[i-1].Equity, s.Equity)
		}
		out = append(out, models.PerformancePoint{
			Label:     util.DayLabel(s.PeriodDate.In(p.loc)),
			Equity:    s.Equity,
			ReturnPct: ret,
		})
	}
	return out
}

// TotalReturnPct is (last-first)/first*100; 0 with fewer than two points or a non-positive start.
func TotalReturnPct(snaps []models.PerformanceSnapshot) float64 {
	if len(snaps) < 2 {
		return 0
	}
	return pctChange(snaps[0].Equity, snaps[len(snaps)-1].Equity)
}

// MaxDrawdownPct is the largest peak-to-trough decline walking the series forward.
func MaxDrawdownPct(snaps []models.PerformanceSnapshot) float64 {
	peak, maxDD := 0.0, 0.0
	for _, s := range snaps {
		if s.Equity > peak {
			peak = s.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - s.Equity) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func pctChange(from, to float64) float64 {
	if from <= 0 {
		return 0
	}
	return (to - from) / from * 100
}
