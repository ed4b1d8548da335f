package paper

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"BtcTrader/internal/domain/models"
)

type fakeStore struct {
	mu   sync.Mutex
	rows map[string]models.PerformanceSnapshot
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]models.PerformanceSnapshot)}
}

func (f *fakeStore) Upsert(_ context.Context, s models.PerformanceSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.UserID+"|"+string(s.PeriodType)+"|"+s.PeriodDate.Format(time.DateOnly)] = s
	return nil
}

func (f *fakeStore) List(_ context.Context, userID string, period models.PeriodType, limit int) ([]models.PerformanceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PerformanceSnapshot
	for _, s := range f.rows {
		if s.UserID == userID && s.PeriodType == period {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodDate.Before(out[j].PeriodDate) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStore) count(period models.PeriodType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.rows {
		if s.PeriodType == period {
			n++
		}
	}
	return n
}

func TestRecordEquityIsIdempotentPerDay(t *testing.T) {
	c := &clock{t: time.Date(2024, 10, 16, 9, 0, 0, 0, time.UTC)}
	store := newFakeStore()
	perf := NewPerformanceLedger(store, time.UTC, c.now)
	l := NewLedger(1_000_000, WithClock(c.now), WithPerformance(perf))
	ctx := context.Background()

	if err := l.RecordEquity(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	l.ApplySignal(testConfig(), "KRW-BTC", 100, buy(100, 3))
	l.UpdateLastPrice("u1", "KRW-BTC", 110)
	c.t = c.t.Add(2 * time.Hour)
	if err := l.RecordEquity(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	if n := store.count(models.PeriodDaily); n != 1 {
		t.Fatalf("daily rows = %d, want 1", n)
	}
	if n := store.count(models.PeriodWeekly); n != 1 {
		t.Fatalf("weekly rows = %d, want 1", n)
	}
	got, _ := store.List(ctx, "u1", models.PeriodDaily, 7)
	if !approx(got[0].Equity, 1_100_000) {
		t.Fatalf("daily equity = %v, want overwritten 1100000", got[0].Equity)
	}
	if !got[0].PeriodDate.Equal(time.Date(2024, 10, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period date %v", got[0].PeriodDate)
	}
}

func TestBuildPerformance(t *testing.T) {
	c := &clock{t: time.Date(2024, 10, 14, 12, 0, 0, 0, time.UTC)} // Monday
	store := newFakeStore()
	perf := NewPerformanceLedger(store, time.UTC, c.now)
	ctx := context.Background()

	for _, eq := range []float64{100, 120, 90, 110} {
		if err := perf.Record(ctx, "u1", eq); err != nil {
			t.Fatal(err)
		}
		c.t = c.t.AddDate(0, 0, 1)
	}

	got, err := perf.Build(ctx, "u1", 7, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(got.TotalReturnPct, 10) {
		t.Errorf("total return = %v, want 10", got.TotalReturnPct)
	}
	if !approx(got.MaxDrawdownPct, 25) {
		t.Errorf("max drawdown = %v, want 25", got.MaxDrawdownPct)
	}
	if len(got.Daily) != 4 {
		t.Fatalf("daily points = %d, want 4", len(got.Daily))
	}
	if got.Daily[0].Label != "10-14" || got.Daily[3].Label != "10-17" {
		t.Errorf("unexpected labels %q..%q", got.Daily[0].Label, got.Daily[3].Label)
	}
	if got.Daily[0].ReturnPct != 0 || !approx(got.Daily[1].ReturnPct, 20) || !approx(got.Daily[2].ReturnPct, -25) {
		t.Errorf("unexpected point returns %+v", got.Daily)
	}
	if len(got.Weekly) != 1 || got.Weekly[0].Label != "10-14" || got.Weekly[0].Equity != 110 {
		t.Errorf("unexpected weekly %+v", got.Weekly)
	}

	limited, _ := perf.Build(ctx, "u1", 2, 4)
	if len(limited.Daily) != 2 || limited.Daily[0].Equity != 90 {
		t.Errorf("expected last two days, got %+v", limited.Daily)
	}
}

func TestBuildNonPositiveLimitIsEmpty(t *testing.T) {
	c := &clock{t: time.Date(2024, 10, 14, 12, 0, 0, 0, time.UTC)}
	store := newFakeStore()
	perf := NewPerformanceLedger(store, time.UTC, c.now)
	l := NewLedger(1_000_000, WithClock(c.now), WithPerformance(perf))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.RecordEquity(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
		c.t = c.t.AddDate(0, 0, 1)
	}

	for _, tc := range []struct{ days, weeks int }{{0, 0}, {-1, -3}} {
		got, err := l.Performance(ctx, "u1", tc.days, tc.weeks)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Daily) != 0 || len(got.Weekly) != 0 {
			t.Errorf("days=%d weeks=%d: expected empty series, got %+v", tc.days, tc.weeks, got)
		}
		if got.TotalReturnPct != 0 || got.MaxDrawdownPct != 0 {
			t.Errorf("days=%d weeks=%d: unexpected stats %+v", tc.days, tc.weeks, got)
		}
	}

	got, _ := l.Performance(ctx, "u1", 0, 4)
	if len(got.Daily) != 0 || len(got.Weekly) != 1 {
		t.Errorf("periods are limited independently, got %+v", got)
	}
}

func TestReturnAndDrawdownEdgeCases(t *testing.T) {
	one := []models.PerformanceSnapshot{{Equity: 100}}
	if TotalReturnPct(one) != 0 || TotalReturnPct(nil) != 0 {
		t.Errorf("fewer than two points should give 0")
	}
	zeroStart := []models.PerformanceSnapshot{{Equity: 0}, {Equity: 100}}
	if TotalReturnPct(zeroStart) != 0 {
		t.Errorf("non-positive start should give 0")
	}
	rising := []models.PerformanceSnapshot{{Equity: 100}, {Equity: 110}, {Equity: 120}}
	if MaxDrawdownPct(rising) != 0 {
		t.Errorf("monotonic series has no drawdown")
	}
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster(1)
	ch, cancel := b.Subscribe("u1")
	other, cancelOther := b.Subscribe("u2")
	defer cancelOther()

	if n := b.Publish(models.PaperSummary{UserID: "u1", Equity: 1}); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	// buffer full, second publish is dropped
	if n := b.Publish(models.PaperSummary{UserID: "u1", Equity: 2}); n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
	if s := <-ch; s.Equity != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	select {
	case s := <-other:
		t.Fatalf("u2 should not receive %+v", s)
	default:
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	if b.Subscribers("u1") != 0 || b.Subscribers("u2") != 1 {
		t.Fatalf("unexpected subscriber counts")
	}
}
