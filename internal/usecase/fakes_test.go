package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"BtcTrader/internal/domain/models"
	domrepo "BtcTrader/internal/domain/repository"
)

type fakeMetrics struct {
	mu        sync.Mutex
	errors    map[string]int
	decisions int
	fills     map[string]int
	rejected  map[string]int
	equity    map[string]float64
	ticks     int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		errors:   map[string]int{},
		fills:    map[string]int{},
		rejected: map[string]int{},
		equity:   map[string]float64{},
	}
}

func (m *fakeMetrics) RecordTick(float64) {
	m.mu.Lock()
	m.ticks++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordDecision(string, string) {
	m.mu.Lock()
	m.decisions++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordFill(side string) {
	m.mu.Lock()
	m.fills[side]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordRejected(reason string) {
	m.mu.Lock()
	m.rejected[reason]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordEquity(userID string, equity float64) {
	m.mu.Lock()
	m.equity[userID] = equity
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *fakeMetrics) RecordThrottleWait(float64)      {}
func (m *fakeMetrics) RecordLastPrice(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)   {}

var _ domrepo.Metrics = (*fakeMetrics)(nil)

type fakeExchange struct {
	mu           sync.Mutex
	markets      []models.MarketInfo
	tickers      map[string]models.Ticker
	marketCalls  int
	tickerCalls  int
	tickerFailed bool
}

func (f *fakeExchange) GetMarkets(context.Context) ([]models.MarketInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketCalls++
	return f.markets, nil
}

func (f *fakeExchange) GetTickers(_ context.Context, markets []string) ([]models.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickerCalls++
	if f.tickerFailed {
		return nil, errors.New("exchange down")
	}
	out := make([]models.Ticker, 0, len(markets))
	for _, m := range markets {
		if t, ok := f.tickers[m]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeExchange) GetMinuteCandles(context.Context, string, domrepo.CandleUnit, int) ([]models.Candle, error) {
	return nil, errors.New("not used")
}

type fakeCandles struct {
	byMarket map[string][]models.Candle
	fail     map[string]bool
}

func (f *fakeCandles) LatestCandles(_ context.Context, market string, n int) ([]models.Candle, error) {
	if f.fail[market] {
		return nil, errors.New("candles unavailable")
	}
	c := f.byMarket[market]
	if len(c) > n {
		c = c[len(c)-n:]
	}
	return c, nil
}

// risingCandles returns n one-minute candles whose close grows by step.
func risingCandles(n int, start, step float64) []models.Candle {
	base := time.Date(2024, 10, 16, 9, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		c := start + float64(i)*step
		out[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      c - step/2,
			High:      c + step,
			Low:       c - step,
			Close:     c,
			Volume:    1,
		}
	}
	return out
}
