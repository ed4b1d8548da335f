package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"BtcTrader/internal/domain/models"
	"BtcTrader/internal/service/cache"
)

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	prices map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}, prices: map[string]float64{}}
}

func (m *fakeMetrics) RecordTick(float64)            {}
func (m *fakeMetrics) RecordDecision(string, string) {}
func (m *fakeMetrics) RecordFill(string)             {}
func (m *fakeMetrics) RecordRejected(string)         {}
func (m *fakeMetrics) RecordEquity(string, float64)  {}
func (m *fakeMetrics) RecordThrottleWait(float64)    {}
func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLastPrice(market string, price float64) {
	m.mu.Lock()
	m.prices[market] = price
	m.mu.Unlock()
}

type fakeArchive struct {
	mu      sync.Mutex
	batches [][]models.Ticker
}

func (a *fakeArchive) StoreBatch(_ context.Context, ts []models.Ticker) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := make([]models.Ticker, len(ts))
	copy(cp, ts)
	a.batches = append(a.batches, cp)
	return nil
}

func (a *fakeArchive) rows() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, b := range a.batches {
		n += len(b)
	}
	return n
}

func ticker(market string, price float64) *models.Ticker {
	return &models.Ticker{Market: market, TradePrice: price, Timestamp: time.Now()}
}

func TestProcessWritesCacheAndMetrics(t *testing.T) {
	c := cache.NewTickerCache()
	m := newFakeMetrics()
	p := NewTickerPipeline(c, m, WithMaxUpdatesPerSecond(0))

	ok, err := p.Process(context.Background(), ticker("KRW-BTC", 50000))
	if err != nil || !ok {
		t.Fatalf("process: ok=%v err=%v", ok, err)
	}
	got, found := c.Get("KRW-BTC")
	if !found || got.TradePrice != 50000 {
		t.Fatalf("cache not updated: %+v", got)
	}
	if m.prices["KRW-BTC"] != 50000 {
		t.Fatalf("last price metric not recorded")
	}
}

func TestProcessRejectsInvalid(t *testing.T) {
	m := newFakeMetrics()
	p := NewTickerPipeline(cache.NewTickerCache(), m)
	cases := []*models.Ticker{
		nil,
		{TradePrice: 1, Timestamp: time.Now()},
		{Market: "KRW-BTC", TradePrice: 0, Timestamp: time.Now()},
		{Market: "KRW-BTC", TradePrice: 1},
		{Market: "KRW-BTC", TradePrice: 1, Timestamp: time.Now(), AccTradeVolume24h: -1},
	}
	for i, tc := range cases {
		if _, err := p.Process(context.Background(), tc); !errors.Is(err, ErrInvalidTicker) {
			t.Errorf("case %d: expected ErrInvalidTicker, got %v", i, err)
		}
	}
	if m.errors["pipeline_validate"] != len(cases) {
		t.Fatalf("validate errors = %d", m.errors["pipeline_validate"])
	}
}

func TestProcessThrottlesPerMarket(t *testing.T) {
	c := cache.NewTickerCache()
	p := NewTickerPipeline(c, newFakeMetrics(), WithMaxUpdatesPerSecond(1))

	if ok, _ := p.Process(context.Background(), ticker("KRW-BTC", 1)); !ok {
		t.Fatalf("first update should pass")
	}
	if ok, err := p.Process(context.Background(), ticker("KRW-BTC", 2)); ok || err != nil {
		t.Fatalf("second update should be dropped silently, ok=%v err=%v", ok, err)
	}
	if ok, _ := p.Process(context.Background(), ticker("KRW-ETH", 3)); !ok {
		t.Fatalf("other market should pass")
	}
	if got, _ := c.Get("KRW-BTC"); got.TradePrice != 1 {
		t.Fatalf("throttled update reached cache")
	}
}

func TestArchiveFlushesOnStop(t *testing.T) {
	a := &fakeArchive{}
	p := NewTickerPipeline(cache.NewTickerCache(), newFakeMetrics(),
		WithMaxUpdatesPerSecond(0),
		WithArchive(a, 16, 100, time.Hour),
	)
	p.Start(context.Background())
	for _, mk := range []string{"KRW-BTC", "KRW-ETH", "KRW-XRP"} {
		if _, err := p.Process(context.Background(), ticker(mk, 10)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	p.Stop()
	if a.rows() != 3 {
		t.Fatalf("expected 3 archived rows, got %d", a.rows())
	}
}

func TestArchiveFlushesOnBatchSize(t *testing.T) {
	a := &fakeArchive{}
	p := NewTickerPipeline(cache.NewTickerCache(), newFakeMetrics(),
		WithMaxUpdatesPerSecond(0),
		WithArchive(a, 16, 2, time.Hour),
	)
	p.Start(context.Background())
	defer p.Stop()
	p.Process(context.Background(), ticker("KRW-BTC", 10))
	p.Process(context.Background(), ticker("KRW-ETH", 10))

	deadline := time.Now().Add(2 * time.Second)
	for a.rows() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("batch not flushed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
