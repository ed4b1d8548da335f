package usecase

import (
	"context"
	"testing"
	"time"

	"BtcTrader/internal/domain/models"
	"BtcTrader/internal/service/cache"
	"BtcTrader/internal/services/selector"
	pkgcache "BtcTrader/pkg/cache"
)

func newMarketFixture(t *testing.T) (*MarketData, *fakeExchange, *cache.TickerCache) {
	t.Helper()
	now := time.Now()
	ex := &fakeExchange{
		markets: []models.MarketInfo{
			{Market: "KRW-BTC"},
			{Market: "KRW-ETH"},
			{Market: "KRW-XRP"},
			{Market: "KRW-DOGE", Warning: "CAUTION"},
			{Market: "BTC-ETH"},
		},
		tickers: map[string]models.Ticker{
			"KRW-BTC":  {Market: "KRW-BTC", TradePrice: 50000, AccTradePrice24h: 900, Timestamp: now},
			"KRW-ETH":  {Market: "KRW-ETH", TradePrice: 3000, AccTradePrice24h: 500, Timestamp: now},
			"KRW-XRP":  {Market: "KRW-XRP", TradePrice: 700, AccTradePrice24h: 800, Timestamp: now},
			"KRW-DOGE": {Market: "KRW-DOGE", TradePrice: 100, AccTradePrice24h: 9999, Timestamp: now},
			"BTC-ETH":  {Market: "BTC-ETH", TradePrice: 0.05, AccTradePrice24h: 9999, Timestamp: now},
		},
	}
	candles := &fakeCandles{byMarket: map[string][]models.Candle{
		"KRW-BTC": risingCandles(60, 49000, 20),
		"KRW-ETH": risingCandles(60, 3000, 0.5),
		"KRW-XRP": risingCandles(10, 700, 1),
	}}
	prices := cache.NewTickerCache()
	mem := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })

	md := NewMarketData(ex, candles, prices, selector.New(), mem, MarketDataConfig{
		Quote:             "KRW",
		CandleCount:       60,
		PriceMaxAge:       30 * time.Second,
		RecommendationTTL: time.Minute,
	}, nil)
	return md, ex, prices
}

func TestTopMarketsByVolumeFiltersAndSorts(t *testing.T) {
	md, _, prices := newMarketFixture(t)
	got, err := md.TopMarketsByVolume(context.Background(), 2)
	if err != nil {
		t.Fatalf("top markets: %v", err)
	}
	want := []string{"KRW-BTC", "KRW-XRP"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v want %v", got, want)
	}
	if _, ok := prices.Get("KRW-ETH"); !ok {
		t.Fatalf("fetched tickers should warm the price cache")
	}
}

func TestBuildSnapshotsSkipsShortHistory(t *testing.T) {
	md, _, _ := newMarketFixture(t)
	snaps, err := md.BuildSnapshots(context.Background(), 5)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	for _, s := range snaps {
		if s.Symbol == "KRW-XRP" {
			t.Fatalf("market with 10 candles must be skipped")
		}
		if s.Symbol == "KRW-BTC" {
			if s.TrendStrengthPct <= 0 {
				t.Errorf("rising market should have positive trend, got %v", s.TrendStrengthPct)
			}
			if s.VolatilityPct <= 0 {
				t.Errorf("expected positive volatility, got %v", s.VolatilityPct)
			}
			if s.LastPrice != 50000 || s.Volume24h != 900 {
				t.Errorf("snapshot should carry ticker price and volume: %+v", s)
			}
		}
	}
}

func TestRecommendTopIsCached(t *testing.T) {
	md, ex, _ := newMarketFixture(t)
	first, err := md.RecommendTop(context.Background(), 2)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(first))
	}
	if first[0].Score < first[1].Score {
		t.Fatalf("recommendations not sorted: %+v", first)
	}
	calls := ex.marketCalls

	second, err := md.RecommendTop(context.Background(), 2)
	if err != nil {
		t.Fatalf("recommend again: %v", err)
	}
	if ex.marketCalls != calls {
		t.Fatalf("second call should be served from cache")
	}
	if len(second) != len(first) || second[0].Market != first[0].Market {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}
}

func TestRecommendTopZero(t *testing.T) {
	md, ex, _ := newMarketFixture(t)
	got, err := md.RecommendTop(context.Background(), 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
	if ex.marketCalls != 0 {
		t.Fatalf("topN 0 should not touch the exchange")
	}
}

func TestPricesForPrefersFreshCache(t *testing.T) {
	md, ex, prices := newMarketFixture(t)
	prices.Put(models.Ticker{Market: "KRW-BTC", TradePrice: 51000, Timestamp: time.Now().Add(time.Minute)})

	got, err := md.PricesFor(context.Background(), []string{"KRW-BTC", "KRW-ETH", "KRW-NONE"})
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if got["KRW-BTC"] != 51000 {
		t.Errorf("cached price not used: %v", got["KRW-BTC"])
	}
	if got["KRW-ETH"] != 3000 {
		t.Errorf("missing price not fetched: %v", got["KRW-ETH"])
	}
	if _, ok := got["KRW-NONE"]; ok {
		t.Errorf("unknown market should be absent")
	}
	if ex.tickerCalls != 1 {
		t.Errorf("expected one exchange call, got %d", ex.tickerCalls)
	}

	ex.tickerFailed = true
	got, err = md.PricesFor(context.Background(), []string{"KRW-BTC", "KRW-XRP"})
	if err == nil {
		t.Fatalf("expected error when exchange fails")
	}
	if got["KRW-BTC"] != 51000 {
		t.Fatalf("cached prices should survive a failed fetch")
	}
}
