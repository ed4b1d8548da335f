package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"BtcTrader/internal/domain/models"
	domrepo "BtcTrader/internal/domain/repository"
	domsvc "BtcTrader/internal/domain/service"
	"BtcTrader/internal/services/indicators"
	pkgcache "BtcTrader/pkg/cache"
	applogger "BtcTrader/pkg/logger"
)

const (
	minSnapshotCandles = 20
	warningCaution     = "CAUTION"
)

// PriceCache is the ticker cache as seen by market data.
type PriceCache interface {
	Put(t models.Ticker)
	GetFresh(market string, maxAge time.Duration) (models.Ticker, bool)
}

// MarketDataConfig holds market data tunables.
type MarketDataConfig struct {
	Quote             string
	CandleCount       int
	PriceMaxAge       time.Duration
	RecommendationTTL time.Duration
}

// MarketData builds market snapshots and recommendations and resolves prices.
type MarketData struct {
	exchange domrepo.ExchangeClient
	candles  domrepo.CandleSource
	prices   PriceCache
	ranker   domsvc.MarketRanker
	cache    pkgcache.Service
	cfg      MarketDataConfig
	log      *applogger.Logger
}

// NewMarketData wires market data. cache may be nil to disable recommendation caching.
func NewMarketData(exchange domrepo.ExchangeClient, candles domrepo.CandleSource, prices PriceCache,
	ranker domsvc.MarketRanker, cache pkgcache.Service, cfg MarketDataConfig, log *applogger.Logger) *MarketData {
	if cfg.Quote == "" {
		cfg.Quote = "KRW"
	}
	if cfg.CandleCount <= 0 {
		cfg.CandleCount = 120
	}
	if cfg.PriceMaxAge <= 0 {
		cfg.PriceMaxAge = 30 * time.Second
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &MarketData{exchange: exchange, candles: candles, prices: prices, ranker: ranker, cache: cache, cfg: cfg, log: log}
}

// Quote is the quote currency prefix, e.g. "KRW".
func (m *MarketData) Quote() string { return m.cfg.Quote }

// eligibleMarkets lists quote markets without a CAUTION warning.
func (m *MarketData) eligibleMarkets(ctx context.Context) ([]string, error) {
	infos, err := m.exchange.GetMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	prefix := m.cfg.Quote + "-"
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		if !strings.HasPrefix(info.Market, prefix) {
			continue
		}
		if strings.EqualFold(info.Warning, warningCaution) {
			continue
		}
		out = append(out, info.Market)
	}
	return out, nil
}

// topTickers returns the n eligible tickers with the highest 24h notional volume.
func (m *MarketData) topTickers(ctx context.Context, n int) ([]models.Ticker, error) {
	markets, err := m.eligibleMarkets(ctx)
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 || n <= 0 {
		return nil, nil
	}
	tickers, err := m.exchange.GetTickers(ctx, markets)
	if err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}
	for _, t := range tickers {
		m.prices.Put(t)
	}
	sort.SliceStable(tickers, func(i, j int) bool {
		return tickers[i].AccTradePrice24h > tickers[j].AccTradePrice24h
	})
	if len(tickers) > n {
		tickers = tickers[:n]
	}
	return tickers, nil
}

// TopMarketsByVolume returns the codes of the n most traded eligible markets.
func (m *MarketData) TopMarketsByVolume(ctx context.Context, n int) ([]string, error) {
	tickers, err := m.topTickers(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(tickers))
	for i, t := range tickers {
		out[i] = t.Market
	}
	return out, nil
}

// BuildSnapshots computes feature snapshots for the volume leaders. Markets
// with too little candle history are skipped.
func (m *MarketData) BuildSnapshots(ctx context.Context, topN int) ([]models.MarketSnapshot, error) {
	candidates := max(topN*4, topN)
	tickers, err := m.topTickers(ctx, candidates)
	if err != nil {
		return nil, err
	}
	out := make([]models.MarketSnapshot, 0, len(tickers))
	for _, t := range tickers {
		candles, err := m.CandlesForMarket(ctx, t.Market)
		if err != nil {
			m.log.Warn("snapshot candles failed", applogger.String("market", t.Market), applogger.Error(err))
			continue
		}
		if len(candles) < minSnapshotCandles {
			continue
		}
		out = append(out, snapshotFrom(t, candles))
	}
	return out, nil
}

func snapshotFrom(t models.Ticker, candles []models.Candle) models.MarketSnapshot {
	last := candles[len(candles)-1].Close
	if t.TradePrice > 0 {
		last = t.TradePrice
	}
	snap := models.MarketSnapshot{
		Symbol:    t.Market,
		LastPrice: last,
		Volume24h: t.AccTradePrice24h,
	}
	if last <= 0 {
		return snap
	}
	if atr, ok := indicators.ATR(candles, 14); ok {
		snap.VolatilityPct = atr / last * 100
	}
	closes := indicators.Closes(candles)
	fast, okFast := indicators.EMA(closes, 12)
	slow, okSlow := indicators.EMA(closes, 26)
	if okFast && okSlow {
		snap.TrendStrengthPct = (fast - slow) / last * 100
	}
	return snap
}

// RecommendTop ranks snapshots and returns the best topN. Results are cached per topN.
func (m *MarketData) RecommendTop(ctx context.Context, topN int) ([]models.MarketRecommendation, error) {
	if topN <= 0 {
		return []models.MarketRecommendation{}, nil
	}
	key := pkgcache.GenerateKeyWithParams("recommendations", m.cfg.Quote, topN)
	if m.cache != nil {
		var cached []models.MarketRecommendation
		err := m.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			m.log.Warn("recommendation cache read failed", applogger.Error(err))
		}
	}

	snaps, err := m.BuildSnapshots(ctx, topN)
	if err != nil {
		return nil, err
	}
	scored := m.ranker.TopN(snaps, topN)
	out := make([]models.MarketRecommendation, len(scored))
	for i, s := range scored {
		out[i] = models.RecommendationFrom(s)
	}

	if m.cache != nil && m.cfg.RecommendationTTL > 0 {
		if err := m.cache.Set(ctx, key, out, m.cfg.RecommendationTTL); err != nil {
			m.log.Warn("recommendation cache write failed", applogger.Error(err))
		}
	}
	return out, nil
}

// CandlesForMarket returns the configured number of candles, ascending.
func (m *MarketData) CandlesForMarket(ctx context.Context, market string) ([]models.Candle, error) {
	if market == "" {
		return nil, fmt.Errorf("market required")
	}
	return m.candles.LatestCandles(ctx, market, m.cfg.CandleCount)
}

// PricesFor resolves last prices, using fresh cached tickers where possible and
// one exchange call for the rest. Markets without a price are absent from the map.
func (m *MarketData) PricesFor(ctx context.Context, markets []string) (map[string]float64, error) {
	out := make(map[string]float64, len(markets))
	var missing []string
	for _, mk := range markets {
		if t, ok := m.prices.GetFresh(mk, m.cfg.PriceMaxAge); ok && t.TradePrice > 0 {
			out[mk] = t.TradePrice
			continue
		}
		missing = append(missing, mk)
	}
	if len(missing) == 0 {
		return out, nil
	}
	tickers, err := m.exchange.GetTickers(ctx, missing)
	if err != nil {
		return out, fmt.Errorf("fetch prices: %w", err)
	}
	for _, t := range tickers {
		if t.TradePrice <= 0 {
			continue
		}
		m.prices.Put(t)
		out[t.Market] = t.TradePrice
	}
	return out, nil
}
