package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"BtcTrader/internal/domain/models"
	"BtcTrader/internal/repository"
	"BtcTrader/internal/services/paper"
	pkgcache "BtcTrader/pkg/cache"
)

type fakeFeed struct {
	mu         sync.Mutex
	recs       []models.MarketRecommendation
	recCalls   []int
	prices     map[string]float64
	candleFail map[string]bool
	deadlines  []bool
}

func (f *fakeFeed) Quote() string { return "KRW" }

func (f *fakeFeed) RecommendTop(_ context.Context, topN int) ([]models.MarketRecommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recCalls = append(f.recCalls, topN)
	out := f.recs
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// CandlesForMarket tags candles with their market so the fake engine can
// decide per market.
func (f *fakeFeed) CandlesForMarket(ctx context.Context, market string) ([]models.Candle, error) {
	_, hasDeadline := ctx.Deadline()
	f.mu.Lock()
	f.deadlines = append(f.deadlines, hasDeadline)
	f.mu.Unlock()
	if f.candleFail[market] {
		return nil, errors.New("no candles")
	}
	candles := risingCandles(30, 100, 1)
	for i := range candles {
		candles[i].Market = market
	}
	return candles, nil
}

func (f *fakeFeed) PricesFor(_ context.Context, markets []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, m := range markets {
		if p, ok := f.prices[m]; ok {
			out[m] = p
		}
	}
	return out, nil
}

type marketEngine struct {
	mu        sync.Mutex
	decisions map[string]models.StrategyDecision
	calls     map[string]int
}

func newMarketEngine(decisions map[string]models.StrategyDecision) *marketEngine {
	return &marketEngine{decisions: decisions, calls: map[string]int{}}
}

func (e *marketEngine) Evaluate(_ models.BotConfig, candles []models.Candle) models.StrategyDecision {
	market := candles[len(candles)-1].Market
	e.mu.Lock()
	e.calls[market]++
	e.mu.Unlock()
	if d, ok := e.decisions[market]; ok {
		return d
	}
	return models.StrategyDecision{Action: models.ActionHold, Regime: models.RegimeUnknown}
}

type fakeConfigs struct {
	configs []models.BotConfig
	err     error
}

func (f *fakeConfigs) LatestPerOwner(context.Context) ([]models.BotConfig, error) {
	return f.configs, f.err
}

// slowConfigs answers only once the tick context is done.
type slowConfigs struct {
	configs []models.BotConfig
}

func (f *slowConfigs) LatestPerOwner(ctx context.Context) ([]models.BotConfig, error) {
	<-ctx.Done()
	return f.configs, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	decisions []models.DecisionEvent
	fills     []models.FillEvent
}

func (p *fakePublisher) PublishDecision(_ context.Context, ev models.DecisionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, ev)
	return nil
}

func (p *fakePublisher) PublishFill(_ context.Context, ev models.FillEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fills = append(p.fills, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func buyDecision() models.StrategyDecision {
	return models.StrategyDecision{
		Action:          models.ActionBuy,
		Regime:          models.RegimeTrendUp,
		RiskPerTradePct: 0.7,
		MaxPositions:    3,
	}
}

func manualConfig(userID, markets string) models.BotConfig {
	cfg := models.DefaultBotConfig(userID)
	cfg.ID = "bot-" + userID
	cfg.SelectionMode = models.SelectionManual
	cfg.ManualMarkets = markets
	return cfg
}

func autoConfig(userID string, topN int) models.BotConfig {
	cfg := models.DefaultBotConfig(userID)
	cfg.ID = "bot-" + userID
	cfg.AutoPickTopN = topN
	return cfg
}

type schedulerFixture struct {
	sched     *StrategyScheduler
	feed      *fakeFeed
	engine    *marketEngine
	ledger    *paper.Ledger
	store     *repository.MemoryPerformanceStore
	publisher *fakePublisher
	broadcast *paper.Broadcaster
	metrics   *fakeMetrics
}

func newSchedulerFixture(configs []models.BotConfig, decisions map[string]models.StrategyDecision, cfg SchedulerConfig, locker pkgcache.Service) *schedulerFixture {
	f := &schedulerFixture{
		feed: &fakeFeed{
			recs: []models.MarketRecommendation{
				{Market: "KRW-BTC", Score: 0.9},
				{Market: "KRW-ETH", Score: 0.8},
				{Market: "KRW-XRP", Score: 0.7},
			},
			prices: map[string]float64{"KRW-BTC": 50_000, "KRW-ETH": 3_000, "KRW-XRP": 700},
		},
		engine:    newMarketEngine(decisions),
		store:     repository.NewMemoryPerformanceStore(),
		publisher: &fakePublisher{},
		broadcast: paper.NewBroadcaster(4),
		metrics:   newFakeMetrics(),
	}
	perf := paper.NewPerformanceLedger(f.store, time.UTC, time.Now)
	f.ledger = paper.NewLedger(1_000_000, paper.WithLocation(time.UTC), paper.WithPerformance(perf))
	f.sched = NewStrategyScheduler(&fakeConfigs{configs: configs}, f.feed, f.engine, f.ledger,
		f.publisher, f.broadcast, locker, f.metrics, nil, cfg)
	return f
}

func TestTickManualConfig(t *testing.T) {
	f := newSchedulerFixture(
		[]models.BotConfig{manualConfig("u1", "btc, KRW-ETH")},
		map[string]models.StrategyDecision{"KRW-BTC": buyDecision()},
		SchedulerConfig{Enabled: true, Interval: time.Minute},
		nil,
	)
	sub, cancel := f.broadcast.Subscribe("u1")
	defer cancel()

	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Configs != 1 || report.Evaluated != 2 || report.Filled != 1 || report.Failures != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	s := f.ledger.Summary("u1")
	if len(s.Positions) != 1 || s.Positions[0].Market != "KRW-BTC" {
		t.Fatalf("expected one BTC position, got %+v", s.Positions)
	}
	if len(f.publisher.decisions) != 2 || len(f.publisher.fills) != 1 {
		t.Fatalf("published %d decisions and %d fills", len(f.publisher.decisions), len(f.publisher.fills))
	}
	if f.publisher.fills[0].BotID != "bot-u1" {
		t.Fatalf("fill event missing bot id: %+v", f.publisher.fills[0])
	}

	daily, _ := f.store.List(context.Background(), "u1", models.PeriodDaily, 7)
	weekly, _ := f.store.List(context.Background(), "u1", models.PeriodWeekly, 4)
	if len(daily) != 1 || len(weekly) != 1 {
		t.Fatalf("expected equity snapshots, got daily=%d weekly=%d", len(daily), len(weekly))
	}

	select {
	case got := <-sub:
		if got.UserID != "u1" || len(got.Positions) != 1 {
			t.Fatalf("unexpected broadcast %+v", got)
		}
	default:
		t.Fatalf("summary was not broadcast")
	}
	if f.metrics.ticks != 1 || f.metrics.fills["BUY"] != 1 {
		t.Fatalf("metrics not recorded: ticks=%d fills=%v", f.metrics.ticks, f.metrics.fills)
	}
}

func TestTickAutoSelectionRunsOnce(t *testing.T) {
	f := newSchedulerFixture(
		[]models.BotConfig{autoConfig("u1", 1), autoConfig("u2", 2), manualConfig("u3", "xrp")},
		nil,
		SchedulerConfig{Enabled: true, Interval: time.Minute},
		nil,
	)
	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(f.feed.recCalls) != 1 || f.feed.recCalls[0] != 2 {
		t.Fatalf("auto selection calls = %v, want one call with topN 2", f.feed.recCalls)
	}
	// u1: BTC, u2: BTC+ETH, u3: XRP
	if report.Evaluated != 4 {
		t.Fatalf("evaluated = %d, want 4", report.Evaluated)
	}
	if f.engine.calls["KRW-BTC"] != 2 || f.engine.calls["KRW-ETH"] != 1 || f.engine.calls["KRW-XRP"] != 1 {
		t.Fatalf("unexpected evaluation calls %v", f.engine.calls)
	}
}

func TestTickContinuesAfterMarketFailure(t *testing.T) {
	f := newSchedulerFixture(
		[]models.BotConfig{manualConfig("u1", "btc,eth,doge"), manualConfig("u2", "xrp")},
		map[string]models.StrategyDecision{"KRW-ETH": buyDecision(), "KRW-XRP": buyDecision()},
		SchedulerConfig{Enabled: true, Interval: time.Minute},
		nil,
	)
	f.feed.candleFail = map[string]bool{"KRW-BTC": true}

	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	// BTC candles fail, DOGE has no price
	if report.Failures != 2 {
		t.Fatalf("failures = %d, want 2", report.Failures)
	}
	if report.Filled != 2 {
		t.Fatalf("filled = %d, want 2", report.Filled)
	}
	if f.metrics.errorCount("evaluate") != 1 {
		t.Fatalf("evaluate errors = %d", f.metrics.errorCount("evaluate"))
	}
}

func TestTickEvaluatesHeldMarketsOutsideSelection(t *testing.T) {
	f := newSchedulerFixture(
		[]models.BotConfig{manualConfig("u1", "btc")},
		map[string]models.StrategyDecision{"KRW-XRP": {Action: models.ActionSell, Regime: models.RegimeTrendDown}},
		SchedulerConfig{Enabled: true, Interval: time.Minute},
		nil,
	)
	cfg := manualConfig("u1", "xrp")
	if exec := f.ledger.ApplySignal(cfg, "KRW-XRP", 700, buyDecision()); exec.Status != models.ExecFilled {
		t.Fatalf("seed position: %+v", exec)
	}

	if _, err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if f.engine.calls["KRW-XRP"] != 1 {
		t.Fatalf("held market was not evaluated")
	}
	if len(f.ledger.Summary("u1").Positions) != 0 {
		t.Fatalf("position should have been closed")
	}
}

func TestTickWithoutTimeoutHasNoDeadline(t *testing.T) {
	f := newSchedulerFixture(
		[]models.BotConfig{manualConfig("u1", "BTC,ETH,XRP")}, nil,
		SchedulerConfig{Enabled: true, Interval: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := f.sched.Tick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Evaluated != 3 || report.Failures != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	f.feed.mu.Lock()
	defer f.feed.mu.Unlock()
	if len(f.feed.deadlines) != 3 {
		t.Fatalf("candle fetches = %d, want 3", len(f.feed.deadlines))
	}
	for i, has := range f.feed.deadlines {
		if has {
			t.Fatalf("fetch %d ran under a deadline", i)
		}
	}
}

func TestTickTimeoutAbandonsRemainingMarkets(t *testing.T) {
	f := newSchedulerFixture(nil, nil,
		SchedulerConfig{Enabled: true, Interval: time.Minute, TickTimeout: 20 * time.Millisecond}, nil)
	f.sched.configs = &slowConfigs{configs: []models.BotConfig{manualConfig("u1", "BTC,ETH")}}

	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Configs != 1 || report.Evaluated != 0 || report.Failures != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	f.feed.mu.Lock()
	defer f.feed.mu.Unlock()
	if len(f.feed.deadlines) != 0 {
		t.Fatalf("no candles should be fetched after the deadline, got %d", len(f.feed.deadlines))
	}
}

func TestTickConfigSourceError(t *testing.T) {
	f := newSchedulerFixture(nil, nil, SchedulerConfig{Enabled: true}, nil)
	f.sched.configs = &fakeConfigs{err: errors.New("db down")}
	if _, err := f.sched.Tick(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if f.metrics.errorCount("bot_configs") != 1 {
		t.Fatalf("config error not counted")
	}
}

func TestTickLockSkipsConcurrentInstances(t *testing.T) {
	locker := pkgcache.NewMemoryCache()
	defer locker.Close()
	cfg := SchedulerConfig{Enabled: true, Interval: time.Minute, TickLock: true}
	a := newSchedulerFixture([]models.BotConfig{manualConfig("u1", "btc")}, nil, cfg, locker)
	b := newSchedulerFixture([]models.BotConfig{manualConfig("u1", "btc")}, nil, cfg, locker)

	ra, err := a.sched.Tick(context.Background())
	if err != nil || ra.Skipped {
		t.Fatalf("first instance should tick: %+v %v", ra, err)
	}
	rb, err := b.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if !rb.Skipped || rb.Evaluated != 0 {
		t.Fatalf("second instance should skip, got %+v", rb)
	}
}

func TestRunDisabledReturns(t *testing.T) {
	f := newSchedulerFixture(nil, nil, SchedulerConfig{Enabled: false}, nil)
	done := make(chan struct{})
	go func() {
		f.sched.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("disabled scheduler should return immediately")
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	f := newSchedulerFixture([]models.BotConfig{manualConfig("u1", "btc")}, nil,
		SchedulerConfig{Enabled: true, Interval: 10 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sched.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if last, _ := f.sched.LastTick(); !last.IsZero() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no tick happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
