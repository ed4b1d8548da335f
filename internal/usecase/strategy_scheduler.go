package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"BtcTrader/internal/domain/models"
	domrepo "BtcTrader/internal/domain/repository"
	domsvc "BtcTrader/internal/domain/service"
	pkgcache "BtcTrader/pkg/cache"
	applogger "BtcTrader/pkg/logger"
	"BtcTrader/pkg/util"
)

const tickLockKey = "engine:tick"

// MarketFeed is what the scheduler needs from market data.
type MarketFeed interface {
	Quote() string
	RecommendTop(ctx context.Context, topN int) ([]models.MarketRecommendation, error)
	CandlesForMarket(ctx context.Context, market string) ([]models.Candle, error)
	PricesFor(ctx context.Context, markets []string) (map[string]float64, error)
}

// SummarySink receives account summaries after every tick.
type SummarySink interface {
	Publish(s models.PaperSummary) int
}

// SchedulerConfig controls the tick loop.
type SchedulerConfig struct {
	Enabled     bool
	Interval    time.Duration
	TickTimeout time.Duration
	TickLock    bool
}

// TickReport summarises one tick.
type TickReport struct {
	Configs   int
	Evaluated int
	Filled    int
	Rejected  int
	Failures  int
	Skipped   bool
}

// StrategyScheduler evaluates every bot configuration once per tick.
type StrategyScheduler struct {
	configs   domrepo.BotConfigSource
	market    MarketFeed
	engine    domsvc.SignalEvaluator
	ledger    domsvc.PaperLedger
	publisher domrepo.EventPublisher
	summaries SummarySink
	locker    pkgcache.Service
	metrics   domrepo.Metrics
	log       *applogger.Logger
	cfg       SchedulerConfig

	mu       sync.Mutex
	lastTick time.Time
	last     TickReport
}

func NewStrategyScheduler(
	configs domrepo.BotConfigSource,
	market MarketFeed,
	engine domsvc.SignalEvaluator,
	ledger domsvc.PaperLedger,
	publisher domrepo.EventPublisher,
	summaries SummarySink,
	locker pkgcache.Service,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	cfg SchedulerConfig,
) *StrategyScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.TickTimeout < 0 {
		cfg.TickTimeout = 0
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &StrategyScheduler{
		configs:   configs,
		market:    market,
		engine:    engine,
		ledger:    ledger,
		publisher: publisher,
		summaries: summaries,
		locker:    locker,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
	}
}

// Run ticks with a fixed delay between the end of one tick and the start of
// the next until ctx is cancelled. It returns immediately when disabled.
func (s *StrategyScheduler) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("strategy scheduler disabled")
		return
	}
	s.log.Info("strategy scheduler started", applogger.Duration("interval", s.cfg.Interval))
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("strategy scheduler stopped")
			return
		case <-timer.C:
		}
		if _, err := s.Tick(ctx); err != nil {
			s.log.Error("strategy tick failed", applogger.Error(err))
		}
		timer.Reset(s.cfg.Interval)
	}
}

// LastTick returns when the last tick finished and its report.
func (s *StrategyScheduler) LastTick() (time.Time, TickReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick, s.last
}

// Tick runs one evaluation pass over all configurations. A tick is not
// cancelled by ctx and has no deadline unless a tick timeout is set. Per-market
// and per-config failures are logged and counted, never returned.
func (s *StrategyScheduler) Tick(ctx context.Context) (TickReport, error) {
	start := time.Now()
	tctx, cancel := s.tickContext(ctx)
	defer cancel()

	var report TickReport
	if s.cfg.TickLock && s.locker != nil {
		ok, err := s.locker.TryLock(tctx, tickLockKey, s.cfg.Interval)
		if err != nil {
			return report, fmt.Errorf("tick lock: %w", err)
		}
		if !ok {
			report.Skipped = true
			s.log.Debug("tick skipped, lock held elsewhere")
			return report, nil
		}
	}

	configs, err := s.configs.LatestPerOwner(tctx)
	if err != nil {
		s.metrics.RecordError("bot_configs")
		return report, fmt.Errorf("load bot configs: %w", err)
	}
	report.Configs = len(configs)

	auto := s.autoMarkets(tctx, configs)
	users := make(map[string]struct{}, len(configs))
	for _, cfg := range configs {
		users[cfg.UserID] = struct{}{}
		s.runConfig(tctx, cfg, auto, &report)
	}

	for userID := range users {
		if s.summaries != nil {
			s.summaries.Publish(s.ledger.Summary(userID))
		}
	}

	elapsed := time.Since(start)
	s.metrics.RecordTick(elapsed.Seconds())
	s.mu.Lock()
	s.lastTick = time.Now()
	s.last = report
	s.mu.Unlock()
	s.log.Info("strategy tick done",
		applogger.Int("configs", report.Configs),
		applogger.Int("evaluated", report.Evaluated),
		applogger.Int("filled", report.Filled),
		applogger.Int("rejected", report.Rejected),
		applogger.Int("failures", report.Failures),
		applogger.Duration("duration_ms", elapsed),
	)
	return report, nil
}

func (s *StrategyScheduler) tickContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if s.cfg.TickTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, s.cfg.TickTimeout)
}

// autoMarkets runs auto selection once for the largest topN among AUTO configs.
func (s *StrategyScheduler) autoMarkets(ctx context.Context, configs []models.BotConfig) []string {
	topN := 0
	for _, cfg := range configs {
		if isAuto(cfg) && cfg.AutoPickTopN > topN {
			topN = cfg.AutoPickTopN
		}
	}
	if topN == 0 {
		return nil
	}
	recs, err := s.market.RecommendTop(ctx, topN)
	if err != nil {
		s.metrics.RecordError("auto_select")
		s.log.Error("auto selection failed", applogger.Int("top_n", topN), applogger.Error(err))
		return nil
	}
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Market
	}
	return out
}

func isAuto(cfg models.BotConfig) bool {
	return cfg.SelectionMode != models.SelectionManual
}

// marketsFor returns the markets a config trades this tick, followed by any
// market it still holds so exits stay possible after the selection moves on.
func (s *StrategyScheduler) marketsFor(cfg models.BotConfig, auto []string) []string {
	var picked []string
	if isAuto(cfg) {
		n := min(cfg.AutoPickTopN, len(auto))
		picked = append(picked, auto[:max(n, 0)]...)
	} else {
		picked = util.ParseMarketList(cfg.ManualMarkets, s.market.Quote())
	}
	seen := make(map[string]struct{}, len(picked))
	for _, m := range picked {
		seen[m] = struct{}{}
	}
	for _, p := range s.ledger.Summary(cfg.UserID).Positions {
		if _, ok := seen[p.Market]; !ok {
			seen[p.Market] = struct{}{}
			picked = append(picked, p.Market)
		}
	}
	return picked
}

func (s *StrategyScheduler) runConfig(ctx context.Context, cfg models.BotConfig, auto []string, report *TickReport) {
	lg := s.log.With(applogger.String("user_id", cfg.UserID), applogger.String("bot_id", cfg.ID))
	markets := s.marketsFor(cfg, auto)
	if len(markets) == 0 {
		lg.Debug("no markets selected")
	} else {
		prices, err := s.market.PricesFor(ctx, markets)
		if err != nil {
			s.metrics.RecordError("prices")
			lg.Warn("price lookup incomplete", applogger.Error(err))
		}
		for i, market := range markets {
			if err := ctx.Err(); err != nil {
				report.Failures += len(markets) - i
				lg.Warn("tick deadline reached, markets abandoned",
					applogger.Strings("markets", markets[i:]), applogger.Error(err))
				break
			}
			price, ok := prices[market]
			if !ok {
				report.Failures++
				lg.Warn("no price for market", applogger.String("market", market))
				continue
			}
			if err := s.evaluate(ctx, cfg, market, price, report); err != nil {
				report.Failures++
				s.metrics.RecordError("evaluate")
				lg.Warn("market evaluation failed", applogger.String("market", market), applogger.Error(err))
			}
		}
	}

	if err := s.ledger.RecordEquity(ctx, cfg.UserID); err != nil {
		report.Failures++
		s.metrics.RecordError("record_equity")
		lg.Error("record equity failed", applogger.Error(err))
	}
	s.metrics.RecordEquity(cfg.UserID, s.ledger.Summary(cfg.UserID).Equity)
}

func (s *StrategyScheduler) evaluate(ctx context.Context, cfg models.BotConfig, market string, price float64, report *TickReport) error {
	candles, err := s.market.CandlesForMarket(ctx, market)
	if err != nil {
		return fmt.Errorf("candles: %w", err)
	}
	decision := s.engine.Evaluate(cfg, candles)
	report.Evaluated++
	s.metrics.RecordDecision(string(decision.Action), string(decision.Regime))

	s.ledger.UpdateLastPrice(cfg.UserID, market, price)
	exec := s.ledger.ApplySignal(cfg, market, price, decision)

	now := time.Now()
	if err := s.publisher.PublishDecision(ctx, models.DecisionEvent{
		UserID:    cfg.UserID,
		BotID:     cfg.ID,
		Market:    market,
		Price:     price,
		Decision:  decision,
		Timestamp: now,
	}); err != nil {
		s.metrics.RecordError("publish_decision")
		s.log.Warn("publish decision failed", applogger.String("market", market), applogger.Error(err))
	}

	switch exec.Status {
	case models.ExecFilled:
		report.Filled++
		s.metrics.RecordFill(string(exec.Side))
		if err := s.publisher.PublishFill(ctx, models.FillEvent{
			UserID:    cfg.UserID,
			BotID:     cfg.ID,
			Execution: exec,
			Timestamp: now,
		}); err != nil {
			s.metrics.RecordError("publish_fill")
			s.log.Warn("publish fill failed", applogger.String("market", market), applogger.Error(err))
		}
	case models.ExecRejected:
		report.Rejected++
		s.metrics.RecordRejected(exec.Reason)
	}
	return nil
}
