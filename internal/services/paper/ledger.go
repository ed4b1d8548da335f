// Package paper implements the simulated per-user trading account: risk-gated
// execution of strategy decisions and the daily/weekly performance series.
package paper

import (
	"context"
	"sort"
	"sync"
	"time"

	"BtcTrader/internal/domain/models"
	"BtcTrader/pkg/util"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Rejection reasons reported on Execution.Reason.
const (
	RejectDrawdown     = "drawdown limit reached"
	RejectDuplicate    = "position already open"
	RejectMaxPositions = "max positions reached"
	RejectAllocation   = "insufficient allocation"
	RejectNoPosition   = "no open position"
	RejectInvalidPrice = "invalid price"
	SkipHold           = "hold"
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLocation sets the timezone that defines calendar days and weeks.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithPerformance attaches the performance ledger fed by RecordEquity.
func WithPerformance(p *PerformanceLedger) Option {
	return func(l *Ledger) { l.perf = p }
}

// Ledger owns every paper account keyed by user id. Operations on one account
// serialize on that account's lock; different users proceed in parallel.
type Ledger struct {
	mu          sync.RWMutex
	accounts    map[string]*account
	initialCash decimal.Decimal
	loc         *time.Location
	now         func() time.Time
	perf        *PerformanceLedger
}

func NewLedger(initialCash float64, opts ...Option) *Ledger {
	l := &Ledger{
		accounts:    make(map[string]*account),
		initialCash: decimal.NewFromFloat(initialCash),
		loc:         time.UTC,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// account returns the user's account, creating it with the initial cash on first use.
func (l *Ledger) account(userID string) *account {
	l.mu.RLock()
	a, ok := l.accounts[userID]
	l.mu.RUnlock()
	if ok {
		return a
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok = l.accounts[userID]; ok {
		return a
	}
	a = newAccount(userID, l.initialCash)
	l.accounts[userID] = a
	return a
}

func (l *Ledger) anchors() (day, week time.Time) {
	now := l.now()
	return util.DayStart(now, l.loc), util.WeekStart(now, l.loc)
}

// ApplySignal applies one decision to the bot owner's account. BUY is gated by
// both drawdown limits; SELL always runs so exits are never blocked.
func (l *Ledger) ApplySignal(cfg models.BotConfig, market string, price float64, d models.StrategyDecision) models.Execution {
	a := l.account(cfg.UserID)
	a.mu.Lock()
	defer a.mu.Unlock()

	day, week := l.anchors()
	a.refreshAnchors(day, week)

	switch d.Action {
	case models.ActionBuy:
		eq := a.equity()
		allowBuy := drawdownPct(a.dailyStartEquity, eq) <= cfg.MaxDailyDrawdownPct &&
			drawdownPct(a.weeklyStartEquity, eq) <= cfg.MaxWeeklyDrawdownPct
		if !allowBuy {
			return rejected(models.ActionBuy, market, price, RejectDrawdown)
		}
		return a.buy(market, price, d.RiskPerTradePct, d.MaxPositions)
	case models.ActionSell:
		return a.sell(market, price)
	default:
		return models.Execution{Status: models.ExecSkipped, Side: models.ActionHold, Market: market, Price: price, Reason: SkipHold}
	}
}

func (a *account) buy(market string, price, riskPerTradePct float64, maxPositions int) models.Execution {
	if price <= 0 {
		return rejected(models.ActionBuy, market, price, RejectInvalidPrice)
	}
	if _, exists := a.positions[market]; exists {
		return rejected(models.ActionBuy, market, price, RejectDuplicate)
	}
	if len(a.positions) >= maxPositions {
		return rejected(models.ActionBuy, market, price, RejectMaxPositions)
	}
	allocation := a.cash.Mul(decimal.NewFromFloat(riskPerTradePct)).Div(hundred)
	if !allocation.IsPositive() || allocation.GreaterThan(a.cash) {
		return rejected(models.ActionBuy, market, price, RejectAllocation)
	}
	px := decimal.NewFromFloat(price)
	qty := allocation.Div(px)
	a.cash = a.cash.Sub(allocation)
	a.positions[market] = &position{market: market, quantity: qty, cost: allocation, entryPrice: px, lastPrice: px}
	return models.Execution{
		Status:   models.ExecFilled,
		Side:     models.ActionBuy,
		Market:   market,
		Price:    price,
		Quantity: qty.InexactFloat64(),
	}
}

func (a *account) sell(market string, price float64) models.Execution {
	p, exists := a.positions[market]
	if !exists {
		return rejected(models.ActionSell, market, price, RejectNoPosition)
	}
	px := decimal.NewFromFloat(price)
	delete(a.positions, market)
	a.cash = a.cash.Add(p.valueAt(px))
	pnl := p.pnlAt(px)
	a.realized = a.realized.Add(pnl)
	return models.Execution{
		Status:      models.ExecFilled,
		Side:        models.ActionSell,
		Market:      market,
		Price:       price,
		Quantity:    p.quantity.InexactFloat64(),
		RealizedPnl: pnl.InexactFloat64(),
	}
}

// UpdateLastPrice marks an open position to a new price. Unknown markets are ignored.
func (l *Ledger) UpdateLastPrice(userID, market string, price float64) {
	if price <= 0 {
		return
	}
	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.positions[market]; ok {
		p.lastPrice = decimal.NewFromFloat(price)
	}
}

// Reset replaces the account state and re-anchors both drawdown windows at initialCash.
func (l *Ledger) Reset(userID string, initialCash float64) models.PaperSummary {
	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	day, week := l.anchors()
	a.reset(decimal.NewFromFloat(initialCash), day, week)
	return a.summary()
}

// Summary returns the current read model of the user's account.
func (l *Ledger) Summary(userID string) models.PaperSummary {
	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary()
}

// Equity returns the user's current equity.
func (l *Ledger) Equity(userID string) float64 {
	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.equity().InexactFloat64()
}

// DrawdownPct returns the current daily and weekly drawdown percentages.
func (l *Ledger) DrawdownPct(userID string) (daily, weekly float64) {
	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	eq := a.equity()
	return drawdownPct(a.dailyStartEquity, eq), drawdownPct(a.weeklyStartEquity, eq)
}

// RecordEquity snapshots the user's equity into the performance ledger.
func (l *Ledger) RecordEquity(ctx context.Context, userID string) error {
	if l.perf == nil {
		return nil
	}
	return l.perf.Record(ctx, userID, l.Equity(userID))
}

// Performance builds the user's performance view over the last days/weeks points.
func (l *Ledger) Performance(ctx context.Context, userID string, days, weeks int) (models.PaperPerformance, error) {
	if l.perf == nil {
		return models.PaperPerformance{Daily: []models.PerformancePoint{}, Weekly: []models.PerformancePoint{}}, nil
	}
	return l.perf.Build(ctx, userID, days, weeks)
}

// Users lists the ids of every account created so far.
func (l *Ledger) Users() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.accounts))
	for id := range l.accounts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (a *account) summary() models.PaperSummary {
	views := make([]models.PaperPositionView, 0, len(a.positions))
	unrealized := decimal.Zero
	for _, p := range a.positions {
		pnl := p.pnlAt(p.lastPrice)
		unrealized = unrealized.Add(pnl)
		pct := 0.0
		if p.entryPrice.IsPositive() {
			pct = p.lastPrice.Sub(p.entryPrice).Div(p.entryPrice).Mul(hundred).InexactFloat64()
		}
		views = append(views, models.PaperPositionView{
			Market:           p.market,
			Quantity:         p.quantity.InexactFloat64(),
			EntryPrice:       p.entryPrice.InexactFloat64(),
			LastPrice:        p.lastPrice.InexactFloat64(),
			UnrealizedPnl:    pnl.InexactFloat64(),
			UnrealizedPnlPct: pct,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Market < views[j].Market })
	return models.PaperSummary{
		UserID:        a.userID,
		CashBalance:   a.cash.InexactFloat64(),
		Equity:        a.equity().InexactFloat64(),
		RealizedPnl:   a.realized.InexactFloat64(),
		UnrealizedPnl: unrealized.InexactFloat64(),
		Positions:     views,
	}
}

func rejected(side models.Action, market string, price float64, reason string) models.Execution {
	return models.Execution{Status: models.ExecRejected, Side: side, Market: market, Price: price, Reason: reason}
}
