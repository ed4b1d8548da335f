package paper

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// position is one open holding. At most one per market per account.
// cost is the cash spent on entry; quantity is derived from it and may be rounded.
type position struct {
	market     string
	quantity   decimal.Decimal
	cost       decimal.Decimal
	entryPrice decimal.Decimal
	lastPrice  decimal.Decimal
}

// pnlAt is the profit of closing the position at px.
func (p *position) pnlAt(px decimal.Decimal) decimal.Decimal {
	return px.Sub(p.entryPrice).Mul(p.quantity)
}

// valueAt is cost plus pnl, so a price equal to entry returns exactly the cost.
func (p *position) valueAt(px decimal.Decimal) decimal.Decimal {
	return p.cost.Add(p.pnlAt(px))
}

// account is the mutable aggregate of one user. mu guards every field.
type account struct {
	mu        sync.Mutex
	userID    string
	cash      decimal.Decimal
	realized  decimal.Decimal
	positions map[string]*position

	dailyAnchor       time.Time
	dailyStartEquity  decimal.Decimal
	weeklyAnchor      time.Time
	weeklyStartEquity decimal.Decimal
}

func newAccount(userID string, cash decimal.Decimal) *account {
	return &account{
		userID:    userID,
		cash:      cash,
		positions: make(map[string]*position),
	}
}

// equity is cash plus every position marked at its last price. Caller holds mu.
func (a *account) equity() decimal.Decimal {
	eq := a.cash
	for _, p := range a.positions {
		eq = eq.Add(p.valueAt(p.lastPrice))
	}
	return eq
}

// refreshAnchors re-anchors drawdown windows when the day or week changed. Caller holds mu.
func (a *account) refreshAnchors(day, week time.Time) {
	if !a.dailyAnchor.Equal(day) || !a.weeklyAnchor.Equal(week) {
		eq := a.equity()
		if !a.dailyAnchor.Equal(day) {
			a.dailyAnchor = day
			a.dailyStartEquity = eq
		}
		if !a.weeklyAnchor.Equal(week) {
			a.weeklyAnchor = week
			a.weeklyStartEquity = eq
		}
	}
}

// reset clears the account in place and keeps the allocated position map.
func (a *account) reset(cash decimal.Decimal, day, week time.Time) {
	clear(a.positions)
	a.cash = cash
	a.realized = decimal.Zero
	a.dailyAnchor = day
	a.dailyStartEquity = cash
	a.weeklyAnchor = week
	a.weeklyStartEquity = cash
}

// drawdownPct is max(0, (start-equity)/start*100), 0 when start is not positive.
func drawdownPct(start, equity decimal.Decimal) float64 {
	if !start.IsPositive() {
		return 0
	}
	dd := start.Sub(equity).Div(start).Mul(decimal.NewFromInt(100))
	if dd.IsNegative() {
		return 0
	}
	return dd.InexactFloat64()
}
