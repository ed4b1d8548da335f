package models

import "time"

// PaperPositionView is the read model of one open position.
type PaperPositionView struct {
	Market           string  `json:"market"`
	Quantity         float64 `json:"quantity"`
	EntryPrice       float64 `json:"entry_price"`
	LastPrice        float64 `json:"last_price"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
	UnrealizedPnlPct float64 `json:"unrealized_pnl_pct"`
}

// PaperSummary is the read model of one paper account.
type PaperSummary struct {
	UserID        string              `json:"user_id"`
	CashBalance   float64             `json:"cash_balance"`
	Equity        float64             `json:"equity"`
	RealizedPnl   float64             `json:"realized_pnl"`
	UnrealizedPnl float64             `json:"unrealized_pnl"`
	Positions     []PaperPositionView `json:"positions"`
}

// PeriodType buckets performance snapshots.
type PeriodType string

const (
	PeriodDaily  PeriodType = "DAILY"
	PeriodWeekly PeriodType = "WEEKLY"
)

// PerformanceSnapshot is one equity value per (user, period type, period date).
type PerformanceSnapshot struct {
	UserID     string     `json:"user_id"`
	PeriodType PeriodType `json:"period_type"`
	PeriodDate time.Time  `json:"period_date"`
	Equity     float64    `json:"equity"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// PerformancePoint is one labelled point of a performance series.
type PerformancePoint struct {
	Label     string  `json:"label"`
	Equity    float64 `json:"equity"`
	ReturnPct float64 `json:"return_pct"`
}

// PaperPerformance is the derived performance view of one account.
type PaperPerformance struct {
	TotalReturnPct float64            `json:"total_return_pct"`
	MaxDrawdownPct float64            `json:"max_drawdown_pct"`
	Daily          []PerformancePoint `json:"daily"`
	Weekly         []PerformancePoint `json:"weekly"`
}

// ExecutionStatus reports what ApplySignal did with a decision.
type ExecutionStatus string

const (
	ExecFilled   ExecutionStatus = "FILLED"
	ExecRejected ExecutionStatus = "REJECTED"
	ExecSkipped  ExecutionStatus = "SKIPPED"
)

// Execution is the outcome of applying one decision. Rejections are not errors.
type Execution struct {
	Status      ExecutionStatus `json:"status"`
	Side        Action          `json:"side"`
	Market      string          `json:"market"`
	Price       float64         `json:"price"`
	Quantity    float64         `json:"quantity"`
	RealizedPnl float64         `json:"realized_pnl"`
	Reason      string          `json:"reason,omitempty"`
}
