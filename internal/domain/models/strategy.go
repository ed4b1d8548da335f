package models

// Action is the trade direction produced by the signal engine.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Regime is the classified market condition.
type Regime string

const (
	RegimeTrendUp        Regime = "TREND_UP"
	RegimeTrendDown      Regime = "TREND_DOWN"
	RegimeRange          Regime = "RANGE"
	RegimeHighVolatility Regime = "HIGH_VOLATILITY"
	RegimeUnknown        Regime = "UNKNOWN"
)

// StrategyDecision is the immutable output of one evaluation.
type StrategyDecision struct {
	Action           Action   `json:"action"`
	Strategy         string   `json:"strategy"`
	Regime           Regime   `json:"regime"`
	Confidence       float64  `json:"confidence"`
	RiskPerTradePct  float64  `json:"risk_per_trade_pct"`
	MaxPositions     int      `json:"max_positions"`
	VolatilityPct    float64  `json:"volatility_pct"`
	TrendStrengthPct float64  `json:"trend_strength_pct"`
	Reasons          []string `json:"reasons"`
}
