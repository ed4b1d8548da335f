package models

import "time"

// SelectionMode decides how a bot picks the markets it trades.
type SelectionMode string

const (
	SelectionAuto   SelectionMode = "AUTO"
	SelectionManual SelectionMode = "MANUAL"
)

// BotConfig is owned by the configuration store and read-only for the engine.
// Mode fields are raw strings; unknown values resolve to safe defaults downstream.
type BotConfig struct {
	ID                   string            `yaml:"id" json:"id"`
	UserID               string            `yaml:"user_id" json:"user_id"`
	SelectionMode        SelectionMode     `yaml:"selection_mode" json:"selection_mode"`
	StrategyMode         string            `yaml:"strategy_mode" json:"strategy_mode"`
	RiskPreset           string            `yaml:"risk_preset" json:"risk_preset"`
	OperationMode        string            `yaml:"operation_mode" json:"operation_mode"`
	MaxPositions         int               `yaml:"max_positions" json:"max_positions"`
	MaxDailyDrawdownPct  float64           `yaml:"max_daily_drawdown_pct" json:"max_daily_drawdown_pct"`
	MaxWeeklyDrawdownPct float64           `yaml:"max_weekly_drawdown_pct" json:"max_weekly_drawdown_pct"`
	AutoPickTopN         int               `yaml:"auto_pick_top_n" json:"auto_pick_top_n"`
	ManualMarkets        string            `yaml:"manual_markets" json:"manual_markets"`
	Overrides            StrategyOverrides `yaml:"overrides" json:"overrides"`
	CreatedAt            time.Time         `yaml:"created_at" json:"created_at"`
}

// StrategyOverrides holds optional per-bot parameter overrides. Nil means "use profile".
type StrategyOverrides struct {
	EmaFast         *int     `yaml:"ema_fast" json:"ema_fast,omitempty"`
	EmaSlow         *int     `yaml:"ema_slow" json:"ema_slow,omitempty"`
	RsiPeriod       *int     `yaml:"rsi_period" json:"rsi_period,omitempty"`
	AtrPeriod       *int     `yaml:"atr_period" json:"atr_period,omitempty"`
	BbPeriod        *int     `yaml:"bb_period" json:"bb_period,omitempty"`
	BbStdDev        *float64 `yaml:"bb_std_dev" json:"bb_std_dev,omitempty"`
	TrendThreshold  *float64 `yaml:"trend_threshold" json:"trend_threshold,omitempty"`
	VolatilityHigh  *float64 `yaml:"volatility_high" json:"volatility_high,omitempty"`
	TrendRsiBuyMin  *int     `yaml:"trend_rsi_buy_min" json:"trend_rsi_buy_min,omitempty"`
	TrendRsiSellMax *int     `yaml:"trend_rsi_sell_max" json:"trend_rsi_sell_max,omitempty"`
	RangeRsiBuyMax  *int     `yaml:"range_rsi_buy_max" json:"range_rsi_buy_max,omitempty"`
	RangeRsiSellMin *int     `yaml:"range_rsi_sell_min" json:"range_rsi_sell_min,omitempty"`
}

// DefaultBotConfig returns the defaults applied to a freshly created bot.
func DefaultBotConfig(userID string) BotConfig {
	return BotConfig{
		UserID:               userID,
		SelectionMode:        SelectionAuto,
		StrategyMode:         "AUTO",
		RiskPreset:           "STANDARD",
		OperationMode:        "STABLE",
		MaxPositions:         3,
		MaxDailyDrawdownPct:  3.0,
		MaxWeeklyDrawdownPct: 8.0,
		AutoPickTopN:         5,
	}
}
