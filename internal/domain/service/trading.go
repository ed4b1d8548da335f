package service

import (
	"context"

	"BtcTrader/internal/domain/models"
)

// SignalEvaluator turns a bot config and candles into a decision.
type SignalEvaluator interface {
	Evaluate(cfg models.BotConfig, candles []models.Candle) models.StrategyDecision
}

// MarketRanker scores snapshots and returns the best topN.
type MarketRanker interface {
	TopN(snapshots []models.MarketSnapshot, topN int) []models.CoinScore
}

// PaperLedger is the per-user simulated account store.
type PaperLedger interface {
	ApplySignal(cfg models.BotConfig, market string, price float64, d models.StrategyDecision) models.Execution
	UpdateLastPrice(userID, market string, price float64)
	RecordEquity(ctx context.Context, userID string) error
	Summary(userID string) models.PaperSummary
}
