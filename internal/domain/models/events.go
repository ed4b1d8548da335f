package models

import "time"

// DecisionEvent is published for every evaluated (bot, market) pair.
type DecisionEvent struct {
	EventID   string           `json:"event_id"`
	UserID    string           `json:"user_id"`
	BotID     string           `json:"bot_id"`
	Market    string           `json:"market"`
	Price     float64          `json:"price"`
	Decision  StrategyDecision `json:"decision"`
	Timestamp time.Time        `json:"timestamp"`
}

// FillEvent is published when the paper ledger executes a trade.
type FillEvent struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	BotID     string    `json:"bot_id"`
	Execution Execution `json:"execution"`
	Timestamp time.Time `json:"timestamp"`
}
