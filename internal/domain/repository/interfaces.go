package repository

import (
	"context"

	"BtcTrader/internal/domain/models"
)

// ExchangeClient is the synchronous market data source.
type ExchangeClient interface {
	GetMarkets(ctx context.Context) ([]models.MarketInfo, error)
	GetTickers(ctx context.Context, markets []string) ([]models.Ticker, error)
	GetMinuteCandles(ctx context.Context, market string, unit CandleUnit, count int) ([]models.Candle, error)
}

// CandleSource returns the latest n candles of a market, ascending by time.
type CandleSource interface {
	LatestCandles(ctx context.Context, market string, n int) ([]models.Candle, error)
}

// TickerStream is a push feed of ticker updates.
type TickerStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, markets []string) error
	Read(ctx context.Context) (<-chan *models.Ticker, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// BotConfigSource lists the latest bot configuration of every owner.
type BotConfigSource interface {
	LatestPerOwner(ctx context.Context) ([]models.BotConfig, error)
}

// PerformanceStore persists equity snapshots. Upsert overwrites the same
// (user, period type, period date); List returns the last limit rows ascending.
type PerformanceStore interface {
	Upsert(ctx context.Context, s models.PerformanceSnapshot) error
	List(ctx context.Context, userID string, period models.PeriodType, limit int) ([]models.PerformanceSnapshot, error)
}

// EventPublisher fans decisions and fills out to downstream consumers.
type EventPublisher interface {
	PublishDecision(ctx context.Context, ev models.DecisionEvent) error
	PublishFill(ctx context.Context, ev models.FillEvent) error
	Close() error
}

type Metrics interface {
	RecordTick(seconds float64)
	RecordDecision(action, regime string)
	RecordFill(side string)
	RecordRejected(reason string)
	RecordEquity(userID string, equity float64)
	RecordThrottleWait(seconds float64)
	RecordError(kind string)
	RecordLastPrice(market string, price float64)
	RecordLatency(op string, seconds float64)
}
