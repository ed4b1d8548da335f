//go:build wireinject
// +build wireinject

package di

import (
	"BtcTrader/pkg/config"
	"BtcTrader/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvidePostgresClient,
		ProvideCache,

		// Exchange access and market data
		ProvideThrottler,
		ProvideUpbitClient,
		ProvideTickerStream,
		ProvideTickerCache,
		ProvideTickerPipeline,
		ProvideCandleSource,
		ProvideMarketData,

		// Paper trading
		ProvideBotConfigSource,
		ProvidePerformanceStore,
		ProvideLedger,
		ProvideBroadcaster,
		ProvideEventPublisher,

		// Use cases
		ProvideStrategyScheduler,
		ProvideTickerCollector,
		ProvideKafkaConsumer,

		// Transport
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
