package di

import (
	"context"
	"fmt"
	"time"

	"BtcTrader/internal/domain/repository"
	"BtcTrader/internal/handler/api"
	mid "BtcTrader/internal/middleware"
	internalrepo "BtcTrader/internal/repository"
	icache "BtcTrader/internal/service/cache"
	apimetrics "BtcTrader/internal/service/metrics"
	"BtcTrader/internal/service/ratelimit"
	"BtcTrader/internal/service/upbit"
	"BtcTrader/internal/services/paper"
	"BtcTrader/internal/services/selector"
	"BtcTrader/internal/services/strategy"
	"BtcTrader/internal/usecase"
	pkgcache "BtcTrader/pkg/cache"
	pkgch "BtcTrader/pkg/clickhouse"
	"BtcTrader/pkg/config"
	xhttp "BtcTrader/pkg/http"
	pkgkafka "BtcTrader/pkg/kafka"
	applogger "BtcTrader/pkg/logger"
	"BtcTrader/pkg/metrics"
	"BtcTrader/pkg/postgres"
	"BtcTrader/pkg/server"

	"github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	apimetrics.Register()
	return metrics.New()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
// With log collection on, aggregated error logs are shipped through it.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(cfg.Environment != "production"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Log.Collect {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.FlushInterval,
			CountThreshold: cfg.Log.Threshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
	}
	cleanup := func() {
		if cfg.Log.Collect {
			l.RemoveCollector()
		}
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideClickHouseClient connects to ClickHouse and prepares the schema, or
// returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	db := client.Database()
	stmts := append(internalrepo.PerformanceSchema(db), internalrepo.TickerSchema(db, cfg.ClickHouse.CandleTable)...)
	if err := client.Bootstrap(ctx, stmts...); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", db))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvidePostgresClient opens the bot config pool, or returns nil when
// bots come from the static config.
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	if !cfg.Postgres.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := postgres.NewClient(ctx, cfg.Postgres.DSN, postgres.WithMaxConns(cfg.Postgres.MaxConns))
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// ProvideCache returns a Redis-backed layered cache when Redis is enabled and
// an in-process cache otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (pkgcache.Service, func(), error) {
	var svc pkgcache.Service
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := pkgcache.NewRedisCache(ctx,
			pkgcache.WithRedisAddr(cfg.Redis.Addr),
			pkgcache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
			pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		svc = pkgcache.NewLayeredCache(rc, 1000, cfg.Redis.L1TTL)
	} else {
		svc = pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(1000))
	}
	cleanup := func() {
		if err := svc.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}
	return svc, cleanup, nil
}

// ProvideThrottler bounds outbound exchange calls.
func ProvideThrottler(cfg *config.Config, m repository.Metrics) *ratelimit.Throttler {
	return ratelimit.NewThrottler(ratelimit.Config{
		Enabled:      cfg.RateLimit.Enabled,
		MinInterval:  cfg.RateLimit.MinInterval,
		MaxPerSecond: cfg.RateLimit.MaxPerSecond,
		MaxPerMinute: cfg.RateLimit.MaxPerMinute,
	}, ratelimit.WithWaitObserver(func(d time.Duration) { m.RecordThrottleWait(d.Seconds()) }))
}

// ProvideUpbitClient creates the exchange REST client.
func ProvideUpbitClient(cfg *config.Config, t *ratelimit.Throttler, l *applogger.Logger) *upbit.Client {
	return upbit.NewClient(cfg.Exchange.BaseURL,
		xhttp.NewClient(xhttp.WithTimeout(cfg.Exchange.Timeout)),
		t,
		l.With(applogger.String("component", "upbit")),
	)
}

// ProvideTickerStream creates the exchange WebSocket stream.
func ProvideTickerStream(cfg *config.Config, l *applogger.Logger) *upbit.Stream {
	ws := cfg.Exchange.WS
	return upbit.NewStream(ws.URL, ws.ReconnectDelay, ws.PingInterval, l.With(applogger.String("component", "upbit_ws")))
}

func ProvideTickerCache() *icache.TickerCache {
	return icache.NewTickerCache()
}

// ProvideTickerPipeline validates and throttles tickers into the cache. With
// ClickHouse enabled accepted tickers are archived too.
func ProvideTickerPipeline(cfg *config.Config, tc *icache.TickerCache, ch *pkgch.Client, m repository.Metrics, l *applogger.Logger) *mid.TickerPipeline {
	opts := []mid.PipelineOption{
		mid.WithMaxUpdatesPerSecond(cfg.Pipeline.MaxUpdatesPerSecond),
		mid.WithPipelineLogger(l),
	}
	if ch != nil {
		store := internalrepo.NewCHTickerStore(ch, cfg.ClickHouse.Database)
		opts = append(opts, mid.WithArchive(store, cfg.Pipeline.BufferSize, 500, 2*time.Second))
	}
	return mid.NewTickerPipeline(tc, m, opts...)
}

// ProvideCandleSource reads candles from the exchange, or from the ClickHouse
// one minute view when engine.candle_source is "clickhouse".
func ProvideCandleSource(cfg *config.Config, client *upbit.Client, ch *pkgch.Client, l *applogger.Logger) repository.CandleSource {
	if cfg.Engine.CandleSource == "clickhouse" && ch != nil {
		feed := internalrepo.NewCHCandleFeed(ch, cfg.ClickHouse.Database, cfg.ClickHouse.CandleTable)
		feed.SetLogger(l)
		return feed
	}
	return upbit.NewCandleFeed(client, repository.CandleUnit(cfg.Engine.CandleUnit))
}

func ProvideMarketData(cfg *config.Config, client *upbit.Client, candles repository.CandleSource,
	tc *icache.TickerCache, c pkgcache.Service, l *applogger.Logger) *usecase.MarketData {
	return usecase.NewMarketData(client, candles, tc, selector.New(), c, usecase.MarketDataConfig{
		Quote:             cfg.Engine.QuoteCurrency,
		CandleCount:       cfg.Engine.CandleCount,
		PriceMaxAge:       cfg.Engine.PriceMaxAge,
		RecommendationTTL: cfg.Exchange.RecommendationTTL,
	}, l)
}

// ProvideBotConfigSource reads bots from Postgres when enabled, else from the config file.
func ProvideBotConfigSource(cfg *config.Config, pg *postgres.Client, l *applogger.Logger) repository.BotConfigSource {
	if pg != nil {
		return internalrepo.NewPGBotConfigSource(pg.Pool(), cfg.Postgres.Table, cfg.Postgres.QueryTimeout, l)
	}
	return internalrepo.NewStaticBotConfigSource(cfg.Bots)
}

// ProvidePerformanceStore keeps snapshots in ClickHouse when enabled, else in memory.
func ProvidePerformanceStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.PerformanceStore {
	if ch != nil {
		store := internalrepo.NewCHPerformanceStore(ch, cfg.ClickHouse.Database)
		store.SetLogger(l)
		return store
	}
	return internalrepo.NewMemoryPerformanceStore()
}

// ProvideLedger creates the paper ledger. Day and week boundaries follow engine.timezone.
func ProvideLedger(cfg *config.Config, store repository.PerformanceStore) (*paper.Ledger, error) {
	loc, err := time.LoadLocation(cfg.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine timezone: %w", err)
	}
	perf := paper.NewPerformanceLedger(store, loc, time.Now)
	return paper.NewLedger(cfg.Paper.InitialCash, paper.WithLocation(loc), paper.WithPerformance(perf)), nil
}

func ProvideBroadcaster() *paper.Broadcaster {
	return paper.NewBroadcaster(16)
}

// ProvideEventPublisher publishes decisions and fills to Kafka when enabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topics.Events)
}

func ProvideStrategyScheduler(
	cfg *config.Config,
	configs repository.BotConfigSource,
	market *usecase.MarketData,
	ledger *paper.Ledger,
	publisher repository.EventPublisher,
	broadcaster *paper.Broadcaster,
	locker pkgcache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.StrategyScheduler {
	return usecase.NewStrategyScheduler(configs, market, strategy.NewEngine(), ledger, publisher, broadcaster, locker, m,
		l.With(applogger.String("component", "scheduler")),
		usecase.SchedulerConfig{
			Enabled:     cfg.Engine.Enabled,
			Interval:    cfg.Engine.Interval,
			TickTimeout: cfg.Engine.TickTimeout,
			TickLock:    cfg.Engine.TickLock,
		})
}

// ProvideTickerCollector keeps the WS subscription on the top markets. Accepted
// tickers are republished to Kafka when a producer exists.
func ProvideTickerCollector(
	cfg *config.Config,
	stream *upbit.Stream,
	market *usecase.MarketData,
	pipe *mid.TickerPipeline,
	producer *pkgkafka.Producer,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.TickerCollector {
	var forward usecase.TickerForwarder
	if producer != nil {
		forward = producer
	}
	return usecase.NewTickerCollector(stream, market, pipe, forward, m,
		l.With(applogger.String("component", "collector")),
		usecase.CollectorConfig{
			TopN:            cfg.Exchange.WS.TopN,
			RefreshInterval: cfg.Exchange.WS.RefreshInterval,
			ForwardTopic:    cfg.Kafka.Topics.Tickers,
		})
}

// ProvideKafkaConsumer feeds tickers published by other instances into the
// local pipeline. Nil unless kafka.consumer.enabled.
func ProvideKafkaConsumer(cfg *config.Config, pipe *mid.TickerPipeline, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, func(), error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, func() {}, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLatest(),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewKafkaTickersHandler(cfg.Kafka.Topics.Tickers, pipe, m))
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km kafka.Message, _ []byte, err error) {
			m.RecordError("consumer_handle")
			l.Warn("kafka message failed",
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int("offset", int(km.Offset)),
				applogger.Error(err),
			)
		},
	}))

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	return consumer, cleanup, nil
}

// ProvideHTTPHandler assembles every API handler plus the health checks of
// the enabled dependencies.
func ProvideHTTPHandler(
	ledger *paper.Ledger,
	broadcaster *paper.Broadcaster,
	market *usecase.MarketData,
	collector *usecase.TickerCollector,
	ch *pkgch.Client,
	pg *postgres.Client,
	l *applogger.Logger,
) xhttp.Handler {
	checks := map[string]api.HealthCheck{
		"ticker_stream": func(context.Context) error {
			if !collector.IsConnected() {
				return fmt.Errorf("not connected")
			}
			return nil
		},
	}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if pg != nil {
		checks["postgres"] = pg.Health
	}
	return xhttp.Handlers{
		api.NewHealthHandler(checks),
		api.NewPaperHandler(l, ledger, broadcaster),
		api.NewMarketHandler(l, market),
		api.NewStrategyHandler(),
	}
}

// ProvideHTTPServer creates the echo server with a per client IP rate limit.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l.With(applogger.String("component", "http"))),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if cfg.Server.RateLimit.Enabled {
		opts = append(opts, xhttp.WithRateLimiter(ratelimit.New(cfg.Server.RateLimit.PerSecond, cfg.Server.RateLimit.Burst)))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	scheduler *usecase.StrategyScheduler,
	collector *usecase.TickerCollector,
	consumer *pkgkafka.Consumer,
	publisher repository.EventPublisher,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, l, scheduler, collector, consumer, publisher, httpServer)
}
