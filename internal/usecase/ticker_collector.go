package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"BtcTrader/internal/domain/models"
	drepo "BtcTrader/internal/domain/repository"
	mid "BtcTrader/internal/middleware"
	pkgkafka "BtcTrader/pkg/kafka"
	applogger "BtcTrader/pkg/logger"
)

var errStreamClosed = errors.New("ticker stream closed")

// MarketUniverse picks the markets to subscribe to.
type MarketUniverse interface {
	TopMarketsByVolume(ctx context.Context, n int) ([]string, error)
}

// TickerForwarder republishes accepted tickers, typically to Kafka.
type TickerForwarder interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// CollectorConfig controls the ticker collector.
type CollectorConfig struct {
	TopN            int
	RefreshInterval time.Duration
	ForwardTopic    string
	ForwardInterval time.Duration
}

// TickerCollector keeps the ticker stream subscribed to the most traded
// markets and feeds every update through the pipeline.
type TickerCollector struct {
	stream   drepo.TickerStream
	universe MarketUniverse
	pipe     *mid.TickerPipeline
	forward  TickerForwarder
	metrics  drepo.Metrics
	log      *applogger.Logger
	cfg      CollectorConfig

	mu      sync.Mutex
	markets []string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewTickerCollector creates a collector. forward may be nil.
func NewTickerCollector(stream drepo.TickerStream, universe MarketUniverse, pipe *mid.TickerPipeline,
	forward TickerForwarder, metrics drepo.Metrics, log *applogger.Logger, cfg CollectorConfig) *TickerCollector {
	if cfg.TopN <= 0 {
		cfg.TopN = 30
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	if cfg.ForwardInterval <= 0 {
		cfg.ForwardInterval = time.Second
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &TickerCollector{
		stream:   stream,
		universe: universe,
		pipe:     pipe,
		forward:  forward,
		metrics:  metrics,
		log:      log,
		cfg:      cfg,
	}
}

// IsConnected returns true if the ticker stream is connected.
func (c *TickerCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Markets returns the current subscription set.
func (c *TickerCollector) Markets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.markets)
}

// Start connects, subscribes and starts the read and refresh loops.
func (c *TickerCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	markets, err := c.universe.TopMarketsByVolume(ctx, c.cfg.TopN)
	if err != nil {
		_ = c.stream.Close()
		return err
	}
	if err := c.subscribe(ctx, markets); err != nil {
		_ = c.stream.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.pipe.Start(runCtx)
	c.wg.Add(2)
	go c.readLoop(runCtx)
	go c.refreshLoop(runCtx)
	c.log.Info("ticker collector started", applogger.Int("markets", len(markets)))
	return nil
}

func (c *TickerCollector) subscribe(ctx context.Context, markets []string) error {
	if err := c.stream.Subscribe(ctx, markets); err != nil {
		return err
	}
	c.mu.Lock()
	c.markets = slices.Clone(markets)
	c.mu.Unlock()
	return nil
}

func (c *TickerCollector) readLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		trCh, errCh := c.stream.Read(ctx)
		err := c.consume(ctx, trCh, errCh)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.log.Warn("ticker stream interrupted, reconnecting", applogger.Error(err))
		for {
			rerr := c.stream.Reconnect(ctx)
			if rerr == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("stream_reconnect")
			c.log.Warn("ticker stream reconnect failed", applogger.Error(rerr))
		}
	}
}

// consume drains one connection's channels. It returns when the connection
// fails or ctx ends.
func (c *TickerCollector) consume(ctx context.Context, trCh <-chan *models.Ticker, errCh <-chan error) error {
	flush := time.NewTicker(c.cfg.ForwardInterval)
	defer flush.Stop()
	var pending []pkgkafka.Message
	send := func() {
		if c.forward == nil || len(pending) == 0 {
			return
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := c.forward.PublishBatch(fctx, c.cfg.ForwardTopic, pending); err != nil {
			c.metrics.RecordError("ticker_forward")
			c.log.Warn("ticker forward failed", applogger.Int("messages", len(pending)), applogger.Error(err))
		}
		cancel()
		pending = pending[:0]
	}
	defer send()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return err
			}
			if !ok {
				errCh = nil
			}
		case t, ok := <-trCh:
			if !ok {
				return errStreamClosed
			}
			if t == nil {
				continue
			}
			accepted, err := c.pipe.Process(ctx, t)
			if err != nil || !accepted {
				continue
			}
			if c.forward != nil {
				pending = append(pending, pkgkafka.Message{Key: []byte(t.Market), Value: *t})
			}
		case <-flush.C:
			send()
		}
	}
}

func (c *TickerCollector) refreshLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.metrics.RecordError("stream_refresh")
				c.log.Warn("ticker subscription refresh failed", applogger.Error(err))
			}
		}
	}
}

// Refresh recomputes the top markets and resubscribes when the set changed.
func (c *TickerCollector) Refresh(ctx context.Context) error {
	markets, err := c.universe.TopMarketsByVolume(ctx, c.cfg.TopN)
	if err != nil {
		return err
	}
	if sameSet(markets, c.Markets()) {
		return nil
	}
	c.log.Info("ticker subscription changed", applogger.Int("markets", len(markets)))
	return c.subscribe(ctx, markets)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// Shutdown stops the loops and pipeline and closes the stream.
func (c *TickerCollector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	err := c.stream.Close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.pipe.Stop()
	return err
}
