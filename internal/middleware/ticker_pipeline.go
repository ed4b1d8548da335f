package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"BtcTrader/internal/domain/models"
	domrepo "BtcTrader/internal/domain/repository"
	"BtcTrader/internal/service/ratelimit"
	applogger "BtcTrader/pkg/logger"
)

// TickerSink receives every accepted ticker.
type TickerSink interface {
	Put(t models.Ticker)
}

// TickerArchive persists accepted tickers in batches.
type TickerArchive interface {
	StoreBatch(ctx context.Context, tickers []models.Ticker) error
}

// TickerPipeline sits between the ticker feeds (WS stream, Kafka) and the
// ticker cache. It validates, throttles per market and optionally archives.
type TickerPipeline struct {
	sink    TickerSink
	metrics domrepo.Metrics
	log     *applogger.Logger
	limiter *ratelimit.KeyedLimiter

	archive       TickerArchive
	bufCh         chan models.Ticker
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type PipelineOption func(*TickerPipeline)

// WithMaxUpdatesPerSecond caps accepted updates per market. Zero disables the cap.
func WithMaxUpdatesPerSecond(n float64) PipelineOption {
	return func(p *TickerPipeline) {
		if n > 0 {
			p.limiter = ratelimit.New(n, 1)
		} else {
			p.limiter = nil
		}
	}
}

// WithArchive enables batched archiving through a.
func WithArchive(a TickerArchive, bufferSize, batchSize int, flushInterval time.Duration) PipelineOption {
	return func(p *TickerPipeline) {
		p.archive = a
		if bufferSize <= 0 {
			bufferSize = 1024
		}
		if batchSize <= 0 {
			batchSize = 500
		}
		if flushInterval <= 0 {
			flushInterval = 2 * time.Second
		}
		p.bufCh = make(chan models.Ticker, bufferSize)
		p.batchSize = batchSize
		p.flushInterval = flushInterval
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *TickerPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewTickerPipeline(sink TickerSink, metrics domrepo.Metrics, opts ...PipelineOption) *TickerPipeline {
	p := &TickerPipeline{
		sink:    sink,
		metrics: metrics,
		log:     applogger.Nop(),
		limiter: ratelimit.New(5, 1),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ErrInvalidTicker is returned by Process for malformed input.
var ErrInvalidTicker = errors.New("invalid ticker")

// Process validates t and hands it to the sink. Throttled updates are dropped
// without error.
func (p *TickerPipeline) Process(ctx context.Context, t *models.Ticker) (bool, error) {
	start := time.Now()
	if err := validateTicker(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return false, err
	}
	if p.limiter != nil && !p.limiter.Allow(t.Market) {
		return false, nil
	}

	p.sink.Put(*t)
	p.metrics.RecordLastPrice(t.Market, t.TradePrice)

	if p.bufCh != nil {
		select {
		case p.bufCh <- *t:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return true, nil
}

// Start launches the archive flusher. It is a no-op without an archive.
func (p *TickerPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.archive == nil {
		return
	}
	p.started = true
	p.wg.Add(1)
	go p.flushLoop(ctx)
}

// Stop flushes what is buffered and waits for the flusher.
func (p *TickerPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	p.wg.Wait()
}

func (p *TickerPipeline) flushLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]models.Ticker, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		err := p.archive.StoreBatch(fctx, batch)
		cancel()
		if err != nil {
			p.metrics.RecordError("pipeline_archive")
			p.log.Warn("ticker archive flush failed", applogger.Int("rows", len(batch)), applogger.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case t := <-p.bufCh:
			batch = append(batch, t)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-p.stopCh:
			for {
				select {
				case t := <-p.bufCh:
					batch = append(batch, t)
				default:
					flush()
					return
				}
			}
		case <-ctx.Done():
			flush()
			return
		}
	}
}

func validateTicker(t *models.Ticker) error {
	if t == nil {
		return fmt.Errorf("%w: nil", ErrInvalidTicker)
	}
	if t.Market == "" {
		return fmt.Errorf("%w: market empty", ErrInvalidTicker)
	}
	if t.TradePrice <= 0 {
		return fmt.Errorf("%w: non-positive price for %s", ErrInvalidTicker, t.Market)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp for %s", ErrInvalidTicker, t.Market)
	}
	if t.AccTradeVolume24h < 0 || t.AccTradePrice24h < 0 {
		return fmt.Errorf("%w: negative volume for %s", ErrInvalidTicker, t.Market)
	}
	return nil
}
