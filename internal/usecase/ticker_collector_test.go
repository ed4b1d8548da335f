package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"BtcTrader/internal/domain/models"
	mid "BtcTrader/internal/middleware"
	"BtcTrader/internal/service/cache"
	pkgkafka "BtcTrader/pkg/kafka"
)

type fakeStream struct {
	mu         sync.Mutex
	connected  bool
	subs       [][]string
	reconnects int
	feeds      chan chan *models.Ticker
	errs       chan chan error
}

func newFakeStream() *fakeStream {
	return &fakeStream{feeds: make(chan chan *models.Ticker, 4), errs: make(chan chan error, 4)}
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Subscribe(_ context.Context, markets []string) error {
	s.mu.Lock()
	s.subs = append(s.subs, slices.Clone(markets))
	s.mu.Unlock()
	return nil
}

// Read hands out a fresh pair of channels per connection; the test drives them.
func (s *fakeStream) Read(context.Context) (<-chan *models.Ticker, <-chan error) {
	tr := make(chan *models.Ticker, 8)
	er := make(chan error, 1)
	s.feeds <- tr
	s.errs <- er
	return tr, er
}

func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

type fakeUniverse struct {
	mu      sync.Mutex
	markets []string
}

func (u *fakeUniverse) TopMarketsByVolume(context.Context, int) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return slices.Clone(u.markets), nil
}

type fakeForwarder struct {
	mu   sync.Mutex
	msgs []pkgkafka.Message
}

func (f *fakeForwarder) PublishBatch(_ context.Context, _ string, msgs []pkgkafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeForwarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCollectorFeedsCacheAndReconnects(t *testing.T) {
	stream := newFakeStream()
	universe := &fakeUniverse{markets: []string{"KRW-BTC", "KRW-ETH"}}
	prices := cache.NewTickerCache()
	metrics := newFakeMetrics()
	pipe := mid.NewTickerPipeline(prices, metrics, mid.WithMaxUpdatesPerSecond(0))
	fwd := &fakeForwarder{}

	c := NewTickerCollector(stream, universe, pipe, fwd, metrics, nil, CollectorConfig{
		TopN:            2,
		RefreshInterval: time.Hour,
		ForwardTopic:    "btctrader.tickers",
		ForwardInterval: 10 * time.Millisecond,
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Shutdown(context.Background())

	if got := c.Markets(); len(got) != 2 {
		t.Fatalf("subscribed markets = %v", got)
	}

	feed := <-stream.feeds
	errs := <-stream.errs
	feed <- &models.Ticker{Market: "KRW-BTC", TradePrice: 50_000, Timestamp: time.Now()}
	feed <- &models.Ticker{Market: "KRW-ETH", TradePrice: 0, Timestamp: time.Now()}

	waitFor(t, "ticker in cache", func() bool {
		_, ok := prices.Get("KRW-BTC")
		return ok
	})
	waitFor(t, "forwarded ticker", func() bool { return fwd.count() == 1 })

	fwd.mu.Lock()
	first := fwd.msgs[0]
	fwd.mu.Unlock()
	if string(first.Key) != "KRW-BTC" {
		t.Fatalf("forward key = %q", first.Key)
	}
	var forwarded models.Ticker
	b, _ := json.Marshal(first.Value)
	if err := json.Unmarshal(b, &forwarded); err != nil || forwarded.Market != "KRW-BTC" {
		t.Fatalf("forwarded payload = %s", b)
	}

	errs <- errors.New("connection reset")
	waitFor(t, "reconnect", func() bool { return stream.reconnectCount() == 1 })

	feed2 := <-stream.feeds
	<-stream.errs
	feed2 <- &models.Ticker{Market: "KRW-ETH", TradePrice: 3_000, Timestamp: time.Now()}
	waitFor(t, "ticker after reconnect", func() bool {
		_, ok := prices.Get("KRW-ETH")
		return ok
	})
	if metrics.errorCount("stream") != 1 {
		t.Fatalf("stream error not counted")
	}
}

func TestCollectorRefreshResubscribesOnChange(t *testing.T) {
	stream := newFakeStream()
	universe := &fakeUniverse{markets: []string{"KRW-BTC", "KRW-ETH"}}
	pipe := mid.NewTickerPipeline(cache.NewTickerCache(), newFakeMetrics())
	c := NewTickerCollector(stream, universe, pipe, nil, newFakeMetrics(), nil, CollectorConfig{RefreshInterval: time.Hour})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Shutdown(context.Background())

	universe.mu.Lock()
	universe.markets = []string{"KRW-ETH", "KRW-BTC"}
	universe.mu.Unlock()
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	stream.mu.Lock()
	subs := len(stream.subs)
	stream.mu.Unlock()
	if subs != 1 {
		t.Fatalf("same set in another order should not resubscribe, subs=%d", subs)
	}

	universe.mu.Lock()
	universe.markets = []string{"KRW-XRP"}
	universe.mu.Unlock()
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := c.Markets(); len(got) != 1 || got[0] != "KRW-XRP" {
		t.Fatalf("markets after refresh = %v", got)
	}
}

func TestKafkaTickersHandler(t *testing.T) {
	prices := cache.NewTickerCache()
	metrics := newFakeMetrics()
	h := NewKafkaTickersHandler("btctrader.tickers", mid.NewTickerPipeline(prices, metrics), metrics)
	if h.Topic() != "btctrader.tickers" {
		t.Fatalf("topic = %s", h.Topic())
	}

	b, _ := json.Marshal(models.Ticker{Market: "KRW-BTC", TradePrice: 50_000, Timestamp: time.Now()})
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, ok := prices.Get("KRW-BTC"); !ok {
		t.Fatalf("ticker not cached")
	}

	if err := h.Handle(context.Background(), []byte("{not json")); err != nil {
		t.Fatalf("malformed payload should be dropped, got %v", err)
	}
	if metrics.errorCount("consumer_unmarshal") != 1 {
		t.Fatalf("unmarshal error not counted")
	}
	invalid, _ := json.Marshal(models.Ticker{Market: "KRW-ETH"})
	if err := h.Handle(context.Background(), invalid); err != nil {
		t.Fatalf("invalid ticker should be dropped, got %v", err)
	}
}
