package upbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"BtcTrader/internal/domain/models"
	drepo "BtcTrader/internal/domain/repository"
	"BtcTrader/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var errNotConnected = errors.New("upbit ws not connected")

// Stream implements repository.TickerStream over the exchange WebSocket.
type Stream struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *logger.Logger

	mu        sync.Mutex // guards conn and markets, serialises writes
	conn      *websocket.Conn
	markets   []string
	connected atomic.Bool
}

var _ drepo.TickerStream = (*Stream)(nil)

func NewStream(url string, reconnectDelay, pingInterval time.Duration, lgr *logger.Logger) *Stream {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Stream{url: url, reconnectDelay: reconnectDelay, pingInterval: pingInterval, logger: lgr}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("upbit ws connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.connected.Store(true)
	s.logger.Info("upbit ws connected", logger.String("url", s.url))
	return nil
}

type ticket struct {
	Ticket string `json:"ticket"`
}

type subscription struct {
	Type  string   `json:"type"`
	Codes []string `json:"codes"`
}

// Subscribe replaces the subscription with markets. One ticket per request.
func (s *Stream) Subscribe(_ context.Context, markets []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected.Load() {
		return errNotConnected
	}
	msg := []interface{}{
		ticket{Ticket: "btctrader-" + uuid.NewString()},
		subscription{Type: "ticker", Codes: markets},
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.markets = append(s.markets[:0], markets...)
	s.logger.Info("upbit ws subscribed", logger.Int("markets", len(markets)))
	return nil
}

// Markets returns the current subscription set.
func (s *Stream) Markets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.markets...)
}

// Read streams tickers until ctx ends or the connection fails. Malformed
// frames are skipped; a full output buffer drops the update.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Ticker, <-chan error) {
	tickers := make(chan *models.Ticker, 1024)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				current := s.conn == conn && conn != nil
				if current {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				s.mu.Unlock()
				if !current {
					return
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(tickers)
		defer close(errs)
		if conn == nil {
			errs <- errNotConnected
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("upbit ws read: %w", err)
				}
				return
			}
			var d tickerDTO
			if err := json.Unmarshal(b, &d); err != nil {
				continue
			}
			t := d.toModel()
			if t.Market == "" {
				continue
			}
			select {
			case tickers <- &t:
			default:
			}
		}
	}()

	return tickers, errs
}

// Reconnect closes, waits reconnectDelay, connects and restores the subscription.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	if s.reconnectDelay > 0 {
		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	markets := s.Markets()
	if len(markets) == 0 {
		return nil
	}
	return s.Subscribe(ctx, markets)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.connected.Store(false)
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected.Load() }
