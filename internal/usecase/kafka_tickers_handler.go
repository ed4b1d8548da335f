package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"BtcTrader/internal/domain/models"
	domrepo "BtcTrader/internal/domain/repository"
	mid "BtcTrader/internal/middleware"
	pkgkafka "BtcTrader/pkg/kafka"
)

// KafkaTickersHandler feeds tickers published by other instances into the
// local pipeline.
type KafkaTickersHandler struct {
	topic   string
	pipe    *mid.TickerPipeline
	metrics domrepo.Metrics
}

var _ pkgkafka.MessageHandler = (*KafkaTickersHandler)(nil)

func NewKafkaTickersHandler(topic string, pipe *mid.TickerPipeline, metrics domrepo.Metrics) *KafkaTickersHandler {
	return &KafkaTickersHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaTickersHandler) Topic() string { return h.topic }

// Handle decodes a models.Ticker JSON payload. Malformed or invalid payloads
// are dropped without error so they are not retried.
func (h *KafkaTickersHandler) Handle(ctx context.Context, b []byte) error {
	var t models.Ticker
	if err := json.Unmarshal(b, &t); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return nil
	}
	if !t.Timestamp.IsZero() {
		h.metrics.RecordLatency("ticker_e2e", time.Since(t.Timestamp).Seconds())
	}
	if _, err := h.pipe.Process(ctx, &t); err != nil {
		if errors.Is(err, mid.ErrInvalidTicker) {
			return nil
		}
		return fmt.Errorf("process ticker %s: %w", t.Market, err)
	}
	return nil
}
