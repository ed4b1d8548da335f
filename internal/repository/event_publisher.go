package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"BtcTrader/internal/domain/models"
	domrepo "BtcTrader/internal/domain/repository"
	pkgkafka "BtcTrader/pkg/kafka"
)

// Event type values carried in the envelope.
const (
	EventDecision = "decision"
	EventFill     = "fill"
)

// EventEnvelope is the Kafka payload for engine events.
type EventEnvelope struct {
	Type    string      `json:"type"`
	EventID string      `json:"event_id"`
	Payload interface{} `json:"payload"`
}

// KafkaEventPublisher implements EventPublisher for Kafka. Messages are keyed
// by user so one user's events stay ordered within a partition.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	now      func() time.Time
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

// NewKafkaEventPublisher creates Kafka publisher.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaEventPublisher) PublishDecision(ctx context.Context, ev models.DecisionEvent) error {
	stampDecision(&ev, p.now)
	return p.producer.Publish(ctx, p.topic, []byte(ev.UserID), EventEnvelope{
		Type:    EventDecision,
		EventID: ev.EventID,
		Payload: ev,
	})
}

func (p *KafkaEventPublisher) PublishFill(ctx context.Context, ev models.FillEvent) error {
	stampFill(&ev, p.now)
	return p.producer.Publish(ctx, p.topic, []byte(ev.UserID), EventEnvelope{
		Type:    EventFill,
		EventID: ev.EventID,
		Payload: ev,
	})
}

// PublishDecisions sends a batch of decisions in one write.
func (p *KafkaEventPublisher) PublishDecisions(ctx context.Context, evs []models.DecisionEvent) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(evs))
	for i := range evs {
		stampDecision(&evs[i], p.now)
		msgs[i] = pkgkafka.Message{
			Key:   []byte(evs[i].UserID),
			Value: EventEnvelope{Type: EventDecision, EventID: evs[i].EventID, Payload: evs[i]},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func stampDecision(ev *models.DecisionEvent, now func() time.Time) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now()
	}
}

func stampFill(ev *models.FillEvent, now func() time.Time) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now()
	}
}

// NoopEventPublisher drops every event. Used when Kafka is disabled.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishDecision(context.Context, models.DecisionEvent) error { return nil }
func (NoopEventPublisher) PublishFill(context.Context, models.FillEvent) error         { return nil }
func (NoopEventPublisher) Close() error                                               { return nil }
