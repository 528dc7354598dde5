// Package events publishes completed sales and purchases to Kafka so other
// systems (ledger sync, notifications) can follow the shop floor.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypeSaleCompleted    = "sale.completed"
	TypePurchaseRecorded = "purchase.recorded"
	TypeProductCreated   = "product.created"
)

type Envelope struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, id string, payload any) error
	Close() error
}

// Key builds the message key, e.g. "sale.completed.sale-123".
func Key(eventType string, id string) string {
	return eventType + "." + id
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ string, _ string, _ any) error { return nil }

func (NoopPublisher) Close() error { return nil }

type KafkaPublisher struct {
	writer *kafka.Writer
}

func ParseBrokers(brokersCSV string) []string {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, id string, payload any) error {
	key := Key(eventType, id)
	data, err := json.Marshal(Envelope{
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
