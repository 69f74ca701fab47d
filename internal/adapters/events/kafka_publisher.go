package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
)

type KafkaPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
}

// NewKafkaPublisher routes each event type to "<prefix>.<event type>" unless
// overridden in topicByEvent. Messages are keyed by partition key so all events
// for one invoice land on the same partition.
func NewKafkaPublisher(brokers []string, topicPrefix string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	topics := DefaultTopics(topicPrefix)
	for eventType, topic := range topicByEvent {
		if topic != "" {
			topics[eventType] = topic
		}
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topicByEvent: topics,
	}, nil
}

func DefaultTopics(prefix string) map[string]string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	topics := make(map[string]string)
	for _, eventType := range []string{
		contracts.EventTypeInvoicePaid,
		contracts.EventTypePaymentIntentCreated,
		contracts.EventTypePaymentIntentSucceeded,
		contracts.EventTypePaymentIntentFailed,
		contracts.EventTypePaymentIntentCanceled,
	} {
		if prefix == "" {
			topics[eventType] = eventType
			continue
		}
		topics[eventType] = prefix + "." + eventType
	}
	return topics
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	topic := eventType
	if mapped, ok := p.topicByEvent[eventType]; ok {
		topic = mapped
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(partitionKey),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
