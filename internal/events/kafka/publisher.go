// Package kafka publishes ledger events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	interfaces "github.com/banksys/banking-backend/internal/interfaces"
	"github.com/banksys/banking-backend/internal/models/events"
)

// Publisher writes ledger events to the transaction_completed topic.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher connects a writer to the given brokers.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    events.TopicTransactionCompleted,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish serializes the event and writes it. The topic argument is
// part of the interface; this writer is bound to its topic at
// construction time.
func (p *Publisher) Publish(topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(
		context.Background(),
		kafka.Message{Value: data},
	)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
