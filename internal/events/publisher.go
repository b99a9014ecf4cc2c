package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"catalogsync/internal/logger"
)

const (
	TypeProductCreated = "product.created"
	TypeProductUpdated = "product.updated"
	TypeProductSkipped = "product.skipped"
	TypeProductErrored = "product.errored"
	TypeSyncCompleted  = "sync.completed"
	TypeSyncRequested  = "sync.requested"
)

// Event describes one sync outcome published for downstream consumers.
type Event struct {
	Type          string    `json:"type"`
	RunID         string    `json:"run_id,omitempty"`
	Number        string    `json:"number,omitempty"`
	DestinationID int64     `json:"destination_id,omitempty"`
	Error         string    `json:"error,omitempty"`
	Warning       string    `json:"warning,omitempty"`
	Data          any       `json:"data,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	logger *logger.Logger
}

func NewPublisher(brokers []string, topic string, logger *logger.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(writer, logger)
}

func newPublisher(writer messageWriter, logger *logger.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

// Publish writes the event keyed by product number, so every event about the
// same product lands on the same partition.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	msg, err := NewMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	p.logger.Debug("Published %s event for %s", event.Type, event.Number)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func NewMessage(event Event) (kafka.Message, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	key := event.Number
	if key == "" {
		key = event.RunID
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}, nil
}
