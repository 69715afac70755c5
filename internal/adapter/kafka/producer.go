// Package kafka adapts a Kafka topic into the collector's observation
// producer. Vessels with an onboard broker publish raw sensor samples here;
// installations without one wire a different Producer.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/openwaters/crowd-depth/internal/domain"
)

// Config addresses the broker and topic.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Producer consumes observation messages from a Kafka topic.
// It implements collector.Producer.
type Producer struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewProducer creates a consumer for the configured observation topic.
func NewProducer(cfg Config, logger *slog.Logger) *Producer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafkago.FirstOffset,
	})
	return &Producer{reader: r, logger: logger}
}

// Next blocks until the next observation message arrives, then decodes it.
func (p *Producer) Next(ctx context.Context) (domain.Observation, error) {
	msg, err := p.reader.ReadMessage(ctx)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("read message: %w", err)
	}
	return mapMessageToObservation(msg)
}

// Close releases the underlying Kafka reader.
func (p *Producer) Close() error {
	return p.reader.Close()
}

// mapMessageToObservation decodes one topic message. The payload is the
// observation JSON; a message without its own timestamp falls back to the
// Kafka message time.
func mapMessageToObservation(msg kafkago.Message) (domain.Observation, error) {
	var o domain.Observation
	if err := json.Unmarshal(msg.Value, &o); err != nil {
		return domain.Observation{}, fmt.Errorf("decode observation at offset %d: %w", msg.Offset, err)
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = msg.Time
	}
	return o, nil
}
