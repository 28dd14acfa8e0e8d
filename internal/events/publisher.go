// Package events publishes commit outcomes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JonMunkholm/rxstock/internal/core"
)

// EventType is carried in the event_type header of every message.
const EventType = "inventory.import.committed"

// SchemaVersion is bumped when the payload shape changes incompatibly.
const SchemaVersion = "1"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements core.EventPublisher.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a synchronous writer for topic on brokers.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, topic, logger)
}

func newPublisher(w messageWriter, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, topic: topic, logger: logger}
}

// PublishCommit writes one message keyed by session ID, so every event for
// a session lands on the same partition.
func (p *Publisher) PublishCommit(ctx context.Context, evt core.CommitEvent) error {
	if evt.CompletedAt.IsZero() {
		evt.CompletedAt = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal commit event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.SessionID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventType)},
			{Key: "mode", Value: []byte(evt.Mode)},
			{Key: "schema_version", Value: []byte(SchemaVersion)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish commit event failed",
			"topic", p.topic,
			"session_id", evt.SessionID,
			"error", err)
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
