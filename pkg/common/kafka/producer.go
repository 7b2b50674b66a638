package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

const (
	headerEventType = "event-type"
	headerSource    = "source"
)

type Producer struct {
	writer *kafka.Writer
}

// NewProducer writes synchronously with leader acknowledgement; callers
// that must not block publish from their own goroutine.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           20 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: writer}
}

// PublishEvent wraps data in an Event envelope. Events carrying a "domain"
// field are keyed by it so one domain's events stay ordered.
func (p *Producer) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	event := NewEvent(eventType, source, data)
	message, err := encodeEvent(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": eventType,
			"topic":      p.writer.Topic,
		}).Error("Failed to publish event")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
		"topic":      p.writer.Topic,
	}).Debug("Event published")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func NewEvent(eventType, source string, data map[string]interface{}) models.Event {
	return models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func encodeEvent(event models.Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	key := event.ID
	if domain, ok := event.Data["domain"].(string); ok && domain != "" {
		key = domain
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerSource, Value: []byte(event.Source)},
		},
	}, nil
}
