package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

const (
	handlerAttempts   = 5
	handlerRetryDelay = 200 * time.Millisecond
)

type Consumer struct {
	reader     *kafka.Reader
	types      map[string]struct{}
	attempts   int
	retryDelay time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

type discardError struct {
	err error
}

func (e discardError) Error() string { return e.err.Error() }
func (e discardError) Unwrap() error { return e.err }

// Discard marks a handler error as permanent: the message is logged and
// committed instead of retried.
func Discard(err error) error {
	return discardError{err: err}
}

// NewConsumer joins groupID on topic. When eventTypes is non-empty, other
// event types are committed without reaching the handler.
func NewConsumer(brokers []string, topic string, groupID string, eventTypes ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})

	types := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = struct{}{}
	}
	return &Consumer{reader: reader, types: types, attempts: handlerAttempts, retryDelay: handlerRetryDelay}
}

// Consume blocks until ctx is cancelled. A failing handler is retried with
// backoff on the same message; when retries run out Consume returns without
// committing, so the message is redelivered after a restart or rebalance.
// Committing a later offset would also cover the failed message.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return err
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			continue
		}

		if err := c.process(ctx, message, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			logger.Log.WithError(err).Error("Failed to commit message")
		}
	}
}

// process handles one message. A nil return means the message may be
// committed.
func (c *Consumer) process(ctx context.Context, message kafka.Message, handler EventHandler) error {
	event, err := decodeEvent(message)
	if err != nil {
		logger.Log.WithError(err).WithField("offset", message.Offset).Error("Dropping undecodable event")
		return nil
	}
	if !c.accepts(event.Type) {
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxElapsedTime = 0
	attempts := c.attempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)

	err = backoff.Retry(func() error {
		err := handler(ctx, event)
		var discard discardError
		if errors.As(err, &discard) {
			return backoff.Permanent(err)
		}
		if err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).Warn("Failed to process event")
		}
		return err
	}, b)

	var discard discardError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &discard):
		logger.Log.WithError(err).WithField("event_id", event.ID).Error("Discarding event")
		return nil
	default:
		return fmt.Errorf("event %s not processed: %w", event.ID, err)
	}
}

func (c *Consumer) accepts(eventType string) bool {
	if len(c.types) == 0 {
		return true
	}
	_, ok := c.types[eventType]
	return ok
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func decodeEvent(message kafka.Message) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return models.Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Type == "" {
		for _, h := range message.Headers {
			if h.Key == headerEventType {
				event.Type = string(h.Value)
			}
		}
	}
	return event, nil
}
