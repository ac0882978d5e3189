// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer writes JSON-encoded values, while the
// consumer hands raw message values to a MessageHandler, retries it with
// backoff, and commits the offset only after the handler returns nil.
package kafka

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Subscription describes which topic to read and under which consumer group.
// Instances sharing a GroupID compete for messages; an instance with a group
// of its own sees every message.
type Subscription struct {
	Topic   string
	GroupID string
	// FromLatest skips messages published before the group first joined.
	FromLatest bool
	// Retry bounds redelivery of a message whose handler keeps failing.
	Retry resilience.RetryConfig
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
	retry   resilience.RetryConfig
	name    string
}

// NewConsumer creates a Consumer for the given subscription and handler.
func NewConsumer(cfg config.KafkaConfig, sub Subscription, handler MessageHandler) *Consumer {
	startOffset := kafka.FirstOffset
	if sub.FromLatest {
		startOffset = kafka.LastOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       sub.Topic,
		GroupID:     sub.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: startOffset,
	})

	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", sub.Topic, "group", sub.GroupID),
		handler: handler,
		retry:   sub.Retry,
		name:    "consume " + sub.Topic,
	}
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		err = resilience.Retry(ctx, c.name, c.retry, func() error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			c.logger.Error("failed to process message, leaving uncommitted",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
