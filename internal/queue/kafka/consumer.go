package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"labwatch/internal/config"
	"labwatch/internal/queue"
)

// Consumer reads feed envelopes from the topic as part of a consumer
// group and hands each one to the feed handler.
type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewConsumer creates a group consumer for the configured topic.
func NewConsumer(cfg *config.KafkaConfig, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.ConsumerGroup,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		logger: logger,
	}
}

// Start fetches and processes messages until the context is canceled.
// Offsets are committed only after the handler returns; a handler error
// leaves the message uncommitted so it is redelivered. The feed handler
// swallows poison payloads itself, so redelivery only happens for
// transient downstream failures.
func (c *Consumer) Start(ctx context.Context, handler queue.MessageHandler) error {
	c.logger.Info("starting kafka consumer",
		"topic", c.reader.Config().Topic,
		"group", c.reader.Config().GroupID,
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("kafka consumer stopping")
				return ctx.Err()
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}

		if err := handler(ctx, fromKafkaMessage(&msg)); err != nil {
			c.logger.Error("failed to process message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit offset",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			return fmt.Errorf("failed to commit message: %w", err)
		}
	}
}

// Close closes the reader and leaves the consumer group.
func (c *Consumer) Close() error {
	if c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func fromKafkaMessage(msg *kafka.Message) *queue.Message {
	out := &queue.Message{
		Key:   msg.Key,
		Value: msg.Value,
	}
	if len(msg.Headers) > 0 {
		out.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			out.Headers[h.Key] = string(h.Value)
		}
	}
	return out
}
