package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/config"
)

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer hands raw sample frames from the input topic to the parser.
type Consumer struct {
	reader messageReader
	output chan<- []byte
	logger *zap.Logger
}

// NewConsumer creates a group consumer for cfg.Topic.
func NewConsumer(cfg config.KafkaConfig, output chan<- []byte, logger *zap.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		logger.Error("Kafka configuration validation failed",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("topic", cfg.Topic),
			zap.String("group_id", cfg.GroupID),
		)
		return nil, ErrInvalidKafkaConfig
	}

	readerCfg := readerConfig(cfg, logger)
	logger.Info("Kafka consumer created",
		zap.String("topic", readerCfg.Topic),
		zap.String("group_id", readerCfg.GroupID),
		zap.String("start_offset", cfg.StartOffset),
		zap.Duration("max_wait", readerCfg.MaxWait),
	)
	return newConsumer(kafka.NewReader(readerCfg), output, logger), nil
}

func newConsumer(reader messageReader, output chan<- []byte, logger *zap.Logger) *Consumer {
	return &Consumer{reader: reader, output: output, logger: logger}
}

// Run blocks until ctx is cancelled or Kafka fails. An offset is committed
// only after its value has been accepted downstream.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Consumer loop started")
	defer c.close()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return context.Canceled
			}
			c.logger.Error("Error fetching message from Kafka", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrKafkaFetchFailed, err)
		}

		if err := c.handOff(ctx, m.Value); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return context.Canceled
			}
			return fmt.Errorf("%w: partition %d offset %d: %w", ErrKafkaCommitFailed, m.Partition, m.Offset, err)
		}
	}
}

func (c *Consumer) handOff(ctx context.Context, value []byte) error {
	select {
	case c.output <- value:
		return nil
	case <-ctx.Done():
		c.logger.Debug("Context cancelled with a message in hand; offset left uncommitted")
		return context.Canceled
	}
}

func (c *Consumer) close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader cleanly", zap.Error(err))
	}
	c.logger.Info("Consumer loop stopped")
}
