package stream

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/config"
	"github.com/sanspareilsmyn/featurestream/internal/message"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes feature frames to the output topic, keyed by stream.
type Publisher struct {
	pipelineName string
	writer       messageWriter
	input        <-chan message.FeatureFrame
	logger       *zap.Logger
}

// NewPublisher creates a publisher for cfg.OutputTopic.
func NewPublisher(pipelineName string, cfg config.KafkaConfig, input <-chan message.FeatureFrame, logger *zap.Logger) *Publisher {
	logger.Info("Kafka publisher created",
		zap.String("topic", cfg.OutputTopic),
		zap.Strings("brokers", cfg.Brokers),
	)
	return newPublisher(pipelineName, newKafkaWriter(cfg, logger), input, logger)
}

func newPublisher(pipelineName string, writer messageWriter, input <-chan message.FeatureFrame, logger *zap.Logger) *Publisher {
	return &Publisher{
		pipelineName: pipelineName,
		writer:       writer,
		input:        input,
		logger:       logger,
	}
}

// Run publishes until the input is closed or ctx is cancelled. Write
// failures are logged and counted; the frame is not retried.
func (p *Publisher) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	sugar.Info("Starting publisher loop...")

	defer func() {
		if err := p.writer.Close(); err != nil {
			sugar.Errorw("Failed to close Kafka writer cleanly", zap.Error(err))
		}
		sugar.Info("Publisher loop stopped.")
	}()

	for {
		select {
		case frame, ok := <-p.input:
			if !ok {
				return nil
			}
			p.publish(ctx, frame)
			if ctx.Err() != nil {
				return ctx.Err()
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Publisher) publish(ctx context.Context, frame message.FeatureFrame) {
	value, err := frame.Encode()
	if err != nil {
		publishFailures.WithLabelValues(p.pipelineName).Inc()
		p.logger.Error("Failed to encode feature frame", zap.String("stream", frame.Stream), zap.Error(err))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(frame.Stream),
		Value: value,
		Time:  frame.Timestamp,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		publishFailures.WithLabelValues(p.pipelineName).Inc()
		p.logger.Error("Failed to publish feature frame", zap.String("stream", frame.Stream), zap.Error(err))
	}
}
