package stream

import (
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/config"
)

// kafkaLoggers routes kafka-go's chatter to debug and its errors to error,
// both under a named child of logger.
func kafkaLoggers(logger *zap.Logger, name string) (kafka.Logger, kafka.Logger) {
	sugar := logger.Named(name).WithOptions(zap.AddCallerSkip(1)).Sugar()
	return kafka.LoggerFunc(sugar.Debugf), kafka.LoggerFunc(sugar.Errorf)
}

func startOffset(name string) int64 {
	if name == "first" {
		return kafka.FirstOffset
	}
	return kafka.LastOffset
}

func readerConfig(cfg config.KafkaConfig, logger *zap.Logger) kafka.ReaderConfig {
	info, errs := kafkaLoggers(logger, "kafka-reader")
	return kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: startOffset(cfg.StartOffset),
		MaxWait:     cfg.MaxWait,
		Logger:      info,
		ErrorLogger: errs,
	}
}

func newKafkaWriter(cfg config.KafkaConfig, logger *zap.Logger) *kafka.Writer {
	info, errs := kafkaLoggers(logger, "kafka-writer")
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OutputTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Logger:       info,
		ErrorLogger:  errs,
	}
}
