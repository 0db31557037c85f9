package stream

import "errors"

var (
	ErrInvalidKafkaConfig       = errors.New("invalid Kafka configuration provided")
	ErrKafkaFetchFailed         = errors.New("failed to fetch message from Kafka")
	ErrKafkaCommitFailed        = errors.New("failed to commit Kafka offset")
	ErrConsumerCreationFailed   = errors.New("failed to create consumer")
	ErrPipelineCreationFailed   = errors.New("failed to build feature pipeline")
	ErrStateStoreCreationFailed = errors.New("failed to open state store")
	ErrConsumerRunFailed        = errors.New("consumer component failed")
	ErrProcessorRunFailed       = errors.New("processor component failed")
	ErrAlerterRunFailed         = errors.New("alerter component failed")
	ErrPublisherRunFailed       = errors.New("publisher component failed")
)
