package config

import "errors"

var (
	ErrReadingConfigFile         = errors.New("failed to read config file")
	ErrUnmarshallingConfig       = errors.New("failed to unmarshal config")
	ErrEmptyKafkaBrokers         = errors.New("kafka brokers list cannot be empty")
	ErrEmptyKafkaTopic           = errors.New("kafka topic cannot be empty")
	ErrEmptyKafkaGroupID         = errors.New("kafka groupID cannot be empty")
	ErrInvalidKafkaStartOffset   = errors.New("kafka startOffset must be \"first\" or \"last\"")
	ErrInvalidKafkaMaxWait       = errors.New("kafka maxWait must be positive")
	ErrInvalidPipelineChannels   = errors.New("pipeline channels must be positive")
	ErrInvalidCheckpointInterval = errors.New("pipeline checkpointInterval cannot be negative")
	ErrEmptyPipelineStages       = errors.New("pipeline must declare at least one stage")
	ErrEmptyStageType            = errors.New("pipeline stage type cannot be empty")
	ErrEmptyStateKey             = errors.New("state key cannot be empty")
	ErrInvalidAlertChannel       = errors.New("alert channel out of range")
	ErrInvalidAlertRange         = errors.New("alert min must not exceed max")
	ErrConfigFileMissing         = errors.New("config file not found")
)
