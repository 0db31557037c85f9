package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultKafkaGroupID        = "featurestream-default-group"
	defaultKafkaStartOffset    = "last"
	defaultKafkaMaxWait        = 500 * time.Millisecond
	defaultPipelineName        = "featurestream"
	defaultPipelineChannels    = 1
	defaultPipelineCheckpoint  = 30 * time.Second
	defaultStateDirectory      = "state"
	defaultStateKey            = "pipeline.json"
	defaultStateRestoreOnStart = true
	defaultMetricsAddress      = ":2112"
	defaultLogLevel            = "info"
	defaultLogFormat           = "console"
	defaultLogFileEnabled      = false
	defaultLogDirectory        = "log"
	defaultLogFilename         = "featurestream.log"
	defaultLogMaxSizeMB        = 100
	defaultLogMaxBackups       = 3
	defaultLogMaxAgeDays       = 7
	defaultLogCompress         = false

	// Environment variable prefix
	envPrefix = "FEATURESTREAM"
)

type Config struct {
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	State    StateConfig    `mapstructure:"state"`
	Alerts   []AlertConfig  `mapstructure:"alerts"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	GroupID     string   `mapstructure:"groupID"`
	OutputTopic string   `mapstructure:"outputTopic"` // empty disables publishing

	// StartOffset applies only when the group has no committed offset: "first" or "last".
	StartOffset string        `mapstructure:"startOffset"`
	MaxWait     time.Duration `mapstructure:"maxWait"`
}

type PipelineConfig struct {
	Name               string        `mapstructure:"name"`
	Channels           int           `mapstructure:"channels"`
	CheckpointInterval time.Duration `mapstructure:"checkpointInterval"` // 0 disables periodic checkpoints
	Stages             []StageConfig `mapstructure:"stages"`
}

// StageConfig names a registered stage type and its parameters.
type StageConfig struct {
	Type   string                 `mapstructure:"type"`
	Params map[string]interface{} `mapstructure:"params"`
}

type StateConfig struct {
	Directory      string `mapstructure:"directory"`
	Key            string `mapstructure:"key"`
	RestoreOnStart bool   `mapstructure:"restoreOnStart"`
}

// AlertConfig bounds the pipeline output of one channel.
type AlertConfig struct {
	Channel int      `mapstructure:"channel"`
	Min     *float64 `mapstructure:"min"`
	Max     *float64 `mapstructure:"max"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"` // empty disables the metrics server
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`   // Compress rotated files?
}

// Load initializes viper, reads config, applies defaults, unmarshals, and validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)

	// Set default values before reading config source .yaml
	setDefaults(v)

	// Read configuration from file (error if mandatory file is missing)
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configureViper sets up viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults applies default configuration values using Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("kafka.groupID", defaultKafkaGroupID)
	v.SetDefault("kafka.outputTopic", "")
	v.SetDefault("kafka.startOffset", defaultKafkaStartOffset)
	v.SetDefault("kafka.maxWait", defaultKafkaMaxWait)
	v.SetDefault("pipeline.name", defaultPipelineName)
	v.SetDefault("pipeline.channels", defaultPipelineChannels)
	v.SetDefault("pipeline.checkpointInterval", defaultPipelineCheckpoint)
	v.SetDefault("state.directory", defaultStateDirectory)
	v.SetDefault("state.key", defaultStateKey)
	v.SetDefault("state.restoreOnStart", defaultStateRestoreOnStart)
	v.SetDefault("metrics.address", defaultMetricsAddress)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

// readConfigFile reads the file set on v; a missing file is ErrConfigFileMissing.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return ErrEmptyKafkaBrokers
	}
	if cfg.Kafka.Topic == "" {
		return ErrEmptyKafkaTopic
	}
	if cfg.Kafka.GroupID == "" {
		return ErrEmptyKafkaGroupID
	}
	switch cfg.Kafka.StartOffset {
	case "first", "last":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKafkaStartOffset, cfg.Kafka.StartOffset)
	}
	if cfg.Kafka.MaxWait <= 0 {
		return ErrInvalidKafkaMaxWait
	}
	if cfg.Pipeline.Channels < 1 {
		return ErrInvalidPipelineChannels
	}
	if cfg.Pipeline.CheckpointInterval < 0 {
		return ErrInvalidCheckpointInterval
	}
	if len(cfg.Pipeline.Stages) == 0 {
		return ErrEmptyPipelineStages
	}
	for i, s := range cfg.Pipeline.Stages {
		if s.Type == "" {
			return fmt.Errorf("%w: stage %d", ErrEmptyStageType, i)
		}
	}
	if cfg.State.Key == "" {
		return ErrEmptyStateKey
	}
	for _, a := range cfg.Alerts {
		if a.Channel < 0 || a.Channel >= cfg.Pipeline.Channels {
			return fmt.Errorf("%w: channel %d, pipeline has %d", ErrInvalidAlertChannel, a.Channel, cfg.Pipeline.Channels)
		}
		if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
			return fmt.Errorf("%w: channel %d min %g > max %g", ErrInvalidAlertRange, a.Channel, *a.Min, *a.Max)
		}
	}
	return nil
}
