// Package config loads the process configuration for logsift. Values come from
// an optional YAML file overlaid by LOGSIFT_* environment variables, with a
// default for every key.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/pkg/common/logger"
)

const (
	envPrefix       = "LOGSIFT"
	envKeySeparator = "_"
	configType      = "yaml"
)

// Sentinel validation errors.
var (
	ErrInvalidBatchSize = errors.New("analysis batch size must be positive")
	ErrInvalidDepth     = errors.New("ancestor max depth must be positive")
	ErrInvalidConns     = errors.New("database connection limits are invalid")
	ErrInvalidSampling  = errors.New("telemetry sampling ratio must be within [0, 1]")
	ErrMissingTopics    = errors.New("kafka topics and group id are required when brokers are set")
)

// Config is the top-level process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Analyzers AnalyzersConfig `mapstructure:"analyzers"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MinConns       int32  `mapstructure:"min_conns"`
	MaxConns       int32  `mapstructure:"max_conns"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// KafkaConfig configures the event bus. No brokers selects the in-process bus.
type KafkaConfig struct {
	Brokers             []string `mapstructure:"brokers"`
	GroupID             string   `mapstructure:"group_id"`
	ClientID            string   `mapstructure:"client_id"`
	AnalysisEventsTopic string   `mapstructure:"analysis_events_topic"`
	RunLifecycleTopic   string   `mapstructure:"run_lifecycle_topic"`
}

// Enabled reports whether a Kafka cluster is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// AnalysisConfig tunes the analysis coordinators.
type AnalysisConfig struct {
	BatchSize        int           `mapstructure:"batch_size"`
	MinLogLevel      string        `mapstructure:"min_log_level"`
	AncestorMaxDepth int           `mapstructure:"ancestor_max_depth"`
	JanitorInterval  time.Duration `mapstructure:"janitor_interval"`
}

// AnalyzersConfig points at the analyzer instance registry.
type AnalyzersConfig struct {
	InstancesFile string `mapstructure:"instances_file"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Endpoint      string  `mapstructure:"endpoint"`
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
	Insecure      bool    `mapstructure:"insecure"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from configPath (optional), the environment and
// defaults, then validates it. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("logsift")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/logsift")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "20s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.migrations_path", "db/migrations")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.group_id", "logsift")
	v.SetDefault("kafka.client_id", "logsift")
	v.SetDefault("kafka.analysis_events_topic", "analysis-events")
	v.SetDefault("kafka.run_lifecycle_topic", "run-lifecycle")

	v.SetDefault("analysis.batch_size", 100)
	v.SetDefault("analysis.min_log_level", "error")
	v.SetDefault("analysis.ancestor_max_depth", 64)
	v.SetDefault("analysis.janitor_interval", "1m")

	v.SetDefault("analyzers.instances_file", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 0.1)
	v.SetDefault("telemetry.insecure", true)

	v.SetDefault("log.level", "info")
}

// Validate rejects settings the coordinators cannot run with.
func (c *Config) Validate() error {
	if c.Analysis.BatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.Analysis.BatchSize)
	}
	if c.Analysis.AncestorMaxDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, c.Analysis.AncestorMaxDepth)
	}
	if _, err := reporting.ParseLogLevel(c.Analysis.MinLogLevel); err != nil {
		return fmt.Errorf("analysis.min_log_level: %w", err)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Database.MinConns < 0 || c.Database.MaxConns <= 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidConns, c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampling, c.Telemetry.SamplingRatio)
	}
	if c.Kafka.Enabled() &&
		(c.Kafka.GroupID == "" || c.Kafka.AnalysisEventsTopic == "" || c.Kafka.RunLifecycleTopic == "") {
		return ErrMissingTopics
	}
	return nil
}

// MinLogLevel returns the parsed minimum log level sent to analyzers.
func (c *Config) MinLogLevel() reporting.LogLevel {
	lvl, err := reporting.ParseLogLevel(c.Analysis.MinLogLevel)
	if err != nil {
		return reporting.LogLevelError
	}
	return lvl
}
