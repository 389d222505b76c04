package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/amoylab/janus/pkg/helper"
)

type (
	// Config is the top level janus configuration
	Config struct {
		Client    ClientConfig    `yaml:"client" toml:"client"`
		Reconnect ReconnectConfig `yaml:"reconnect" toml:"reconnect"`
		Logger    LoggerConfig    `yaml:"logger" toml:"logger"`
		Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
		Tracing   TracingConfig   `yaml:"tracing" toml:"tracing"`
		Tap       TapConfig       `yaml:"tap" toml:"tap"`
		Inspect   InspectConfig   `yaml:"inspect" toml:"inspect"`
	}

	// ClientConfig configures the connection to the debugging endpoint
	ClientConfig struct {
		URL                string            `yaml:"url" toml:"url"` // ws(s):// debugger url or http(s):// endpoint
		CallTimeout        time.Duration     `yaml:"call_timeout" toml:"call_timeout"`
		ConnectTimeout     time.Duration     `yaml:"connect_timeout" toml:"connect_timeout"`
		HandshakeTimeout   time.Duration     `yaml:"handshake_timeout" toml:"handshake_timeout"`
		WriteTimeout       time.Duration     `yaml:"write_timeout" toml:"write_timeout"`
		ReadLimit          int64             `yaml:"read_limit" toml:"read_limit"` // max inbound frame size in bytes, 0 = unlimited
		Headers            map[string]string `yaml:"headers" toml:"headers"`
		SubscriptionBuffer int               `yaml:"subscription_buffer" toml:"subscription_buffer"`
	}

	// ReconnectConfig configures automatic reconnection after connection loss
	ReconnectConfig struct {
		Enabled             bool          `yaml:"enabled" toml:"enabled"`
		MaxAttempts         uint          `yaml:"max_attempts" toml:"max_attempts"`
		InitialInterval     time.Duration `yaml:"initial_interval" toml:"initial_interval"`
		MaxInterval         time.Duration `yaml:"max_interval" toml:"max_interval"`
		Multiplier          float64       `yaml:"multiplier" toml:"multiplier"`
		RandomizationFactor float64       `yaml:"randomization_factor" toml:"randomization_factor"`
		MaxElapsedTime      time.Duration `yaml:"max_elapsed_time" toml:"max_elapsed_time"` // 0 = no limit
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level" toml:"level"`             // debug, info, warn, error
		Format     string `yaml:"format" toml:"format"`           // json, console
		Output     string `yaml:"output" toml:"output"`           // stdout, file
		FilePath   string `yaml:"file_path" toml:"file_path"`     // path to log file when output is file
		MaxSize    int    `yaml:"max_size" toml:"max_size"`       // max size of log file in MB
		MaxBackups int    `yaml:"max_backups" toml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age" toml:"max_age"`         // max age of backup files in days
		Compress   bool   `yaml:"compress" toml:"compress"`       // whether to compress backup files
		Color      bool   `yaml:"color" toml:"color"`             // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace" toml:"stacktrace"`   // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone" toml:"time_zone"`     // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format" toml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// MetricsConfig configures prometheus instrumentation
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled" toml:"enabled"`
		Namespace string    `yaml:"namespace" toml:"namespace"`
		Buckets   []float64 `yaml:"buckets" toml:"buckets"`
	}

	// TracingConfig represents OpenTelemetry tracing configuration
	TracingConfig struct {
		Enabled     bool              `yaml:"enabled" toml:"enabled"`
		ServiceName string            `yaml:"service_name" toml:"service_name"`
		Endpoint    string            `yaml:"endpoint" toml:"endpoint"`         // e.g. localhost:4317 or http://localhost:4318
		Protocol    string            `yaml:"protocol" toml:"protocol"`         // grpc or http
		Insecure    bool              `yaml:"insecure" toml:"insecure"`         // allow insecure connection
		SamplerRate float64           `yaml:"sampler_rate" toml:"sampler_rate"` // 0.0~1.0
		Environment string            `yaml:"environment" toml:"environment"`   // env tag: dev/staging/prod
		Headers     map[string]string `yaml:"headers" toml:"headers"`
	}

	// TapConfig configures where protocol diagnostics are recorded
	TapConfig struct {
		Sinks        []string       `yaml:"sinks" toml:"sinks"` // log, memory, redis
		MemorySize   int            `yaml:"memory_size" toml:"memory_size"`
		PayloadLimit int            `yaml:"payload_limit" toml:"payload_limit"` // bytes of the offending frame kept per record
		Redis        TapRedisConfig `yaml:"redis" toml:"redis"`
	}

	// TapRedisConfig represents the Redis configuration of the diagnostics sink
	TapRedisConfig struct {
		ClusterType string `yaml:"cluster_type" toml:"cluster_type"` // single, sentinel, cluster
		Addr        string `yaml:"addr" toml:"addr"`                 // one or more addresses separated by ',' or ';'
		MasterName  string `yaml:"master_name" toml:"master_name"`
		Username    string `yaml:"username" toml:"username"`
		Password    string `yaml:"password" toml:"password"`
		DB          int    `yaml:"db" toml:"db"`
		Topic       string `yaml:"topic" toml:"topic"`
		QueueSize   int    `yaml:"queue_size" toml:"queue_size"`
	}

	// InspectConfig configures the HTTP inspection server
	InspectConfig struct {
		Enabled bool   `yaml:"enabled" toml:"enabled"`
		Addr    string `yaml:"addr" toml:"addr"`
	}
)

var envPattern = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// LoadConfig loads configuration from a YAML or TOML file with environment
// variable support. Defaults are applied and the result is validated.
func LoadConfig(filename string) (*Config, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	cfg, err := Parse(data, formatOf(cfgPath))
	if err != nil {
		return nil, cfgPath, fmt.Errorf("%s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// Parse decodes configuration content in the given format ("yaml" or "toml").
func Parse(data []byte, format string) (*Config, error) {
	data = resolveEnv(data)

	var cfg Config
	switch format {
	case "toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// resolveEnv replaces environment variable placeholders in config content
func resolveEnv(content []byte) []byte {
	return envPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := envPattern.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
