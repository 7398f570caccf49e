// Package config loads and validates YAML configuration for the broker,
// workflow orchestrator and their ambient concerns. A missing file yields the
// defaults, so deployments only declare what they change.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentwire/agentwire/broker"
	"github.com/agentwire/agentwire/logging"
)

// Duration wraps time.Duration so YAML values like "250ms" parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BrokerConfig tunes the message broker.
type BrokerConfig struct {
	MailboxSize       int      `yaml:"mailbox_size"`
	EnqueueTimeout    Duration `yaml:"enqueue_timeout"`
	RetryInterval     Duration `yaml:"retry_interval"`
	RetryBacklogCap   int      `yaml:"retry_backlog_cap"`
	MetricsInterval   Duration `yaml:"metrics_interval"`
	HealthInterval    Duration `yaml:"health_interval"`
	RouteRetention    Duration `yaml:"route_retention"`
	StuckThreshold    Duration `yaml:"stuck_threshold"`
	HighLoadThreshold int      `yaml:"high_load_threshold"`
	LatencyWindow     int      `yaml:"latency_window"`
	HistorySize       int      `yaml:"history_size"`
}

// LoggingConfig tunes structured logging output.
type LoggingConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // json or text
	AddSource bool   `yaml:"add_source"`
}

// MemoryConfig selects the agent memory backend.
type MemoryConfig struct {
	Provider string `yaml:"provider"` // inmemory or sqlite
	Path     string `yaml:"path"`     // sqlite database path
	Capacity int    `yaml:"capacity"` // per-agent cap for inmemory
}

// MetricsConfig toggles Prometheus metric registration.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the top-level application configuration.
type Config struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Logging LoggingConfig `yaml:"logging"`
	Memory  MemoryConfig  `yaml:"memory"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Defaults returns the configuration used when no file overrides it.
func Defaults() *Config {
	return &Config{
		Broker: BrokerConfig{
			MailboxSize:       100,
			EnqueueTimeout:    Duration(250 * time.Millisecond),
			RetryInterval:     Duration(time.Second),
			RetryBacklogCap:   100,
			MetricsInterval:   Duration(10 * time.Second),
			HealthInterval:    Duration(time.Minute),
			RouteRetention:    Duration(time.Hour),
			StuckThreshold:    Duration(5 * time.Minute),
			HighLoadThreshold: 1000,
			LatencyWindow:     100,
			HistorySize:       10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Memory: MemoryConfig{
			Provider: "inmemory",
			Capacity: 1000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for structural correctness, reporting
// every problem found rather than just the first.
func (c *Config) Validate() error {
	ve := &ValidationError{}
	if c.Broker.MailboxSize <= 0 {
		ve.Add("broker.mailbox_size must be > 0")
	}
	if c.Broker.EnqueueTimeout <= 0 {
		ve.Add("broker.enqueue_timeout must be > 0")
	}
	if c.Broker.RetryInterval <= 0 {
		ve.Add("broker.retry_interval must be > 0")
	}
	if c.Broker.RetryBacklogCap <= 0 {
		ve.Add("broker.retry_backlog_cap must be > 0")
	}
	if c.Broker.MetricsInterval <= 0 {
		ve.Add("broker.metrics_interval must be > 0")
	}
	if c.Broker.HealthInterval <= 0 {
		ve.Add("broker.health_interval must be > 0")
	}
	if c.Broker.RouteRetention <= 0 {
		ve.Add("broker.route_retention must be > 0")
	}
	if c.Broker.StuckThreshold <= 0 {
		ve.Add("broker.stuck_threshold must be > 0")
	}
	if c.Broker.HighLoadThreshold <= 0 {
		ve.Add("broker.high_load_threshold must be > 0")
	}
	if c.Broker.LatencyWindow <= 0 {
		ve.Add("broker.latency_window must be > 0")
	}
	if c.Broker.HistorySize <= 0 {
		ve.Add("broker.history_size must be > 0")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		ve.Add("logging.format must be json or text, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		ve.Add("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Memory.Provider {
	case "inmemory", "sqlite":
	default:
		ve.Add("memory.provider must be inmemory or sqlite, got %q", c.Memory.Provider)
	}
	if c.Memory.Provider == "sqlite" && c.Memory.Path == "" {
		ve.Add("memory.path is required when memory.provider is sqlite")
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// BrokerOptions translates the broker section into a broker.New option.
func (c *Config) BrokerOptions() func(o *broker.Options) {
	return func(o *broker.Options) {
		o.MailboxSize = c.Broker.MailboxSize
		o.EnqueueTimeout = c.Broker.EnqueueTimeout.Std()
		o.RetryInterval = c.Broker.RetryInterval.Std()
		o.RetryBacklogCap = c.Broker.RetryBacklogCap
		o.MetricsInterval = c.Broker.MetricsInterval.Std()
		o.HealthInterval = c.Broker.HealthInterval.Std()
		o.RouteRetention = c.Broker.RouteRetention.Std()
		o.StuckThreshold = c.Broker.StuckThreshold.Std()
		o.HighLoadThreshold = c.Broker.HighLoadThreshold
		o.LatencyWindow = c.Broker.LatencyWindow
		o.HistorySize = c.Broker.HistorySize
	}
}

// BuildLogger constructs a structured logger from the logging section.
func (c *Config) BuildLogger(component string) *logging.BrokerLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(c.Logging.Level),
		Format:    c.Logging.Format,
		AddSource: c.Logging.AddSource,
		Component: component,
	})
}
