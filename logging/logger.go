// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer BrokerLogger with contextual
// helpers (component, agent) and domain specific logging helpers for
// deliveries, retries and workflow runs.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled
// from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string (case sensitive, lowercase) to a LogLevel.
// Unrecognized values default to info.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "warn":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface for agentwire. This allows
// users to provide their own logger implementation or use the built-in
// adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// BrokerLogger wraps slog.Logger adding contextual cloning helpers and domain
// convenience methods. It is cheap to copy via the With* methods.
type BrokerLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	agentID   string
}

// LoggerConfig configures construction of a BrokerLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout, CustomAttrs: map[string]any{}}
}

// NewLogger builds a BrokerLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *BrokerLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	ctx := map[string]any{}
	for k, v := range cfg.CustomAttrs {
		ctx[k] = v
	}
	return &BrokerLogger{logger: slog.New(handler), level: cfg.Level, context: ctx, component: cfg.Component}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *BrokerLogger) clone() *BrokerLogger {
	nl := *l
	nl.context = map[string]any{}
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute attached to every log entry.
func (l *BrokerLogger) WithContext(key string, value any) *BrokerLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (broker, delivery, workflow, etc.).
func (l *BrokerLogger) WithComponent(c string) *BrokerLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithAgent attaches an agent identifier to every log entry.
func (l *BrokerLogger) WithAgent(agentID string) *BrokerLogger {
	nl := l.clone()
	nl.agentID = agentID
	return nl
}

func (l *BrokerLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+3)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.agentID != "" {
		attrs = append(attrs, slog.String("agent_id", l.agentID))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *BrokerLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	attrs := l.buildAttrs()
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Debug logs at debug level.
func (l *BrokerLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *BrokerLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *BrokerLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *BrokerLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogDelivery records the outcome of one message hand-off.
func (l *BrokerLogger) LogDelivery(agentID, messageID string, latency time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs,
		slog.String("agent_id", agentID),
		slog.String("message_id", messageID),
		slog.Duration("latency", latency),
		slog.Bool("success", success),
	)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelDebug
	msg := "Message delivered"
	if !success {
		level = slog.LevelError
		msg = "Message delivery failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogRetry records a retry attempt or a permanent drop after backlog overflow.
func (l *BrokerLogger) LogRetry(agentID, messageID string, backlog int, dropped bool) {
	attrs := l.buildAttrs()
	attrs = append(attrs,
		slog.String("agent_id", agentID),
		slog.String("message_id", messageID),
		slog.Int("backlog", backlog),
	)
	level := slog.LevelInfo
	msg := "Message requeued for retry"
	if dropped {
		level = slog.LevelError
		msg = "Retry backlog exhausted, message dropped"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogWorkflowRun records aggregate workflow run metrics.
func (l *BrokerLogger) LogWorkflowRun(workflowID, name string, steps int, dur time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs,
		slog.String("workflow_id", workflowID),
		slog.String("workflow_name", name),
		slog.Int("step_count", steps),
		slog.Duration("duration", dur),
		slog.Bool("success", success),
	)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelInfo
	msg := "Workflow completed"
	if !success {
		level = slog.LevelError
		msg = "Workflow failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is
// disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
