package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/broker"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_OverridesMergeWithDefaults(t *testing.T) {
	path := writeConfig(t, `
broker:
  mailbox_size: 5
  retry_interval: 250ms
logging:
  level: debug
  format: text
memory:
  provider: sqlite
  path: /tmp/agentwire.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Broker.MailboxSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Broker.RetryInterval.Std())
	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.Broker.RetryBacklogCap)
	assert.Equal(t, time.Hour, cfg.Broker.RouteRetention.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Memory.Provider)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "broker:\n  retry_interval: soon\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soon")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "broker: [unclosed\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Broker.MailboxSize = 0
	cfg.Logging.Format = "xml"
	cfg.Memory.Provider = "sqlite"
	cfg.Memory.Path = ""

	err := cfg.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Len(t, ve.Errors, 3)
	assert.Contains(t, err.Error(), "mailbox_size")
	assert.Contains(t, err.Error(), "logging.format")
	assert.Contains(t, err.Error(), "memory.path")
}

func TestValidate_IntervalAndThresholdBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Broker.EnqueueTimeout = 0
	cfg.Broker.RouteRetention = Duration(-time.Second)
	cfg.Broker.StuckThreshold = 0
	cfg.Broker.HighLoadThreshold = 0

	err := cfg.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Len(t, ve.Errors, 4)
	assert.Contains(t, err.Error(), "enqueue_timeout")
	assert.Contains(t, err.Error(), "route_retention")
	assert.Contains(t, err.Error(), "stuck_threshold")
	assert.Contains(t, err.Error(), "high_load_threshold")
}

func TestBrokerOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Broker.MailboxSize = 7
	cfg.Broker.StuckThreshold = Duration(time.Minute)

	opts := broker.Options{}
	cfg.BrokerOptions()(&opts)
	assert.Equal(t, 7, opts.MailboxSize)
	assert.Equal(t, time.Minute, opts.StuckThreshold)
	assert.Equal(t, 10*time.Second, opts.MetricsInterval)
}

func TestBuildLogger(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "warn"
	require.NotNil(t, cfg.BuildLogger("test"))
}
