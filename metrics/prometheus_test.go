package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/core"
)

var _ core.Recorder = (*PrometheusRecorder)(nil)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.IncSent(core.RouteDirect)
	rec.IncSent(core.RouteDirect)
	rec.IncSent(core.RouteBroadcast)
	rec.IncDelivered("agent-1", 25*time.Millisecond)
	rec.IncFailed("mailbox_full")
	rec.SetRetryBacklog("agent-1", 7)
	rec.SetRetryBacklog("agent-1", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.sentTotal.WithLabelValues("direct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.sentTotal.WithLabelValues("broadcast")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.deliveredTotal.WithLabelValues("agent-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.failedTotal.WithLabelValues("mailbox_full")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.retryBacklog.WithLabelValues("agent-1")), "gauge keeps the latest depth")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "broker_delivery_duration_seconds")
}

func TestPrometheusRecorder_SeparateRegistries(t *testing.T) {
	// Two recorders on independent registries must not collide.
	a := NewPrometheusRecorder(prometheus.NewRegistry())
	b := NewPrometheusRecorder(prometheus.NewRegistry())
	a.IncSent(core.RouteDirect)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.sentTotal.WithLabelValues("direct")))
}
