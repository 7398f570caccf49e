package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/core"
)

func TestDelivery_FailureParksMessageForRetry(t *testing.T) {
	b := New(func(o *Options) { o.RetryInterval = time.Hour })
	agent := register(t, b, "flaky", "ops")
	agent.setErr(errors.New("boom"))

	require.NoError(t, b.Start(context.Background()))
	defer func() { require.NoError(t, b.Stop()) }()

	_, err := b.Send("sender", "flaky", core.TaskRequest, nil, core.PriorityMedium, core.RouteDirect)
	require.NoError(t, err, "delivery failures are never surfaced to the sender")

	require.Eventually(t, func() bool {
		return b.GetMetrics().PendingRetries == 1
	}, 2*time.Second, 10*time.Millisecond)

	metrics := b.GetMetrics()
	assert.Equal(t, int64(0), metrics.MessagesDelivered)
	assert.Equal(t, int64(0), metrics.MessagesFailed, "parked, not yet failed")
	assert.Equal(t, 0, b.GetAgentStatus()["flaky"].CurrentLoad, "load slot freed on failure")
}

func TestRetry_BacklogCapSheds(t *testing.T) {
	b := New()
	register(t, b, "down", "ops")

	// 150 consecutive delivery failures against a cap of 100.
	for i := 0; i < 150; i++ {
		msg := core.NewMessage("sender", "down", core.TaskRequest, nil, core.PriorityMedium)
		b.trackRoute(msg)
		b.parkForRetry("down", msg)
	}

	b.retryMu.Lock()
	backlog := len(b.backlogs["down"])
	b.retryMu.Unlock()
	assert.Equal(t, 100, backlog)
	assert.Equal(t, int64(50), b.GetMetrics().MessagesFailed, "overflow is reported, not silently lost")
}

func TestProcessRetries_SucceedsAndDrains(t *testing.T) {
	b := New()
	agent := register(t, b, "healed", "ops")

	msg := core.NewMessage("sender", "healed", core.TaskRequest, map[string]any{"n": 1}, core.PriorityMedium)
	b.trackRoute(msg)
	b.parkForRetry("healed", msg)

	b.processRetries(context.Background())

	assert.Equal(t, 1, agent.processedCount())
	assert.Equal(t, 0, b.pendingRetries())
	assert.Equal(t, int64(1), b.delivered.Load())
	route, ok := b.Route(msg.ID)
	require.True(t, ok)
	assert.Equal(t, core.RouteDelivered, route.Status)
}

func TestProcessRetries_RenewedFailureRequeues(t *testing.T) {
	b := New()
	agent := register(t, b, "flaky", "ops")
	agent.setErr(errors.New("still down"))

	msg := core.NewMessage("sender", "flaky", core.TaskRequest, nil, core.PriorityMedium)
	b.trackRoute(msg)
	b.parkForRetry("flaky", msg)

	b.processRetries(context.Background())
	assert.Equal(t, 1, b.pendingRetries(), "message re-appended to the tail")

	agent.setErr(nil)
	b.processRetries(context.Background())
	assert.Equal(t, 0, b.pendingRetries())
	assert.Equal(t, int64(1), b.delivered.Load())
}

func TestProcessRetries_UnregisteredRecipientDrops(t *testing.T) {
	b := New()
	register(t, b, "gone", "ops")

	msg := core.NewMessage("sender", "gone", core.TaskRequest, nil, core.PriorityMedium)
	b.trackRoute(msg)
	b.parkForRetry("gone", msg)
	b.registry.remove("gone")

	b.processRetries(context.Background())

	assert.Equal(t, 0, b.pendingRetries())
	assert.Equal(t, int64(1), b.failed.Load())
	route, _ := b.Route(msg.ID)
	assert.Equal(t, core.RouteFailed, route.Status)
}

func TestRetryLoop_RedeliversOnCadence(t *testing.T) {
	b := New(func(o *Options) { o.RetryInterval = 20 * time.Millisecond })
	agent := register(t, b, "flaky", "ops")
	agent.setErr(errors.New("boom"))

	require.NoError(t, b.Start(context.Background()))
	defer func() { require.NoError(t, b.Stop()) }()

	_, err := b.Send("sender", "flaky", core.TaskRequest, nil, core.PriorityMedium, core.RouteDirect)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return b.pendingRetries() == 1
	}, 2*time.Second, 5*time.Millisecond)

	agent.setErr(nil)
	require.Eventually(t, func() bool {
		return b.GetMetrics().MessagesDelivered == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, b.pendingRetries())
}

func TestHealthCheck_PurgesOldRoutes(t *testing.T) {
	b := New()
	now := time.Now().UTC()

	fresh := core.NewMessage("s", "r", core.TaskRequest, nil, core.PriorityMedium)
	b.trackRoute(fresh)
	b.updateRoute(fresh.ID, func(r *core.Route) { r.MarkDelivered(now) })

	stale := core.NewMessage("s", "r", core.TaskRequest, nil, core.PriorityMedium)
	b.trackRoute(stale)
	b.updateRoute(stale.ID, func(r *core.Route) { r.MarkDelivered(now.Add(-2 * time.Hour)) })

	b.runHealthCheck(now)

	_, ok := b.Route(fresh.ID)
	assert.True(t, ok)
	_, ok = b.Route(stale.ID)
	assert.False(t, ok, "routes past retention are purged")
}

func TestHealthCheck_PurgesOldFailedRoutes(t *testing.T) {
	b := New()
	now := time.Now().UTC()

	msg := core.NewMessage("s", "r", core.TaskRequest, nil, core.PriorityMedium)
	msg.CreatedAt = now.Add(-2 * time.Hour)
	b.trackRoute(msg)
	b.updateRoute(msg.ID, func(r *core.Route) { r.MarkFailed() })

	b.runHealthCheck(now)
	_, ok := b.Route(msg.ID)
	assert.False(t, ok)
}

func TestHealthCheck_LeavesPendingRoutesAlone(t *testing.T) {
	b := New()
	now := time.Now().UTC()

	// Stuck in Pending well past the threshold: flagged but never mutated.
	msg := core.NewMessage("s", "r", core.TaskRequest, nil, core.PriorityMedium)
	msg.CreatedAt = now.Add(-10 * time.Minute)
	b.trackRoute(msg)

	b.runHealthCheck(now)

	route, ok := b.Route(msg.ID)
	require.True(t, ok)
	assert.Equal(t, core.RoutePending, route.Status)
}

func TestLatencyRing_Average(t *testing.T) {
	ring := newLatencyRing(3)
	assert.Equal(t, time.Duration(0), ring.average())

	ring.observe(10 * time.Millisecond)
	ring.observe(20 * time.Millisecond)
	assert.Equal(t, 15*time.Millisecond, ring.average())

	// Window slides: capacity 3, four observations.
	ring.observe(30 * time.Millisecond)
	ring.observe(60 * time.Millisecond)
	assert.Equal(t, time.Duration((60+20+30)*time.Millisecond)/3, ring.average())
}

func TestThroughput_Sample(t *testing.T) {
	var ts throughputState
	ts.sample(10, time.Second)
	assert.Equal(t, 10.0, ts.rate())
	ts.sample(25, time.Second)
	assert.Equal(t, 15.0, ts.rate())
}
