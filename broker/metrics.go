package broker

import (
	"context"
	"sync"
	"time"

	"github.com/agentwire/agentwire/core"
)

// Metrics is a point-in-time snapshot of broker throughput and delivery
// accounting, as returned by GetMetrics.
type Metrics struct {
	MessagesSent        int64         `json:"messages_sent"`
	MessagesDelivered   int64         `json:"messages_delivered"`
	MessagesFailed      int64         `json:"messages_failed"`
	SuccessRate         float64       `json:"success_rate"`
	AvgDeliveryLatency  time.Duration `json:"avg_delivery_latency"`
	ThroughputPerSecond float64       `json:"throughput_per_second"`
	ActiveRoutes        int           `json:"active_routes"`
	PendingRetries      int           `json:"pending_retries"`
	ActiveAgents        int           `json:"active_agents"`
}

// SendRecord is one entry of the bounded send history.
type SendRecord struct {
	MessageID string               `json:"message_id"`
	SenderID  string               `json:"sender_id"`
	Recipient string               `json:"recipient"`
	Strategy  core.RoutingStrategy `json:"strategy"`
	Timestamp time.Time            `json:"timestamp"`
	Success   bool                 `json:"success"`
}

// historyRing is a fixed-capacity ring of send outcomes. When full, the
// oldest record is evicted.
type historyRing struct {
	mu      sync.Mutex
	records []SendRecord
	head    int
	full    bool
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{records: make([]SendRecord, capacity)}
}

func (h *historyRing) append(rec SendRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[h.head] = rec
	h.head = (h.head + 1) % len(h.records)
	if h.head == 0 {
		h.full = true
	}
}

// snapshot returns the retained records, oldest first.
func (h *historyRing) snapshot() []SendRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		out := make([]SendRecord, h.head)
		copy(out, h.records[:h.head])
		return out
	}
	out := make([]SendRecord, 0, len(h.records))
	out = append(out, h.records[h.head:]...)
	out = append(out, h.records[:h.head]...)
	return out
}

// latencyRing keeps the delivery latencies of the last N delivered routes.
type latencyRing struct {
	mu        sync.Mutex
	latencies []time.Duration
	head      int
	count     int
}

func newLatencyRing(capacity int) *latencyRing {
	return &latencyRing{latencies: make([]time.Duration, capacity)}
}

func (l *latencyRing) observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.latencies[l.head] = d
	l.head = (l.head + 1) % len(l.latencies)
	if l.count < len(l.latencies) {
		l.count++
	}
}

func (l *latencyRing) average() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < l.count; i++ {
		sum += l.latencies[i]
	}
	return sum / time.Duration(l.count)
}

// throughputState holds the rolling delivered-per-second rate computed by the
// metrics updater.
type throughputState struct {
	mu            sync.Mutex
	perSecond     float64
	lastDelivered int64
}

func (t *throughputState) sample(delivered int64, interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if interval > 0 {
		t.perSecond = float64(delivered-t.lastDelivered) / interval.Seconds()
	}
	t.lastDelivered = delivered
}

func (t *throughputState) rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.perSecond
}

// routeEntry pairs a route with its creation time so the health monitor can
// age it without consulting the message.
type routeEntry struct {
	route   *core.Route
	created time.Time
}

// trackRoute creates and stores a Pending route for the message. Mutations
// after this point go through updateRoute so the route is only ever touched
// under routesMu.
func (b *Broker) trackRoute(msg core.Message) {
	route := core.NewRoute(msg.ID, msg.SenderID, msg.RecipientID)
	b.routesMu.Lock()
	defer b.routesMu.Unlock()
	b.routes[msg.ID] = &routeEntry{route: route, created: msg.CreatedAt}
}

// updateRoute applies fn to the tracked route for the message id, if any.
func (b *Broker) updateRoute(messageID string, fn func(*core.Route)) {
	b.routesMu.Lock()
	defer b.routesMu.Unlock()
	if entry, ok := b.routes[messageID]; ok {
		fn(entry.route)
	}
}

// Route returns a copy of the delivery-tracking record for a message. The
// second return is false once the record has been purged or never existed.
func (b *Broker) Route(messageID string) (core.Route, bool) {
	b.routesMu.Lock()
	defer b.routesMu.Unlock()
	entry, ok := b.routes[messageID]
	if !ok {
		return core.Route{}, false
	}
	route := *entry.route
	route.Hops = append([]string(nil), entry.route.Hops...)
	return route, true
}

func (b *Broker) activeRouteCount() int {
	b.routesMu.Lock()
	defer b.routesMu.Unlock()
	return len(b.routes)
}

// metricsLoop recomputes rolling throughput on its cadence.
func (b *Broker) metricsLoop(ctx context.Context) error {
	ticker := time.NewTicker(b.opts.MetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.throughput.sample(b.delivered.Load(), b.opts.MetricsInterval)
		}
	}
}

// healthLoop runs the health check on its cadence.
func (b *Broker) healthLoop(ctx context.Context) error {
	ticker := time.NewTicker(b.opts.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.runHealthCheck(time.Now().UTC())
		}
	}
}

// runHealthCheck flags stuck routes and overloaded agents and purges route
// records past the retention window. It is observability-only: nothing here
// mutates business state.
func (b *Broker) runHealthCheck(now time.Time) {
	var stuck []string
	b.routesMu.Lock()
	for id, entry := range b.routes {
		if entry.route.Status == core.RoutePending && now.Sub(entry.created) > b.opts.StuckThreshold {
			stuck = append(stuck, id)
		}
		expired := entry.route.DeliveryTime != nil && now.Sub(*entry.route.DeliveryTime) > b.opts.RouteRetention
		if !expired && entry.route.Status == core.RouteFailed && now.Sub(entry.created) > b.opts.RouteRetention {
			expired = true
		}
		if expired {
			delete(b.routes, id)
		}
	}
	b.routesMu.Unlock()

	if len(stuck) > 0 {
		b.logger.Warn("found %d routes stuck in pending", len(stuck))
	}

	for _, entry := range b.registry.entries() {
		if load := b.registry.load(entry.info.ID); load > b.opts.HighLoadThreshold {
			b.logger.Warn("agent %s under high load: %d in-flight messages", entry.info.ID, load)
		}
	}

	b.retryMu.Lock()
	for agentID, backlog := range b.backlogs {
		b.recorder.SetRetryBacklog(agentID, len(backlog))
	}
	b.retryMu.Unlock()
}
