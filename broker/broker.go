package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentwire/agentwire/core"
	"github.com/agentwire/agentwire/logging"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// MailboxSize bounds each agent's FIFO mailbox.
	MailboxSize int
	// EnqueueTimeout is how long Send blocks on a full mailbox before
	// failing with ErrMailboxFull.
	EnqueueTimeout time.Duration
	// RetryInterval is the retry manager cadence.
	RetryInterval time.Duration
	// RetryBacklogCap bounds each agent's retry backlog; overflow entries
	// are dropped and reported as permanent failures.
	RetryBacklogCap int
	// MetricsInterval is the throughput sampling cadence.
	MetricsInterval time.Duration
	// HealthInterval is the health monitor cadence.
	HealthInterval time.Duration
	// RouteRetention is how long route records outlive delivery before the
	// health monitor purges them.
	RouteRetention time.Duration
	// StuckThreshold is the Pending age past which a route is flagged.
	StuckThreshold time.Duration
	// HighLoadThreshold is the in-flight load past which an agent is flagged.
	HighLoadThreshold int
	// LatencyWindow is how many delivered routes the average latency spans.
	LatencyWindow int
	// HistorySize bounds the send-outcome history ring.
	HistorySize int
	// Logger receives broker diagnostics (defaults to NoOp).
	Logger logging.Logger
	// Recorder receives broker metrics (defaults to NopRecorder).
	Recorder core.Recorder
}

func defaultOptions() Options {
	return Options{
		MailboxSize:       100,
		EnqueueTimeout:    250 * time.Millisecond,
		RetryInterval:     time.Second,
		RetryBacklogCap:   100,
		MetricsInterval:   10 * time.Second,
		HealthInterval:    time.Minute,
		RouteRetention:    time.Hour,
		StuckThreshold:    5 * time.Minute,
		HighLoadThreshold: 1000,
		LatencyWindow:     100,
		HistorySize:       10000,
		Logger:            logging.NoOpLogger{},
		Recorder:          core.NopRecorder{},
	}
}

// Broker is the central message broker for agent-to-agent communication.
// Construct with New, wire agents with Register, then Start. Public methods
// are safe for concurrent use.
type Broker struct {
	opts     Options
	logger   logging.Logger
	recorder core.Recorder

	registry *registry

	mu      sync.Mutex // guards lifecycle state below
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group

	routesMu sync.Mutex
	routes   map[string]*routeEntry

	retryMu  sync.Mutex
	backlogs map[string][]core.Message

	sent      atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64

	latencies  *latencyRing
	throughput throughputState
	history    *historyRing
}

// New constructs a Broker with optional overrides.
func New(optFns ...func(o *Options)) *Broker {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Broker{
		opts:      opts,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		registry:  newRegistry(),
		routes:    make(map[string]*routeEntry),
		backlogs:  make(map[string][]core.Message),
		latencies: newLatencyRing(opts.LatencyWindow),
		history:   newHistoryRing(opts.HistorySize),
	}
}

// Start launches the broker's background tasks: one delivery worker per
// registered agent plus the retry manager, metrics updater and health
// monitor. It returns immediately; the tasks run until Stop is called or ctx
// is cancelled.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return errors.New("broker already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	b.ctx = groupCtx
	b.cancel = cancel
	b.group = group
	b.started = true

	group.Go(func() error { return b.retryLoop(groupCtx) })
	group.Go(func() error { return b.metricsLoop(groupCtx) })
	group.Go(func() error { return b.healthLoop(groupCtx) })
	for _, entry := range b.registry.entries() {
		b.startWorker(entry)
	}

	b.logger.Info("message broker started")
	return nil
}

// Stop cancels all background tasks and waits for them to finish. It is safe
// to call with messages in flight: deliveries either complete or are
// abandoned, and route state simply remains whatever it was at cancellation.
// Stopping a broker that never started is a no-op.
func (b *Broker) Stop() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = false
	cancel, group := b.cancel, b.group
	b.mu.Unlock()

	cancel()
	err := group.Wait()
	b.logger.Info("message broker stopped")
	return err
}

// startWorker spawns the delivery worker for one agent. Caller must hold b.mu.
func (b *Broker) startWorker(entry *agentEntry) {
	workerCtx, cancel := context.WithCancel(b.ctx)
	b.registry.activate(entry.info.ID, cancel)
	b.group.Go(func() error {
		b.deliveryWorker(workerCtx, entry)
		return nil
	})
}

// Register creates a mailbox and record for the agent and indexes its
// declared capabilities for skill-based lookup. If the broker is already
// running the agent's delivery worker starts immediately.
func (b *Broker) Register(info core.AgentInfo, a core.Agent) error {
	if info.ID == "" {
		return errors.New("agent id must not be empty")
	}
	if a == nil {
		return errors.New("agent must not be nil")
	}
	entry, err := b.registry.add(info, a, b.opts.MailboxSize)
	if err != nil {
		return fmt.Errorf("register %s: %w", info.ID, err)
	}
	b.mu.Lock()
	if b.started {
		b.startWorker(entry)
	}
	b.mu.Unlock()
	b.logger.Info("agent %s (%s) registered with broker", info.ID, info.Name)
	return nil
}

// Unregister removes the agent, its mailbox and its retry backlog, and stops
// its delivery worker. Unregistering an unknown id is a no-op.
func (b *Broker) Unregister(id string) {
	entry := b.registry.remove(id)
	if entry == nil {
		return
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	b.retryMu.Lock()
	delete(b.backlogs, id)
	b.retryMu.Unlock()
	b.logger.Info("agent %s unregistered from broker", id)
}

// Agent returns the registered agent for an id, for callers (such as the
// workflow orchestrator) that invoke agents directly.
func (b *Broker) Agent(id string) (core.Agent, bool) {
	entry, ok := b.registry.get(id)
	if !ok {
		return nil, false
	}
	return entry.agent, true
}

// Send creates a message, resolves its recipient(s) per the strategy and
// enqueues it. The message id is returned even when routing fails so callers
// can correlate the failure. Routing failures are reported synchronously
// through the error; delivery failures are recovered via the retry backlog
// and surface only through metrics and logs.
func (b *Broker) Send(
	senderID, recipientID string,
	typ core.MessageType,
	content map[string]any,
	priority core.Priority,
	strategy core.RoutingStrategy,
) (string, error) {
	msg := core.NewMessage(senderID, recipientID, typ, content, priority)
	b.trackRoute(msg)

	if err := b.routeMessage(&msg, strategy); err != nil {
		b.updateRoute(msg.ID, func(r *core.Route) { r.MarkFailed() })
		b.failed.Add(1)
		b.recorder.IncFailed(failureReason(err))
		b.history.append(SendRecord{
			MessageID: msg.ID,
			SenderID:  senderID,
			Recipient: msg.RecipientID,
			Strategy:  strategy,
			Timestamp: time.Now().UTC(),
		})
		b.logger.Warn("routing message %s via %s failed: %v", msg.ID, strategy, err)
		return msg.ID, fmt.Errorf("route message %s: %w", msg.ID, err)
	}

	b.sent.Add(1)
	b.recorder.IncSent(strategy)
	b.history.append(SendRecord{
		MessageID: msg.ID,
		SenderID:  senderID,
		Recipient: msg.RecipientID,
		Strategy:  strategy,
		Timestamp: time.Now().UTC(),
		Success:   true,
	})
	return msg.ID, nil
}

// GetMetrics returns a snapshot of broker throughput and delivery accounting.
func (b *Broker) GetMetrics() Metrics {
	sent := b.sent.Load()
	delivered := b.delivered.Load()
	rate := 0.0
	if sent > 0 {
		rate = float64(delivered) / float64(sent)
	}
	return Metrics{
		MessagesSent:        sent,
		MessagesDelivered:   delivered,
		MessagesFailed:      b.failed.Load(),
		SuccessRate:         rate,
		AvgDeliveryLatency:  b.latencies.average(),
		ThroughputPerSecond: b.throughput.rate(),
		ActiveRoutes:        b.activeRouteCount(),
		PendingRetries:      b.pendingRetries(),
		ActiveAgents:        len(b.registry.allIDs()),
	}
}

// GetAgentStatus returns a snapshot of every registered agent.
func (b *Broker) GetAgentStatus() map[string]core.AgentStatus {
	return b.registry.status()
}

// History returns the retained send outcomes, oldest first.
func (b *Broker) History() []SendRecord {
	return b.history.snapshot()
}
