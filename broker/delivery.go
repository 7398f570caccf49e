package broker

import (
	"context"
	"time"

	"github.com/agentwire/agentwire/core"
)

// deliveryWorker drains one agent's mailbox for the lifetime of its
// registration. Every agent gets its own worker so a slow ProcessTask never
// stalls delivery to other agents; per-mailbox FIFO order is preserved.
func (b *Broker) deliveryWorker(ctx context.Context, entry *agentEntry) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-entry.mailbox:
			b.deliver(ctx, entry, msg)
		}
	}
}

// deliver hands one message to the agent. On success the route moves to
// Delivered and the delivered metric advances. On failure the message is
// parked in the agent's retry backlog; the load slot is freed either way
// because the retry is tracked separately, not as outstanding load.
func (b *Broker) deliver(ctx context.Context, entry *agentEntry, msg core.Message) {
	_, err := entry.agent.ProcessTask(ctx, msg.Content)
	b.registry.decLoad(entry.info.ID)
	if err != nil {
		derr := &core.DeliveryError{AgentID: entry.info.ID, MessageID: msg.ID, Err: err}
		b.logDelivery(entry.info.ID, msg.ID, 0, false, derr)
		b.parkForRetry(entry.info.ID, msg)
		return
	}
	b.recordDelivered(entry.info.ID, msg)
}

// logDelivery prefers the structured delivery helper when the configured
// logger provides one (BrokerLogger does), falling back to plain messages.
func (b *Broker) logDelivery(agentID, messageID string, latency time.Duration, success bool, err error) {
	if dl, ok := b.logger.(interface {
		LogDelivery(agentID, messageID string, latency time.Duration, success bool, err error)
	}); ok {
		dl.LogDelivery(agentID, messageID, latency, success, err)
		return
	}
	if success {
		b.logger.Debug("message %s delivered to %s in %s", messageID, agentID, latency)
	} else {
		b.logger.Error("delivery failed: %v", err)
	}
}

// logRetry mirrors logDelivery for retry park/drop events.
func (b *Broker) logRetry(agentID, messageID string, backlog int, dropped bool) {
	if rl, ok := b.logger.(interface {
		LogRetry(agentID, messageID string, backlog int, dropped bool)
	}); ok {
		rl.LogRetry(agentID, messageID, backlog, dropped)
		return
	}
	if dropped {
		b.logger.Error("retry backlog for %s exhausted, dropping message %s", agentID, messageID)
	} else {
		b.logger.Info("message %s parked for retry to %s (backlog %d)", messageID, agentID, backlog)
	}
}

// recordDelivered updates the route, counters and latency window for one
// successful hand-off.
func (b *Broker) recordDelivered(agentID string, msg core.Message) {
	now := time.Now().UTC()
	b.updateRoute(msg.ID, func(r *core.Route) { r.MarkDelivered(now) })
	b.delivered.Add(1)
	latency := now.Sub(msg.CreatedAt)
	b.latencies.observe(latency)
	b.recorder.IncDelivered(agentID, latency)
	b.logDelivery(agentID, msg.ID, latency, true, nil)
}

// parkForRetry appends the message to the agent's retry backlog. The backlog
// never exceeds its cap: overflow is a permanent delivery failure, counted
// and logged rather than silently lost.
func (b *Broker) parkForRetry(agentID string, msg core.Message) {
	b.retryMu.Lock()
	backlog := b.backlogs[agentID]
	if len(backlog) < b.opts.RetryBacklogCap {
		b.backlogs[agentID] = append(backlog, msg)
		depth := len(b.backlogs[agentID])
		b.retryMu.Unlock()
		b.recorder.SetRetryBacklog(agentID, depth)
		b.logRetry(agentID, msg.ID, depth, false)
		return
	}
	b.retryMu.Unlock()

	b.updateRoute(msg.ID, func(r *core.Route) { r.MarkFailed() })
	b.failed.Add(1)
	b.recorder.IncFailed(failureReason(core.ErrRetryExhausted))
	b.logRetry(agentID, msg.ID, b.opts.RetryBacklogCap, true)
}

// retryLoop re-attempts parked deliveries on a fixed cadence.
func (b *Broker) retryLoop(ctx context.Context) error {
	ticker := time.NewTicker(b.opts.RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.processRetries(ctx)
		}
	}
}

// processRetries pops the oldest backlog entry of each agent and attempts the
// hand-off again. Renewed failures go back to the tail while the backlog is
// under cap; otherwise the message is permanently dropped and reported.
// Retries are unbounded in count but bounded in concurrently-held volume,
// which is the back-pressure mechanism for a permanently-down agent.
func (b *Broker) processRetries(ctx context.Context) {
	b.retryMu.Lock()
	attempts := make(map[string]core.Message)
	for agentID, backlog := range b.backlogs {
		if len(backlog) == 0 {
			continue
		}
		attempts[agentID] = backlog[0]
		b.backlogs[agentID] = backlog[1:]
	}
	b.retryMu.Unlock()

	for agentID, msg := range attempts {
		entry, ok := b.registry.get(agentID)
		if !ok {
			// Recipient unregistered while parked; nothing left to retry against.
			b.updateRoute(msg.ID, func(r *core.Route) { r.MarkFailed() })
			b.failed.Add(1)
			b.recorder.IncFailed("recipient_unregistered")
			b.logger.Warn("dropping retry for unregistered agent %s message %s", agentID, msg.ID)
			continue
		}
		if _, err := entry.agent.ProcessTask(ctx, msg.Content); err != nil {
			b.logger.Warn("retry for message %s to %s failed: %v", msg.ID, agentID, err)
			b.parkForRetry(agentID, msg)
			continue
		}
		b.logger.Info("retry for message %s to %s succeeded", msg.ID, agentID)
		b.recordDelivered(agentID, msg)
	}
}

// pendingRetries reports the total parked message count across agents.
func (b *Broker) pendingRetries() int {
	b.retryMu.Lock()
	defer b.retryMu.Unlock()
	total := 0
	for _, backlog := range b.backlogs {
		total += len(backlog)
	}
	return total
}
