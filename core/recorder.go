package core

import "time"

// Recorder is the metrics sink the broker reports into. Implementations must
// be safe for concurrent use. The metrics package provides a Prometheus-backed
// implementation; NopRecorder discards everything.
type Recorder interface {
	// IncSent counts an accepted send per routing strategy.
	IncSent(strategy RoutingStrategy)

	// IncDelivered counts a successful hand-off and observes its latency.
	IncDelivered(agentID string, latency time.Duration)

	// IncFailed counts a routing or delivery failure by reason.
	IncFailed(reason string)

	// SetRetryBacklog reports the current retry backlog depth for an agent.
	SetRetryBacklog(agentID string, depth int)
}

// NopRecorder discards all observations. Useful for tests or when metrics
// are disabled.
type NopRecorder struct{}

// IncSent implements Recorder.
func (NopRecorder) IncSent(RoutingStrategy) {}

// IncDelivered implements Recorder.
func (NopRecorder) IncDelivered(string, time.Duration) {}

// IncFailed implements Recorder.
func (NopRecorder) IncFailed(string) {}

// SetRetryBacklog implements Recorder.
func (NopRecorder) SetRetryBacklog(string, int) {}
