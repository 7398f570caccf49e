package core

import "context"

// Agent is the external unit of work coordinated by the broker.
//
// ProcessTask may take arbitrary wall-clock time (implementations are free to
// call an external inference service) and must respect context cancellation.
// The broker neither knows nor cares how the result was produced, only that a
// structured map (or an error) comes back within the call.
type Agent interface {
	// ProcessTask performs one unit of work described by the payload.
	ProcessTask(ctx context.Context, payload map[string]any) (map[string]any, error)

	// Capabilities advertises the skill tags used by skill-based routing.
	Capabilities() []string
}

// AgentInfo carries the identity the broker indexes an agent under.
// Department groups agents for broadcast, round-robin and load-balanced
// routing.
type AgentInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// AgentStatus is a point-in-time snapshot of one registered agent as reported
// by the broker.
type AgentStatus struct {
	Name         string   `json:"name"`
	Department   string   `json:"department"`
	CurrentLoad  int      `json:"current_load"`
	QueueSize    int      `json:"queue_size"`
	Capabilities []string `json:"capabilities"`
	Active       bool     `json:"active"`
}
