package agent

import (
	"context"
	"fmt"

	"github.com/agentwire/agentwire/core"
)

// Dispatcher is the slice of the broker a ManagerAgent needs to hand work to
// its team. *broker.Broker satisfies it.
type Dispatcher interface {
	Send(senderID, recipientID string, typ core.MessageType, content map[string]any,
		priority core.Priority, strategy core.RoutingStrategy) (string, error)
}

// ManagerAgentOptions configures a ManagerAgent.
type ManagerAgentOptions struct {
	// Strategy selects how work spreads across the team.
	Strategy core.RoutingStrategy
	// Priority applied to delegated tasks.
	Priority core.Priority
	// Capabilities are advertised for skill-based routing.
	Capabilities []string
}

// ManagerAgent delegates every task to its department through the broker
// instead of doing the work itself. The hand-off is asynchronous: the result
// reported is which team member got the work, not the work's outcome.
type ManagerAgent struct {
	name       string
	department string
	dispatcher Dispatcher
	opts       ManagerAgentOptions
}

// NewManagerAgent creates a manager that spreads tasks across department.
func NewManagerAgent(name, department string, d Dispatcher, optFns ...func(o *ManagerAgentOptions)) *ManagerAgent {
	opts := ManagerAgentOptions{
		Strategy: core.RouteLoadBalanced,
		Priority: core.PriorityHigh,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ManagerAgent{name: name, department: department, dispatcher: d, opts: opts}
}

// ProcessTask implements core.Agent by re-routing the payload to the team.
func (a *ManagerAgent) ProcessTask(_ context.Context, payload map[string]any) (map[string]any, error) {
	messageID, err := a.dispatcher.Send(a.name, a.department, core.TaskRequest, payload, a.opts.Priority, a.opts.Strategy)
	if err != nil {
		return nil, fmt.Errorf("manager %s: delegate to %s: %w", a.name, a.department, err)
	}
	return map[string]any{
		"delegated_to": a.department,
		"message_id":   messageID,
	}, nil
}

// Capabilities implements core.Agent.
func (a *ManagerAgent) Capabilities() []string { return a.opts.Capabilities }
