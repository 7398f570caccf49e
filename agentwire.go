// Package agentwire provides a high-level façade over the message broker and
// workflow orchestrator, enabling rapid construction of agent-to-agent
// communication systems. Most applications interact with this package by:
//  1. Creating an AgentWire via New() (optionally overriding defaults)
//  2. Registering one or more agents (function-backed, model-backed, custom)
//  3. Starting the broker and exchanging messages or running workflows
//
// The façade delegates routing and delivery to broker.Broker and pipeline
// sequencing to workflow.Orchestrator while keeping setup concise. All
// defaults are safe for local development and testing; production deployments
// typically supply a structured logger and a Prometheus recorder.
package agentwire

import (
	"context"

	"github.com/agentwire/agentwire/broker"
	"github.com/agentwire/agentwire/core"
	"github.com/agentwire/agentwire/logging"
	"github.com/agentwire/agentwire/workflow"
)

// Options configures the AgentWire instance.
type Options struct {
	// BrokerOptions tune mailboxes, retries and monitoring cadences.
	BrokerOptions []func(o *broker.Options)

	// Logger receives broker and workflow diagnostics (defaults to NoOp).
	Logger logging.Logger

	// Recorder receives broker metrics (defaults to NopRecorder).
	Recorder core.Recorder
}

// AgentWire is the high-level façade aggregating the broker and orchestrator.
type AgentWire struct {
	opts         Options
	broker       *broker.Broker
	orchestrator *workflow.Orchestrator
}

// New creates a new AgentWire instance with optional overrides.
func New(optFns ...func(o *Options)) *AgentWire {
	opts := Options{
		Logger:   logging.NoOpLogger{},
		Recorder: core.NopRecorder{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	brokerOpts := append([]func(o *broker.Options){func(o *broker.Options) {
		o.Logger = opts.Logger
		o.Recorder = opts.Recorder
	}}, opts.BrokerOptions...)

	b := broker.New(brokerOpts...)
	o := workflow.New(b, func(wo *workflow.Options) { wo.Logger = opts.Logger })
	return &AgentWire{opts: opts, broker: b, orchestrator: o}
}

// Broker exposes the underlying message broker.
func (w *AgentWire) Broker() *broker.Broker { return w.broker }

// Orchestrator exposes the underlying workflow orchestrator.
func (w *AgentWire) Orchestrator() *workflow.Orchestrator { return w.orchestrator }

// Start launches the broker's background tasks.
func (w *AgentWire) Start(ctx context.Context) error { return w.broker.Start(ctx) }

// Stop shuts the broker down and waits for in-flight work to settle.
func (w *AgentWire) Stop() error { return w.broker.Stop() }

// RegisterAgent adds an agent to the broker.
func (w *AgentWire) RegisterAgent(info core.AgentInfo, a core.Agent) error {
	return w.broker.Register(info, a)
}

// Send routes a message through the broker.
func (w *AgentWire) Send(
	senderID, recipientID string,
	typ core.MessageType,
	content map[string]any,
	priority core.Priority,
	strategy core.RoutingStrategy,
) (string, error) {
	return w.broker.Send(senderID, recipientID, typ, content, priority, strategy)
}

// ExecuteWorkflow runs a named workflow over the given agents and blocks
// until it completes or fails.
func (w *AgentWire) ExecuteWorkflow(
	ctx context.Context,
	name string,
	data map[string]any,
	agentIDs []string,
) (string, error) {
	return w.orchestrator.Execute(ctx, name, data, agentIDs)
}
