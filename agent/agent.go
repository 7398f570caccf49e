// Package agent provides ready-made implementations of the core.Agent
// interface: function-backed agents for plain Go logic, model-backed agents
// for LLM work, and a manager agent that delegates into a broker-managed team.
package agent

import (
	"context"
)

// TaskFunc is the processing function wrapped by a FuncAgent.
type TaskFunc func(ctx context.Context, payload map[string]any) (map[string]any, error)

// FuncAgent adapts a plain function to the core.Agent interface.
type FuncAgent struct {
	fn   TaskFunc
	caps []string
}

// NewFuncAgent wraps fn as an agent advertising the given capabilities.
func NewFuncAgent(fn TaskFunc, capabilities ...string) *FuncAgent {
	return &FuncAgent{fn: fn, caps: capabilities}
}

// ProcessTask implements core.Agent.
func (a *FuncAgent) ProcessTask(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return a.fn(ctx, payload)
}

// Capabilities implements core.Agent.
func (a *FuncAgent) Capabilities() []string { return a.caps }
