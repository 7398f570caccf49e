package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentwire/agentwire/core"
	"github.com/agentwire/agentwire/model"
)

// TaskKey is the payload key a ModelAgent reads its task text from. Payloads
// without it are serialized wholesale into the prompt.
const TaskKey = "task"

// ModelAgentOptions configures a ModelAgent instance.
type ModelAgentOptions struct {
	// Instruction is the system prompt sent with every task.
	Instruction string
	// Capabilities are advertised for skill-based routing.
	Capabilities []string
	// Memory, when set, records each task/response pair as an interaction.
	Memory core.MemoryStore
}

// ModelAgent answers tasks by delegating to a language model. When a memory
// store is configured, every exchange is remembered under the agent's name.
type ModelAgent struct {
	name string
	llm  model.Model
	opts ModelAgentOptions
}

// NewModelAgent creates a model-backed agent.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction: fmt.Sprintf("You are %s, a helpful assistant.", name),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelAgent{name: name, llm: llm, opts: opts}
}

// ProcessTask implements core.Agent. The task text comes from the "task"
// payload key, falling back to the JSON form of the whole payload.
func (a *ModelAgent) ProcessTask(ctx context.Context, payload map[string]any) (map[string]any, error) {
	text, _ := payload[TaskKey].(string)
	if text == "" {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("agent %s: encode task: %w", a.name, err)
		}
		text = string(encoded)
	}

	resp, err := a.llm.Complete(ctx, model.Request{
		System:   a.opts.Instruction,
		Messages: []model.Message{{Role: "user", Text: text}},
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.name, err)
	}

	if a.opts.Memory != nil {
		metadata := map[string]any{}
		if entityID, ok := payload[core.EntityIDKey].(string); ok {
			metadata[core.EntityIDKey] = entityID
		}
		if _, err := a.opts.Memory.Remember(a.name, "interaction",
			map[string]any{"task": text, "response": resp.Text}, metadata); err != nil {
			return nil, fmt.Errorf("agent %s: remember interaction: %w", a.name, err)
		}
	}

	return map[string]any{
		"response": resp.Text,
		"model":    a.llm.Info().Name,
	}, nil
}

// Capabilities implements core.Agent.
func (a *ModelAgent) Capabilities() []string { return a.opts.Capabilities }
