// Package workflow sequences registered agents into named pipelines on top of
// the broker, tracking the lifecycle of every run. The default behavior is a
// strict sequential pipeline; custom templates may implement arbitrary
// fan-out/fan-in against the broker.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentwire/agentwire/broker"
	"github.com/agentwire/agentwire/core"
	"github.com/agentwire/agentwire/logging"
)

// OrchestratorID is the sender id used for audit messages issued per step.
const OrchestratorID = "workflow_orchestrator"

// ErrStepFailed wraps the agent error that terminated a workflow.
var ErrStepFailed = errors.New("workflow step failed")

// Status is the lifecycle state of a workflow instance. Completed and Failed
// are terminal; there is no re-entry.
type Status string

const (
	// StatusRunning means steps are still executing.
	StatusRunning Status = "running"
	// StatusCompleted means every step finished and the result is set.
	StatusCompleted Status = "completed"
	// StatusFailed means a step errored; remaining steps were not executed.
	StatusFailed Status = "failed"
)

// StepRecord documents one completed pipeline step.
type StepRecord struct {
	Step      int       `json:"step"`
	AgentID   string    `json:"agent_id"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Instance is the tracked state of one workflow run. It is created Running
// and mutated only by the orchestrator until it reaches a terminal status.
type Instance struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Input          map[string]any `json:"input"`
	Participants   []string       `json:"participants"`
	Status         Status         `json:"status"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	StepsCompleted []StepRecord   `json:"steps_completed"`
	Result         map[string]any `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// TemplateFunc is a custom workflow implementation. It receives the broker
// and may route messages however it likes; its return value becomes the
// instance result.
type TemplateFunc func(ctx context.Context, data map[string]any, agentIDs []string, b *broker.Broker) (map[string]any, error)

// Options holds dependency overrides passed to New().
type Options struct {
	// Logger receives workflow diagnostics (defaults to NoOp).
	Logger logging.Logger
}

// Orchestrator runs named multi-step agent sequences through a broker.
// Public methods are safe for concurrent use.
type Orchestrator struct {
	broker *broker.Broker
	logger logging.Logger

	mu        sync.RWMutex
	instances map[string]*Instance
	templates map[string]TemplateFunc
}

// New constructs an Orchestrator bound to a broker.
func New(b *broker.Broker, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		broker:    b,
		logger:    opts.Logger,
		instances: make(map[string]*Instance),
		templates: make(map[string]TemplateFunc),
	}
}

// RegisterTemplate binds a custom workflow implementation to a name. Executing
// that name delegates entirely to the template instead of the default
// sequential pipeline.
func (o *Orchestrator) RegisterTemplate(name string, fn TemplateFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.templates[name] = fn
}

// Execute runs the named workflow over the given agents and blocks until it
// reaches a terminal status. The workflow id is returned in both cases; on
// failure the error is additionally recorded on the instance, observable via
// GetStatus.
func (o *Orchestrator) Execute(ctx context.Context, name string, data map[string]any, agentIDs []string) (string, error) {
	instance := &Instance{
		ID:           core.NewID(),
		Name:         name,
		Input:        data,
		Participants: append([]string(nil), agentIDs...),
		Status:       StatusRunning,
		StartedAt:    time.Now().UTC(),
	}
	o.mu.Lock()
	o.instances[instance.ID] = instance
	template := o.templates[name]
	o.mu.Unlock()

	var result map[string]any
	var err error
	if template != nil {
		result, err = template(ctx, data, agentIDs, o.broker)
	} else {
		result, err = o.runSequential(ctx, instance, data, agentIDs)
	}

	now := time.Now().UTC()
	o.mu.Lock()
	instance.FinishedAt = &now
	if err != nil {
		instance.Status = StatusFailed
		instance.Error = err.Error()
	} else {
		instance.Status = StatusCompleted
		instance.Result = result
	}
	status := instance.Status
	steps := len(instance.StepsCompleted)
	o.mu.Unlock()

	if wl, ok := o.logger.(interface {
		LogWorkflowRun(workflowID, name string, steps int, dur time.Duration, success bool, err error)
	}); ok {
		wl.LogWorkflowRun(instance.ID, name, steps, now.Sub(instance.StartedAt), err == nil, err)
	} else {
		o.logger.Info("workflow %s (%s) finished status=%s steps=%d", instance.ID, name, status, steps)
	}
	if err != nil {
		return instance.ID, err
	}
	return instance.ID, nil
}

// runSequential is the default pipeline: each agent runs in order, receiving
// the original input plus the accumulated results of earlier steps. The
// orchestrator calls the agent directly and uses the broker only to record
// the step for audit. The first error terminates the pipeline; effects of
// earlier steps are not rolled back.
func (o *Orchestrator) runSequential(ctx context.Context, instance *Instance, data map[string]any, agentIDs []string) (map[string]any, error) {
	results := make([]map[string]any, 0, len(agentIDs))

	for i, agentID := range agentIDs {
		step := i + 1
		payload := make(map[string]any, len(data)+2)
		for k, v := range data {
			payload[k] = v
		}
		payload["step"] = step
		payload["previous_results"] = append([]map[string]any(nil), results...)

		agent, ok := o.broker.Agent(agentID)
		if !ok {
			return nil, fmt.Errorf("step %d: agent %s: %w (%w)", step, agentID, core.ErrUnknownRecipient, ErrStepFailed)
		}

		messageID, err := o.broker.Send(OrchestratorID, agentID, core.TaskRequest, payload, core.PriorityHigh, core.RouteDirect)
		if err != nil {
			return nil, fmt.Errorf("step %d: record task for %s: %w (%w)", step, agentID, err, ErrStepFailed)
		}

		output, err := agent.ProcessTask(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("step %d: agent %s: %w (%w)", step, agentID, err, ErrStepFailed)
		}
		results = append(results, output)

		o.mu.Lock()
		instance.StepsCompleted = append(instance.StepsCompleted, StepRecord{
			Step:      step,
			AgentID:   agentID,
			MessageID: messageID,
			Timestamp: time.Now().UTC(),
		})
		o.mu.Unlock()
	}

	result := map[string]any{
		"steps_completed": len(results),
		"results":         results,
	}
	if len(results) > 0 {
		result["final"] = results[len(results)-1]
	}
	return result, nil
}

// GetStatus returns a copy of the instance, or nil for an unknown id.
func (o *Orchestrator) GetStatus(workflowID string) *Instance {
	o.mu.RLock()
	defer o.mu.RUnlock()
	instance, ok := o.instances[workflowID]
	if !ok {
		return nil
	}
	cp := o.copyLocked(instance)
	return &cp
}

// ListAll returns a snapshot of every workflow instance keyed by id.
func (o *Orchestrator) ListAll() map[string]Instance {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]Instance, len(o.instances))
	for id, instance := range o.instances {
		out[id] = o.copyLocked(instance)
	}
	return out
}

// copyLocked clones an instance; caller must hold o.mu.
func (o *Orchestrator) copyLocked(instance *Instance) Instance {
	cp := *instance
	cp.Participants = append([]string(nil), instance.Participants...)
	cp.StepsCompleted = append([]StepRecord(nil), instance.StepsCompleted...)
	return cp
}
