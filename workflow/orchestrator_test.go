package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/broker"
	"github.com/agentwire/agentwire/core"
)

// scriptedAgent records the payloads it receives and can be told to fail.
type scriptedAgent struct {
	mu       sync.Mutex
	err      error
	payloads []map[string]any
	output   map[string]any
}

func (a *scriptedAgent) ProcessTask(_ context.Context, payload map[string]any) (map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.payloads = append(a.payloads, payload)
	return a.output, nil
}

func (a *scriptedAgent) Capabilities() []string { return nil }

func (a *scriptedAgent) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.payloads)
}

func setup(t *testing.T, agents map[string]*scriptedAgent) (*broker.Broker, *Orchestrator) {
	t.Helper()
	b := broker.New()
	for id, a := range agents {
		require.NoError(t, b.Register(core.AgentInfo{ID: id, Name: id, Department: "ops"}, a))
	}
	return b, New(b)
}

func TestExecute_SequentialPipeline(t *testing.T) {
	intake := &scriptedAgent{output: map[string]any{"stage": "intake"}}
	triage := &scriptedAgent{output: map[string]any{"stage": "triage"}}
	resolve := &scriptedAgent{output: map[string]any{"stage": "resolve"}}
	_, o := setup(t, map[string]*scriptedAgent{"intake": intake, "triage": triage, "resolve": resolve})

	id, err := o.Execute(context.Background(), "support_ticket", map[string]any{"ticket": 42}, []string{"intake", "triage", "resolve"})
	require.NoError(t, err)

	instance := o.GetStatus(id)
	require.NotNil(t, instance)
	assert.Equal(t, StatusCompleted, instance.Status)
	assert.Equal(t, "support_ticket", instance.Name)
	require.NotNil(t, instance.FinishedAt)
	require.Len(t, instance.StepsCompleted, 3)
	assert.Equal(t, 1, instance.StepsCompleted[0].Step)
	assert.Equal(t, "intake", instance.StepsCompleted[0].AgentID)
	assert.NotEmpty(t, instance.StepsCompleted[0].MessageID)

	assert.Equal(t, 3, instance.Result["steps_completed"])
	assert.Equal(t, map[string]any{"stage": "resolve"}, instance.Result["final"])
	assert.Empty(t, instance.Error)
}

func TestExecute_ThreadsPreviousResults(t *testing.T) {
	first := &scriptedAgent{output: map[string]any{"stage": "first"}}
	second := &scriptedAgent{output: map[string]any{"stage": "second"}}
	_, o := setup(t, map[string]*scriptedAgent{"first": first, "second": second})

	_, err := o.Execute(context.Background(), "pipeline", map[string]any{"input": "x"}, []string{"first", "second"})
	require.NoError(t, err)

	require.Len(t, second.payloads, 1)
	payload := second.payloads[0]
	assert.Equal(t, "x", payload["input"])
	assert.Equal(t, 2, payload["step"])
	previous, ok := payload["previous_results"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, previous, 1)
	assert.Equal(t, "first", previous[0]["stage"])
}

func TestExecute_StepFailureShortCircuits(t *testing.T) {
	a1 := &scriptedAgent{output: map[string]any{"n": 1}}
	a2 := &scriptedAgent{err: errors.New("model unavailable")}
	a3 := &scriptedAgent{output: map[string]any{"n": 3}}
	a4 := &scriptedAgent{output: map[string]any{"n": 4}}
	_, o := setup(t, map[string]*scriptedAgent{"a1": a1, "a2": a2, "a3": a3, "a4": a4})

	id, err := o.Execute(context.Background(), "four_step", nil, []string{"a1", "a2", "a3", "a4"})
	require.ErrorIs(t, err, ErrStepFailed)

	instance := o.GetStatus(id)
	require.NotNil(t, instance)
	assert.Equal(t, StatusFailed, instance.Status)
	assert.Contains(t, instance.Error, "model unavailable")
	assert.Len(t, instance.StepsCompleted, 1, "only the first step completed")
	assert.Nil(t, instance.Result)
	assert.Equal(t, 0, a3.calls(), "later steps must not run")
	assert.Equal(t, 0, a4.calls())
}

func TestExecute_UnknownAgentFails(t *testing.T) {
	_, o := setup(t, map[string]*scriptedAgent{"known": {output: map[string]any{}}})

	id, err := o.Execute(context.Background(), "pipeline", nil, []string{"known", "ghost"})
	require.ErrorIs(t, err, core.ErrUnknownRecipient)
	assert.Equal(t, StatusFailed, o.GetStatus(id).Status)
}

func TestExecute_CustomTemplate(t *testing.T) {
	_, o := setup(t, map[string]*scriptedAgent{})

	var gotAgents []string
	o.RegisterTemplate("fanout", func(_ context.Context, data map[string]any, agentIDs []string, _ *broker.Broker) (map[string]any, error) {
		gotAgents = agentIDs
		return map[string]any{"handled_by": "template", "input": data["k"]}, nil
	})

	id, err := o.Execute(context.Background(), "fanout", map[string]any{"k": "v"}, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, gotAgents)

	instance := o.GetStatus(id)
	assert.Equal(t, StatusCompleted, instance.Status)
	assert.Equal(t, "template", instance.Result["handled_by"])
	assert.Equal(t, "v", instance.Result["input"])
}

func TestGetStatus_UnknownID(t *testing.T) {
	_, o := setup(t, map[string]*scriptedAgent{})
	assert.Nil(t, o.GetStatus("nope"))
}

func TestListAll(t *testing.T) {
	a := &scriptedAgent{output: map[string]any{}}
	_, o := setup(t, map[string]*scriptedAgent{"a": a})

	id1, err := o.Execute(context.Background(), "one", nil, []string{"a"})
	require.NoError(t, err)
	id2, err := o.Execute(context.Background(), "two", nil, []string{"a"})
	require.NoError(t, err)

	all := o.ListAll()
	require.Len(t, all, 2)
	assert.Equal(t, "one", all[id1].Name)
	assert.Equal(t, "two", all[id2].Name)
}
