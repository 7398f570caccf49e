package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage("a1", "a2", TaskRequest, map[string]any{"k": "v"}, PriorityHigh)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "a1", msg.SenderID)
	assert.Equal(t, "a2", msg.RecipientID)
	assert.Equal(t, TaskRequest, msg.Type)
	assert.Equal(t, PriorityHigh, msg.Priority)
	assert.WithinDuration(t, time.Now().UTC(), msg.CreatedAt, time.Second)
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		msg := NewMessage("a", "b", TaskRequest, nil, PriorityMedium)
		require.False(t, seen[msg.ID], "duplicate message id %s", msg.ID)
		seen[msg.ID] = true
	}
}

func TestMessage_CloneFor(t *testing.T) {
	msg := NewMessage("a1", "sales", Coordination, map[string]any{"k": "v"}, PriorityLow)
	clone := msg.CloneFor("agent-7")

	assert.Equal(t, msg.ID+"_agent-7", clone.ID)
	assert.Equal(t, "agent-7", clone.RecipientID)
	assert.Equal(t, msg.SenderID, clone.SenderID)
	assert.Equal(t, msg.Content, clone.Content)
	// Original is untouched.
	assert.Equal(t, "sales", msg.RecipientID)
}

func TestMessage_RequiredSkills(t *testing.T) {
	tests := []struct {
		name    string
		content map[string]any
		want    []string
	}{
		{"typed slice", map[string]any{RequiredSkillsKey: []string{"billing", "support"}}, []string{"billing", "support"}},
		{"json decoded", map[string]any{RequiredSkillsKey: []any{"billing", "support"}}, []string{"billing", "support"}},
		{"absent", map[string]any{}, nil},
		{"wrong type", map[string]any{RequiredSkillsKey: 42}, nil},
		{"mixed elements", map[string]any{RequiredSkillsKey: []any{"billing", 7}}, []string{"billing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Message{Content: tt.content}
			assert.Equal(t, tt.want, msg.RequiredSkills())
		})
	}
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "low", PriorityLow.String())
	assert.Equal(t, "medium", PriorityMedium.String())
	assert.Equal(t, "high", PriorityHigh.String())
	assert.Equal(t, "critical", PriorityCritical.String())
	assert.Equal(t, "unknown", Priority(99).String())
}

func TestRoute_Lifecycle(t *testing.T) {
	r := NewRoute("m1", "a1", "a2")
	assert.Equal(t, RoutePending, r.Status)
	assert.Nil(t, r.DeliveryTime)

	r.MarkSent("a2")
	assert.Equal(t, RouteSent, r.Status)
	assert.Equal(t, []string{"a2"}, r.Hops)

	now := time.Now().UTC()
	r.MarkDelivered(now)
	assert.Equal(t, RouteDelivered, r.Status)
	require.NotNil(t, r.DeliveryTime)

	latency, ok := r.Latency(now.Add(-50 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, latency)
}

func TestRoute_Latency_Undelivered(t *testing.T) {
	r := NewRoute("m1", "a1", "a2")
	_, ok := r.Latency(time.Now())
	assert.False(t, ok)
}
