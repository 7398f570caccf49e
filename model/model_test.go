package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_CannedResponse(t *testing.T) {
	m := NewMockModel("test-model")
	m.AddResponse("hello", "hi there")

	resp, err := m.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Text: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestMockModel_EchoFallback(t *testing.T) {
	m := NewMockModel("test-model")
	resp, err := m.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Text: "unknown"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: unknown", resp.Text)
}

func TestMockModel_EmptyRequest(t *testing.T) {
	m := NewMockModel("test-model")
	_, err := m.Complete(context.Background(), Request{})
	require.Error(t, err)
}

func TestMockModel_CancelledContext(t *testing.T) {
	m := NewMockModel("test-model")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Complete(ctx, Request{Messages: []Message{{Role: "user", Text: "x"}}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMockModel_Info(t *testing.T) {
	m := NewMockModel("test-model")
	assert.Equal(t, Info{Name: "test-model", Provider: "mock"}, m.Info())
}
