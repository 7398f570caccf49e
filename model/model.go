// Package model defines the minimal language-model abstraction consumed by
// agents, plus a deterministic mock for tests. Provider subpackages adapt the
// official Anthropic and OpenAI SDKs to it.
package model

import (
	"context"
	"fmt"
)

// Message is one turn of a conversation.
type Message struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

// Request captures the normalized model input produced by agents.
type Request struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
}

// TokenUsage captures token accounting for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is a completed generation.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the interface agents use to drive generation. Complete blocks
// until the provider returns the full response.
type Model interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests and examples.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Complete implements Model against the canned response table. Unknown
// prompts get an echo response rather than an error.
func (m *MockModel) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	last := req.Messages[len(req.Messages)-1]
	text := m.responses[last.Text]
	if text == "" {
		text = fmt.Sprintf("Mock response to: %s", last.Text)
	}
	return &Response{Text: text, FinishReason: "stop"}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
