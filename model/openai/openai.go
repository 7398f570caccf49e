// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/agentwire/agentwire/model"
)

// Options configure the OpenAI model adapter. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Model via the Chat Completions API.
func (m *Model) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	choice := resp.Choices[0]
	finishReason := "stop"
	if choice.FinishReason != "" {
		finishReason = choice.FinishReason
	}
	return &model.Response{
		Text:         choice.Message.Content,
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		if msg.Text == "" {
			continue
		}
		if msg.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(msg.Text))
		} else {
			messages = append(messages, openai.UserMessage(msg.Text))
		}
	}
	return messages
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai"}
}
