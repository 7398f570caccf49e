// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentwire/agentwire/model"
)

// Options configures the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Model via the Messages API.
func (m *Model) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}
	return &model.Response{
		Text:         text,
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

func buildMessages(messages []model.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		block := anthropic.NewTextBlock(msg.Text)
		if msg.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}
