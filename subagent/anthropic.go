package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	delegate "github.com/armatrix/delegate-go"
	"github.com/armatrix/delegate-go/internal/budget"
)

const (
	defaultMaxTokens = 8192
	defaultMaxTurns  = 16
)

// MessageCreator abstracts the Anthropic Messages API so the provider can be
// tested with a mock. Production code passes &client.Messages.
type MessageCreator interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicProvider serves turns through the Anthropic Messages API, running
// the child's tools until the model ends its turn.
type AnthropicProvider struct {
	messages  MessageCreator
	models    []string
	maxTokens int64
	maxTurns  int
}

// NewAnthropicProvider creates a provider. models lists what glob
// preferences may resolve against.
func NewAnthropicProvider(messages MessageCreator, models ...string) *AnthropicProvider {
	return &AnthropicProvider{
		messages:  messages,
		models:    models,
		maxTokens: defaultMaxTokens,
		maxTurns:  defaultMaxTurns,
	}
}

// NewAnthropicClientProvider builds a provider over a real client. An empty
// apiKey falls back to the SDK's environment lookup.
func NewAnthropicClientProvider(apiKey, baseURL string, models ...string) *AnthropicProvider {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return NewAnthropicProvider(&client.Messages, models...)
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Models implements Provider.
func (p *AnthropicProvider) Models(context.Context) ([]string, error) { return p.models, nil }

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, model string, task *Task) (*Completion, error) {
	msgs := make([]anthropic.MessageParam, 0, len(task.History)+1)
	for _, m := range task.History {
		switch m.Role {
		case delegate.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(task.Instruction)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
	}
	if task.Agent.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: task.Agent.Instructions}}
	}
	if tools := task.Tools.ListForAPI(); len(tools) > 0 {
		params.Tools = tools
	}

	var usage budget.Usage
	for turn := 0; turn < p.maxTurns; turn++ {
		params.Messages = msgs
		msg, err := p.messages.New(ctx, params)
		if err != nil {
			return nil, err
		}
		usage = usage.Add(budget.Usage{
			InputTokens:              int(msg.Usage.InputTokens),
			OutputTokens:             int(msg.Usage.OutputTokens),
			CacheReadInputTokens:     int(msg.Usage.CacheReadInputTokens),
			CacheCreationInputTokens: int(msg.Usage.CacheCreationInputTokens),
		})
		msgs = append(msgs, msg.ToParam())

		if msg.StopReason != anthropic.StopReasonToolUse {
			return &Completion{Text: messageText(msg), Usage: usage}, nil
		}
		msgs = append(msgs, anthropic.NewUserMessage(p.runTools(ctx, task, msg)...))
	}
	return nil, fmt.Errorf("max turns (%d) reached", p.maxTurns)
}

// runTools executes every tool_use block of msg. Tool failures are reported
// back to the model rather than aborting the turn.
func (p *AnthropicProvider) runTools(ctx context.Context, task *Task, msg *anthropic.Message) []anthropic.ContentBlockParamUnion {
	var results []anthropic.ContentBlockParamUnion
	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		use := block.AsToolUse()
		res, err := task.Tools.Execute(ctx, use.Name, json.RawMessage(use.Input))
		if err != nil {
			results = append(results, anthropic.NewToolResultBlock(use.ID, err.Error(), true))
			continue
		}
		results = append(results, anthropic.NewToolResultBlock(use.ID, res.Text(), res.IsError))
	}
	return results
}

func messageText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
