package subagent

import (
	"context"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"

	delegate "github.com/armatrix/delegate-go"
	"github.com/armatrix/delegate-go/internal/budget"
)

const openAIDefaultMaxOutputTokens = 4096

// ResponseCreator abstracts the OpenAI Responses API. Production code passes
// &client.Responses.
type ResponseCreator interface {
	New(ctx context.Context, params oresponses.ResponseNewParams, opts ...ooption.RequestOption) (*oresponses.Response, error)
}

// OpenAIProvider serves turns through the OpenAI Responses API. It does not
// offer tools to the model.
type OpenAIProvider struct {
	responses ResponseCreator
	models    []string
}

// NewOpenAIProvider creates a provider over responses.
func NewOpenAIProvider(responses ResponseCreator, models ...string) *OpenAIProvider {
	return &OpenAIProvider{responses: responses, models: models}
}

// NewOpenAIClientProvider builds a provider over a real client.
func NewOpenAIClientProvider(apiKey, baseURL string, models ...string) *OpenAIProvider {
	var opts []ooption.RequestOption
	if k := strings.TrimSpace(apiKey); k != "" {
		opts = append(opts, ooption.WithAPIKey(k))
	}
	if u := strings.TrimSpace(baseURL); u != "" {
		opts = append(opts, ooption.WithBaseURL(u))
	}
	client := openai.NewClient(opts...)
	return NewOpenAIProvider(&client.Responses, models...)
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Models implements Provider.
func (p *OpenAIProvider) Models(context.Context) ([]string, error) { return p.models, nil }

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, model string, task *Task) (*Completion, error) {
	items := make(oresponses.ResponseInputParam, 0, len(task.History)+1)
	for _, m := range task.History {
		role := oresponses.EasyInputMessageRoleUser
		if m.Role == delegate.RoleAssistant {
			role = oresponses.EasyInputMessageRoleAssistant
		}
		items = append(items, oresponses.ResponseInputItemParamOfMessage(m.Content, role))
	}
	items = append(items, oresponses.ResponseInputItemParamOfMessage(task.Instruction, oresponses.EasyInputMessageRoleUser))

	params := oresponses.ResponseNewParams{
		Model:           oshared.ResponsesModel(model),
		MaxOutputTokens: openai.Int(openAIDefaultMaxOutputTokens),
		Input:           oresponses.ResponseNewParamsInputUnion{OfInputItemList: items},
	}
	if instr := strings.TrimSpace(task.Agent.Instructions); instr != "" {
		params.Instructions = openai.String(instr)
	}

	resp, err := p.responses.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.AsMessage().Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}
	return &Completion{
		Text: strings.TrimSpace(sb.String()),
		Usage: budget.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
