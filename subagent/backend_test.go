package subagent

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	ooption "github.com/openai/openai-go/option"
	oresponses "github.com/openai/openai-go/responses"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	delegate "github.com/armatrix/delegate-go"
	"github.com/armatrix/delegate-go/internal/budget"
)

func toolSchema() anthropic.ToolInputSchemaParam {
	return anthropic.ToolInputSchemaParam{Properties: map[string]any{}}
}

func noopTool(context.Context, json.RawMessage) (*delegate.ToolResult, error) {
	return delegate.TextResult("ok"), nil
}

// --- ChildTools / ChildHooks ---

func TestChildTools_PolicyThenPermitted(t *testing.T) {
	parent := delegate.NewToolRegistry()
	for _, name := range []string{"read_file", "write_file", "bash", "task"} {
		parent.RegisterRaw(name, name, toolSchema(), noopTool)
	}
	policy := delegate.BuildPolicy(delegate.PolicyConfig{Exclude: []string{"task"}})

	all := ChildTools(parent, delegate.AgentDefinition{Name: "a"}, policy)
	assert.Equal(t, []string{"read_file", "write_file", "bash"}, all.Names())

	limited := ChildTools(parent, delegate.AgentDefinition{Name: "b", PermittedTools: []string{"*_file", "task"}}, policy)
	assert.Equal(t, []string{"read_file", "write_file"}, limited.Names())

	none := ChildTools(parent, delegate.AgentDefinition{Name: "c", PermittedTools: []string{}}, policy)
	assert.Empty(t, none.Names())
}

func TestChildTools_NilParent(t *testing.T) {
	got := ChildTools(nil, delegate.AgentDefinition{}, delegate.InheritancePolicy{})
	assert.Equal(t, 0, got.Len())
}

func TestChildHooks(t *testing.T) {
	policy := delegate.BuildPolicy(delegate.PolicyConfig{IncludeOnly: []string{"audit", "notify"}})
	got := ChildHooks([]string{"audit", "notify", "lint"}, delegate.AgentDefinition{PermittedHooks: []string{"notify"}}, policy)
	assert.Equal(t, []string{"notify"}, got)
}

func TestRenderTranscript(t *testing.T) {
	assert.Equal(t, "go", renderTranscript(nil, "go"))

	got := renderTranscript([]delegate.Message{
		{Role: delegate.RoleUser, Content: "hi"},
		{Role: delegate.RoleAssistant, Content: "hello"},
	}, "next")
	assert.Equal(t, "[PREVIOUS TURNS]\nUSER: hi\n\nASSISTANT: hello\n\n[YOUR TASK]\nnext", got)
}

// --- ProviderBackend ---

type fakeProvider struct {
	name   string
	models []string
	err    error

	mu    sync.Mutex
	calls []string
}

func (p *fakeProvider) Name() string                             { return p.name }
func (p *fakeProvider) Models(context.Context) ([]string, error) { return p.models, nil }

func (p *fakeProvider) called() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakeProvider) Complete(ctx context.Context, model string, task *Task) (*Completion, error) {
	p.mu.Lock()
	p.calls = append(p.calls, model)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &Completion{Text: p.name + ":" + task.Instruction, Usage: budget.Usage{InputTokens: 1_000_000}}, nil
}

func TestProviderBackend_ResolvesPattern(t *testing.T) {
	anth := &fakeProvider{name: "anthropic", models: []string{"claude-haiku-4-5-20251001", "claude-haiku-4-5-20250101", "claude-sonnet-4-5"}}
	b := NewProviderBackend([]Provider{anth})

	out, err := b.Run(context.Background(), &Task{
		Instruction: "x",
		Preferences: []delegate.ProviderPreference{{Provider: "anthropic", Model: "claude-haiku-*"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic:x", out.Text)
	assert.Equal(t, "anthropic/claude-haiku-4-5-20251001", out.Model)
	assert.True(t, out.Cost.IsPositive())
}

func TestProviderBackend_SpendLimit(t *testing.T) {
	anth := &fakeProvider{name: "anthropic"}
	// 1M input tokens of sonnet cost more than a cent.
	b := NewProviderBackend([]Provider{anth}, WithSpendLimit(decimal.NewFromFloat(0.01)))
	task := &Task{Preferences: []delegate.ProviderPreference{{Provider: "anthropic", Model: "claude-sonnet-4-5"}}}

	_, err := b.Run(context.Background(), task)
	require.NoError(t, err)
	cost, usage := b.Spent()
	assert.True(t, cost.IsPositive())
	assert.Equal(t, 1_000_000, usage.InputTokens)

	_, err = b.Run(context.Background(), task)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Len(t, anth.called(), 1)
}

func TestProviderBackend_FallsThrough(t *testing.T) {
	anth := &fakeProvider{name: "anthropic", err: errors.New("overloaded")}
	oai := &fakeProvider{name: "openai", models: []string{"gpt-5"}}
	b := NewProviderBackend([]Provider{anth, oai})

	out, err := b.Run(context.Background(), &Task{
		Instruction: "x",
		Preferences: []delegate.ProviderPreference{
			{Provider: "anthropic", Model: "claude-sonnet-4-5"},
			{Provider: "missing", Model: "m"},
			{Provider: "openai", Model: "gpt-*"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-5", out.Model)
	assert.Equal(t, []string{"claude-sonnet-4-5"}, anth.called())
}

func TestProviderBackend_AllFail(t *testing.T) {
	anth := &fakeProvider{name: "anthropic", err: errors.New("overloaded")}
	b := NewProviderBackend([]Provider{anth})

	_, err := b.Run(context.Background(), &Task{
		Preferences: []delegate.ProviderPreference{
			{Provider: "anthropic", Model: "claude-sonnet-4-5"},
			{Provider: "anthropic", Model: "claude-nothing-*"},
		},
	})
	require.ErrorIs(t, err, ErrNoProvider)
	assert.Contains(t, err.Error(), "overloaded")
	assert.Contains(t, err.Error(), "no matching model")
}

func TestProviderBackend_DefaultChain(t *testing.T) {
	oai := &fakeProvider{name: "openai", models: []string{"gpt-5", "gpt-5-mini"}}
	b := NewProviderBackend([]Provider{oai})

	out, err := b.Run(context.Background(), &Task{Instruction: "x"})
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-5-mini", out.Model)

	b = NewProviderBackend([]Provider{oai}, WithDefaultPreferences(delegate.ProviderPreference{Provider: "openai", Model: "gpt-5"}))
	out, err = b.Run(context.Background(), &Task{Instruction: "x"})
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-5", out.Model)
}

func TestProviderBackend_BreakerOpens(t *testing.T) {
	anth := &fakeProvider{name: "anthropic", err: errors.New("down")}
	b := NewProviderBackend([]Provider{anth})
	task := &Task{Preferences: []delegate.ProviderPreference{{Provider: "anthropic", Model: "m"}}}

	for range defaultCBMaxFailures {
		_, err := b.Run(context.Background(), task)
		require.Error(t, err)
	}
	_, err := b.Run(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Len(t, anth.called(), int(defaultCBMaxFailures))
}

func TestProviderBackend_CancelledStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeProvider{name: "a"}
	first.err = context.Canceled
	second := &fakeProvider{name: "b"}
	cancel()

	b := NewProviderBackend([]Provider{first, second})
	_, err := b.Run(ctx, &Task{Preferences: []delegate.ProviderPreference{{Provider: "a", Model: "m"}, {Provider: "b", Model: "m"}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, second.called())
}

// --- AnthropicProvider ---

type scriptedMessages struct {
	replies []string
	params  []anthropic.MessageNewParams
}

func (s *scriptedMessages) New(ctx context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	s.params = append(s.params, params)
	if len(s.replies) == 0 {
		return nil, errors.New("no more replies")
	}
	var msg anthropic.Message
	if err := json.Unmarshal([]byte(s.replies[0]), &msg); err != nil {
		return nil, err
	}
	s.replies = s.replies[1:]
	return &msg, nil
}

func TestAnthropicProvider_ToolLoop(t *testing.T) {
	tools := delegate.NewToolRegistry()
	var gotInput string
	tools.RegisterRaw("lookup", "Look things up", toolSchema(), func(_ context.Context, raw json.RawMessage) (*delegate.ToolResult, error) {
		gotInput = string(raw)
		return delegate.TextResult("42"), nil
	})

	api := &scriptedMessages{replies: []string{
		`{"id":"m1","type":"message","role":"assistant","model":"claude-sonnet-4-5","stop_reason":"tool_use",
		  "content":[{"type":"tool_use","id":"tu1","name":"lookup","input":{"q":"answer"}}],
		  "usage":{"input_tokens":10,"output_tokens":5}}`,
		`{"id":"m2","type":"message","role":"assistant","model":"claude-sonnet-4-5","stop_reason":"end_turn",
		  "content":[{"type":"text","text":"The answer is 42."}],
		  "usage":{"input_tokens":20,"output_tokens":7,"cache_read_input_tokens":3}}`,
	}}
	p := NewAnthropicProvider(api, "claude-sonnet-4-5")

	comp, err := p.Complete(context.Background(), "claude-sonnet-4-5", &Task{
		Agent:       delegate.AgentDefinition{Name: "r", Instructions: "Be brief."},
		Instruction: "what is it?",
		History:     []delegate.Message{{Role: delegate.RoleUser, Content: "hi"}, {Role: delegate.RoleAssistant, Content: "hello"}},
		Tools:       tools,
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", comp.Text)
	assert.JSONEq(t, `{"q":"answer"}`, gotInput)
	assert.Equal(t, budget.Usage{InputTokens: 30, OutputTokens: 12, CacheReadInputTokens: 3}, comp.Usage)

	require.Len(t, api.params, 2)
	first := api.params[0]
	assert.Equal(t, anthropic.Model("claude-sonnet-4-5"), first.Model)
	require.Len(t, first.System, 1)
	assert.Equal(t, "Be brief.", first.System[0].Text)
	assert.Len(t, first.Tools, 1)
	assert.Len(t, first.Messages, 3)
	// history + instruction, assistant tool_use, user tool_result
	assert.Len(t, api.params[1].Messages, 5)
}

func TestAnthropicProvider_MaxTurns(t *testing.T) {
	loop := `{"id":"m","type":"message","role":"assistant","model":"m","stop_reason":"tool_use",
	  "content":[{"type":"tool_use","id":"tu","name":"unknown","input":{}}],"usage":{}}`
	api := &scriptedMessages{}
	for range defaultMaxTurns {
		api.replies = append(api.replies, loop)
	}
	p := NewAnthropicProvider(api)

	_, err := p.Complete(context.Background(), "m", &Task{Instruction: "x", Tools: delegate.NewToolRegistry()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max turns")
}

// --- OpenAIProvider ---

type stubResponses struct {
	reply  string
	params oresponses.ResponseNewParams
}

func (s *stubResponses) New(ctx context.Context, params oresponses.ResponseNewParams, _ ...ooption.RequestOption) (*oresponses.Response, error) {
	s.params = params
	var resp oresponses.Response
	if err := json.Unmarshal([]byte(s.reply), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func TestOpenAIProvider_Complete(t *testing.T) {
	api := &stubResponses{reply: `{"id":"r1","object":"response","model":"gpt-5","status":"completed",
	  "output":[
	    {"type":"reasoning","id":"rs1","summary":[]},
	    {"type":"message","id":"msg1","role":"assistant","status":"completed",
	     "content":[{"type":"output_text","text":"Done.","annotations":[]}]}],
	  "usage":{"input_tokens":12,"output_tokens":4,"total_tokens":16,
	    "input_tokens_details":{"cached_tokens":0},"output_tokens_details":{"reasoning_tokens":0}}}`}
	p := NewOpenAIProvider(api, "gpt-5")

	comp, err := p.Complete(context.Background(), "gpt-5", &Task{
		Agent:       delegate.AgentDefinition{Instructions: "Be brief."},
		Instruction: "go",
		History:     []delegate.Message{{Role: delegate.RoleAssistant, Content: "earlier"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Done.", comp.Text)
	assert.Equal(t, budget.Usage{InputTokens: 12, OutputTokens: 4}, comp.Usage)
	assert.Equal(t, "gpt-5", string(api.params.Model))
	assert.Equal(t, "Be brief.", api.params.Instructions.Value)
	assert.Len(t, api.params.Input.OfInputItemList, 2)
}

// --- CommandBackend ---

func TestCommandBackend_RunsProcess(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	tools := delegate.NewToolRegistry()
	tools.RegisterRaw("read", "read", toolSchema(), noopTool)

	b := &CommandBackend{
		Path: "sh",
		Args: []string{"-c", `printf '%s|%s|%s|%s\n' "$DELEGATE_SESSION_ID" "$DELEGATE_AGENT" "$DELEGATE_TOOLS" "$1"`, "sh"},
	}
	out, err := b.Run(context.Background(), &Task{
		SessionID:   "sub-1",
		Agent:       delegate.AgentDefinition{Name: "worker"},
		Instruction: "do it",
		Tools:       tools,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1|worker|read|do it", out.Text)
	assert.NotContains(t, out.Text, "\r")
}

func TestCommandBackend_ExitCode(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	b := &CommandBackend{Path: "sh", Args: []string{"-c", "echo nope; exit 3", "sh"}}
	_, err := b.Run(context.Background(), &Task{Instruction: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 3")
	assert.Contains(t, err.Error(), "nope")
}

func TestCommandBackend_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	b := &CommandBackend{Path: "sleep", Timeout: 50 * time.Millisecond}
	_, err := b.Run(context.Background(), &Task{Instruction: "5"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timed out"), err.Error())
}

func TestCommandBackend_RequiresPath(t *testing.T) {
	_, err := (&CommandBackend{}).Run(context.Background(), &Task{})
	assert.Error(t, err)
}

func TestMinCallDelay(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
		want time.Duration
	}{
		{"absent", nil, 0},
		{"int", map[string]any{MinCallDelayKey: 500}, 500 * time.Millisecond},
		{"float from json", map[string]any{MinCallDelayKey: 250.0}, 250 * time.Millisecond},
		{"string", map[string]any{MinCallDelayKey: "100"}, 100 * time.Millisecond},
		{"negative", map[string]any{MinCallDelayKey: -5}, 0},
		{"wrong type", map[string]any{MinCallDelayKey: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, minCallDelay(tt.cfg))
		})
	}
}

func TestProviderBackend_PacesCallsFromOrchestratorConfig(t *testing.T) {
	anth := &fakeProvider{name: "anthropic"}
	b := NewProviderBackend([]Provider{anth})
	task := &Task{
		Instruction:        "x",
		Preferences:        []delegate.ProviderPreference{{Provider: "anthropic", Model: "claude-sonnet-4-5"}},
		OrchestratorConfig: map[string]any{MinCallDelayKey: 40},
	}

	start := time.Now()
	for range 3 {
		_, err := b.Run(context.Background(), task)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
	assert.Len(t, anth.called(), 3)
}

func TestProviderBackend_PacingHonorsCancellation(t *testing.T) {
	anth := &fakeProvider{name: "anthropic"}
	b := NewProviderBackend([]Provider{anth})
	task := &Task{
		Preferences:        []delegate.ProviderPreference{{Provider: "anthropic", Model: "claude-sonnet-4-5"}},
		OrchestratorConfig: map[string]any{MinCallDelayKey: 60_000},
	}
	_, err := b.Run(context.Background(), task)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = b.Run(ctx, task)
	require.Error(t, err)
	assert.Len(t, anth.called(), 1)
}

func TestCommandBackend_ExportsOrchestratorConfig(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	b := &CommandBackend{Path: "sh", Args: []string{"-c", `printf '%s' "$DELEGATE_ORCHESTRATOR_CONFIG"`, "sh"}}
	out, err := b.Run(context.Background(), &Task{
		Instruction:        "x",
		OrchestratorConfig: map[string]any{MinCallDelayKey: 500},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"min_delay_between_calls_ms":500}`, out.Text)
}

func TestTruncate_KeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("a", maxOutputBytes-1) + "é" + "tail"
	got := truncate(s)

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "\n... [output truncated]"))
	assert.Equal(t, strings.Repeat("a", maxOutputBytes-1), strings.TrimSuffix(got, "\n... [output truncated]"))
	assert.Equal(t, "short", truncate("short"))
}
