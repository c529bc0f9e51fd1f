package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/armatrix/delegate-go/internal/schema"
)

// Tool is the generic interface for tools a session can call. The type
// parameter T is the input struct decoded from JSON.
type Tool[T any] interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input T) (*ToolResult, error)
}

// ToolResult is the output of a tool execution.
type ToolResult struct {
	Content  []anthropic.ContentBlockParamUnion
	IsError  bool
	Metadata map[string]any
}

// Text concatenates the text blocks of the result.
func (r *ToolResult) Text() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range r.Content {
		if c.OfText != nil {
			sb.WriteString(c.OfText.Text)
		}
	}
	return sb.String()
}

// TextResult is a convenience constructor for a text-only tool result.
func TextResult(text string) *ToolResult {
	return &ToolResult{
		Content: []anthropic.ContentBlockParamUnion{
			anthropic.NewTextBlock(text),
		},
	}
}

// ErrorResult is a convenience constructor for an error tool result.
func ErrorResult(text string) *ToolResult {
	return &ToolResult{
		Content: []anthropic.ContentBlockParamUnion{
			anthropic.NewTextBlock(text),
		},
		IsError: true,
	}
}

type toolEntry struct {
	name        string
	description func() string
	schema      anthropic.ToolInputSchemaParam
	execute     func(ctx context.Context, raw json.RawMessage) (*ToolResult, error)
}

// ToolRegistry holds the tools available to a session. It is safe for
// concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*toolEntry
	order []string
}

// NewToolRegistry creates a new empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*toolEntry),
	}
}

// RegisterTool registers a generic tool. The input type T is used to
// generate the JSON Schema. Descriptions are read at listing time so tools
// with dynamic descriptions stay current.
func RegisterTool[T any](r *ToolRegistry, tool Tool[T]) {
	r.add(&toolEntry{
		name:        tool.Name(),
		description: tool.Description,
		schema:      schema.Generate[T](),
		execute: func(ctx context.Context, raw json.RawMessage) (*ToolResult, error) {
			var input T
			if err := json.Unmarshal(raw, &input); err != nil {
				return ErrorResult(fmt.Sprintf("invalid input: %s", err.Error())), nil
			}
			return tool.Execute(ctx, input)
		},
	})
}

// RegisterRaw registers a tool with a pre-built schema and execute function.
func (r *ToolRegistry) RegisterRaw(
	name, description string,
	inputSchema anthropic.ToolInputSchemaParam,
	execute func(ctx context.Context, raw json.RawMessage) (*ToolResult, error),
) {
	r.add(&toolEntry{
		name:        name,
		description: func() string { return description },
		schema:      inputSchema,
		execute:     execute,
	})
}

func (r *ToolRegistry) add(e *toolEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[e.name]; !exists {
		r.order = append(r.order, e.name)
	}
	r.tools[e.name] = e
}

// Execute runs a tool by name with the given raw JSON input.
func (r *ToolRegistry) Execute(ctx context.Context, name string, input json.RawMessage) (*ToolResult, error) {
	if r == nil {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return entry.execute(ctx, input)
}

// ListForAPI returns the registered tools in the format expected by the
// Anthropic API.
func (r *ToolRegistry) ListForAPI() []anthropic.ToolUnionParam {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]anthropic.ToolUnionParam, 0, len(r.tools))
	for _, name := range r.order {
		entry := r.tools[name]
		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        entry.name,
				Description: param.NewOpt(entry.description()),
				InputSchema: entry.schema,
			},
		})
	}
	return result
}

// Names returns the names of all registered tools in registration order.
func (r *ToolRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Subset returns a new registry holding only the named tools that exist in
// r, keeping r's registration order.
func (r *ToolRegistry) Subset(names []string) *ToolRegistry {
	out := NewToolRegistry()
	if r == nil {
		return out
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if want[name] {
			out.tools[name] = r.tools[name]
			out.order = append(out.order, name)
		}
	}
	return out
}

// --- Task tool ---

const noAgentsDescription = "The task tool is currently unavailable because there are no registered agents."

// TaskTool exposes a Router as the "task" tool.
type TaskTool struct {
	router *Router
}

var _ Tool[Request] = (*TaskTool)(nil)

// NewTaskTool wraps router as a tool.
func NewTaskTool(router *Router) *TaskTool {
	return &TaskTool{router: router}
}

func (t *TaskTool) Name() string { return ToolName }

// Description lists the registered agents so the model knows what it can
// delegate to.
func (t *TaskTool) Description() string {
	var defs []AgentDefinition
	if reg := t.router.Registry(); reg != nil {
		defs = reg.List()
	}
	if len(defs) == 0 {
		return noAgentsDescription
	}

	var sb strings.Builder
	sb.WriteString("Delegate a task to a specialized agent, or resume a previous delegation with session_id.\n\n")
	sb.WriteString("Spawning creates a fresh sub-session that inherits no conversation history unless inherit_context is set. ")
	sb.WriteString("The response includes a session_id that can be passed back to continue the same sub-session.\n\n")
	sb.WriteString("Available agents:\n")
	for _, d := range defs {
		desc := d.Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(&sb, "  - %s: %s\n", d.Name, desc)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// InputSchema returns the JSON Schema of the tool input.
func (t *TaskTool) InputSchema() anthropic.ToolInputSchemaParam {
	return schema.Generate[Request]()
}

// ToolParam returns the Anthropic API definition of the tool.
func (t *TaskTool) ToolParam() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name:        ToolName,
		Description: param.NewOpt(t.Description()),
		InputSchema: t.InputSchema(),
	}
}

// Execute runs a delegation. Failures come back as error results; the
// returned Go error is always nil.
func (t *TaskTool) Execute(ctx context.Context, req Request) (*ToolResult, error) {
	res := t.router.Delegate(ctx, req)
	if !res.OK() {
		out := ErrorResult(res.Err.Message)
		out.Metadata = map[string]any{"kind": string(res.Err.Kind)}
		return out, nil
	}

	data, err := json.Marshal(res)
	if err != nil {
		return ErrorResult(fmt.Sprintf("encode result: %s", err.Error())), nil
	}
	out := TextResult(string(data))
	out.Metadata = map[string]any{"session_id": res.SessionID}
	return out, nil
}

// ExecuteRaw decodes raw JSON input and runs it.
func (t *TaskTool) ExecuteRaw(ctx context.Context, raw json.RawMessage) (*ToolResult, error) {
	req, err := ParseRequest(raw)
	if err != nil {
		return ErrorResult(fmt.Sprintf("invalid input: %s", err.Error())), nil
	}
	return t.Execute(ctx, req)
}
