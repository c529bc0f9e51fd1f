package subagent

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	delegate "github.com/armatrix/delegate-go"
	"github.com/armatrix/delegate-go/internal/budget"
)

// Task is one turn of a sub-session handed to a Backend.
type Task struct {
	SessionID   string
	Agent       delegate.AgentDefinition
	Instruction string
	// History is the sub-session transcript before this turn; empty on spawn.
	History []delegate.Message
	// Tools are the tools the child may call.
	Tools *delegate.ToolRegistry
	// Hooks are the names of parent hooks the child inherits.
	Hooks              []string
	Preferences        []delegate.ProviderPreference
	OrchestratorConfig map[string]any
	Depth              int
}

// Output is what a Backend produced for one turn.
type Output struct {
	Text string
	// Model is the provider/model that served the turn, if known.
	Model string
	Usage budget.Usage
	Cost  decimal.Decimal
}

// Backend runs sub-session turns.
type Backend interface {
	Run(ctx context.Context, task *Task) (*Output, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, task *Task) (*Output, error)

func (f BackendFunc) Run(ctx context.Context, task *Task) (*Output, error) { return f(ctx, task) }

// ChildTools returns the parent tools a child of def may use: those allowed
// by policy and, when def lists permitted tools, also named there. Entries in
// either list may be glob patterns.
func ChildTools(parent *delegate.ToolRegistry, def delegate.AgentDefinition, policy delegate.InheritancePolicy) *delegate.ToolRegistry {
	return parent.Subset(childNames(parent.Names(), def.PermittedTools, policy))
}

// ChildHooks applies the same rules to hook names.
func ChildHooks(parent []string, def delegate.AgentDefinition, policy delegate.InheritancePolicy) []string {
	return childNames(parent, def.PermittedHooks, policy)
}

func childNames(parent, permitted []string, policy delegate.InheritancePolicy) []string {
	names := policy.Filter(parent)
	if permitted == nil {
		return names
	}
	return delegate.BuildPolicy(delegate.PolicyConfig{IncludeOnly: permitted}).Filter(names)
}

// renderTranscript flattens prior turns and the new instruction into one
// prompt for backends without native multi-turn input.
func renderTranscript(history []delegate.Message, instruction string) string {
	if len(history) == 0 {
		return instruction
	}
	var sb strings.Builder
	sb.WriteString("[PREVIOUS TURNS]\n")
	for _, m := range history {
		sb.WriteString(strings.ToUpper(string(m.Role)))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("[YOUR TASK]\n")
	sb.WriteString(instruction)
	return sb.String()
}
