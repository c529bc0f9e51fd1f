package delegate

import (
	"context"
	"slices"
	"strings"
)

// AgentDefinition describes a named sub-agent. The registry owns it; the
// router only reads it.
type AgentDefinition struct {
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description,omitempty" yaml:"description"`
	PermittedTools []string `json:"tools,omitempty" yaml:"tools"`
	PermittedHooks []string `json:"hooks,omitempty" yaml:"hooks"`
	// Instructions is the agent's system prompt, used by runtimes that host it.
	Instructions string `json:"instructions,omitempty" yaml:"instructions"`
}

// AgentRegistry resolves agent names to definitions.
type AgentRegistry interface {
	Lookup(name string) (AgentDefinition, bool)
	// List returns all definitions sorted by name.
	List() []AgentDefinition
}

// MapRegistry is an immutable AgentRegistry backed by a map.
type MapRegistry struct {
	defs map[string]AgentDefinition
}

var _ AgentRegistry = (*MapRegistry)(nil)

// NewMapRegistry builds a registry. Later definitions replace earlier ones
// with the same name.
func NewMapRegistry(defs ...AgentDefinition) *MapRegistry {
	m := make(map[string]AgentDefinition, len(defs))
	for _, d := range defs {
		m[d.Name] = d
	}
	return &MapRegistry{defs: m}
}

func (r *MapRegistry) Lookup(name string) (AgentDefinition, bool) {
	if r == nil {
		return AgentDefinition{}, false
	}
	d, ok := r.defs[name]
	return d, ok
}

func (r *MapRegistry) List() []AgentDefinition {
	if r == nil {
		return nil
	}
	out := make([]AgentDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b AgentDefinition) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// ParentSession is the read-only handle of the session doing the delegating.
type ParentSession interface {
	ID() string
	// Config returns the session's configuration tree; may be nil.
	Config() map[string]any
}

type staticParent struct {
	id  string
	cfg map[string]any
}

func (p staticParent) ID() string             { return p.id }
func (p staticParent) Config() map[string]any { return p.cfg }

// StaticParent returns a ParentSession with a fixed id and configuration.
func StaticParent(id string, cfg map[string]any) ParentSession {
	return staticParent{id: id, cfg: cfg}
}

// SpawnRequest is everything a Spawner needs to start a sub-session.
type SpawnRequest struct {
	AgentName           string
	Instruction         string
	Parent              ParentSession
	Registry            AgentRegistry
	SubSessionID        string
	ToolPolicy          InheritancePolicy
	HookPolicy          InheritancePolicy
	OrchestratorConfig  map[string]any
	ProviderPreferences []ProviderPreference
	// Depth is the nesting level of the new sub-session; top-level spawns are 1.
	Depth int
}

// SpawnResult is the outcome of a spawn or resume.
type SpawnResult struct {
	Output    string
	SessionID string
}

// Spawner starts sub-sessions. Spawn may block for as long as the child runs.
type Spawner interface {
	Spawn(ctx context.Context, req SpawnRequest) (SpawnResult, error)
}

// Resumer continues existing sub-sessions. A missing session must be
// reported with an error wrapping ErrSessionNotFound.
type Resumer interface {
	Resume(ctx context.Context, sessionID, instruction string) (SpawnResult, error)
}

// SpawnFunc adapts a function to Spawner.
type SpawnFunc func(ctx context.Context, req SpawnRequest) (SpawnResult, error)

func (f SpawnFunc) Spawn(ctx context.Context, req SpawnRequest) (SpawnResult, error) {
	return f(ctx, req)
}

// ResumeFunc adapts a function to Resumer.
type ResumeFunc func(ctx context.Context, sessionID, instruction string) (SpawnResult, error)

func (f ResumeFunc) Resume(ctx context.Context, sessionID, instruction string) (SpawnResult, error) {
	return f(ctx, sessionID, instruction)
}
