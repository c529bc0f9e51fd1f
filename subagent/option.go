package subagent

import (
	"log/slog"

	"github.com/shopspring/decimal"

	delegate "github.com/armatrix/delegate-go"
	"github.com/armatrix/delegate-go/session"
)

// Option configures a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	store       session.Store
	registry    delegate.AgentRegistry
	parentTools *delegate.ToolRegistry
	parentHooks []string
	toolPolicy  delegate.InheritancePolicy
	hookPolicy  delegate.InheritancePolicy
	maxBudget   decimal.Decimal
	logger      *slog.Logger
}

func resolveOptions(opts []Option) runnerOptions {
	o := runnerOptions{
		toolPolicy: delegate.InheritancePolicy{Mode: delegate.PolicyInheritAll},
		hookPolicy: delegate.InheritancePolicy{Mode: delegate.PolicyInheritAll},
		maxBudget:  decimal.Zero,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.store == nil {
		o.store = session.NewMemoryStore()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// WithStore sets where transcripts are persisted. The default is an
// in-memory store.
func WithStore(s session.Store) Option {
	return func(o *runnerOptions) { o.store = s }
}

// WithRegistry sets the registry used to look agents up on resume, and on
// spawn when the request carries none.
func WithRegistry(r delegate.AgentRegistry) Option {
	return func(o *runnerOptions) { o.registry = r }
}

// WithParentTools sets the tools children may inherit.
func WithParentTools(t *delegate.ToolRegistry) Option {
	return func(o *runnerOptions) { o.parentTools = t }
}

// WithParentHooks sets the hook names children may inherit.
func WithParentHooks(names ...string) Option {
	return func(o *runnerOptions) { o.parentHooks = append(o.parentHooks, names...) }
}

// WithPolicies sets the inheritance policies applied on resume. Spawns use
// the policies carried by the request.
func WithPolicies(tools, hooks delegate.InheritancePolicy) Option {
	return func(o *runnerOptions) {
		o.toolPolicy = tools
		o.hookPolicy = hooks
	}
}

// WithMaxBudget caps the total cost of any one sub-session. Zero means
// unlimited.
func WithMaxBudget(max decimal.Decimal) Option {
	return func(o *runnerOptions) { o.maxBudget = max }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *runnerOptions) { o.logger = l }
}
