package delegate

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/armatrix/delegate-go/hook"
)

// Option configures a Router via the functional options pattern.
type Option func(*routerOptions)

// routerOptions holds all collaborators set via Option functions. Any of
// them may be left unset; the router degrades to a typed failure or a no-op.
type routerOptions struct {
	registry        AgentRegistry
	spawner         Spawner
	resumer         Resumer
	contextProvider ContextProvider
	sinks           []EventSink
	hookMatchers    []hook.Matcher
	parent          ParentSession
	config          Config
	logger          *slog.Logger
	tracerProvider  trace.TracerProvider
}

func resolveOptions(opts []Option) routerOptions {
	var o routerOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.parent == nil {
		o.parent = StaticParent("", nil)
	}
	return o
}

// --- Collaborators ---

// WithRegistry sets the agent registry consulted on spawn.
func WithRegistry(r AgentRegistry) Option {
	return func(o *routerOptions) { o.registry = r }
}

// WithSpawner binds the spawn capability. Without it spawns fail with
// SpawnUnavailable.
func WithSpawner(s Spawner) Option {
	return func(o *routerOptions) { o.spawner = s }
}

// WithResumer binds the resume capability. Without it resumes fail with
// ResumeUnavailable.
func WithResumer(r Resumer) Option {
	return func(o *routerOptions) { o.resumer = r }
}

// WithContextProvider sets where parent history is read from.
func WithContextProvider(p ContextProvider) Option {
	return func(o *routerOptions) { o.contextProvider = p }
}

// WithParentSession sets the delegating session.
func WithParentSession(p ParentSession) Option {
	return func(o *routerOptions) { o.parent = p }
}

// --- Events ---

// WithEventSink adds a lifecycle event sink. May be given more than once.
func WithEventSink(s EventSink) Option {
	return func(o *routerOptions) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithHooks registers lifecycle hook matchers, dispatched in-process.
func WithHooks(matchers ...hook.Matcher) Option {
	return func(o *routerOptions) { o.hookMatchers = append(o.hookMatchers, matchers...) }
}

// --- Settings ---

// WithConfig sets tool/hook inheritance and the declared recursion limit.
func WithConfig(cfg Config) Option {
	return func(o *routerOptions) { o.config = cfg }
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *routerOptions) { o.logger = l }
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The default is
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *routerOptions) { o.tracerProvider = tp }
}
