package delegate

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armatrix/delegate-go/hook"
)

func TestResolveOptionsDefaults(t *testing.T) {
	opts := resolveOptions(nil)

	assert.NotNil(t, opts.logger)
	require.NotNil(t, opts.parent)
	assert.Equal(t, "", opts.parent.ID())
	assert.Nil(t, opts.registry)
	assert.Nil(t, opts.spawner)
	assert.Nil(t, opts.resumer)
	assert.Empty(t, opts.sinks)
}

func TestWithEventSinkSkipsNil(t *testing.T) {
	rec := &eventRecorder{}
	opts := resolveOptions([]Option{WithEventSink(nil), WithEventSink(rec), WithEventSink(rec)})
	assert.Len(t, opts.sinks, 2)
}

func TestWithHooksAccumulates(t *testing.T) {
	opts := resolveOptions([]Option{
		WithHooks(hook.Matcher{Event: hook.AgentSpawned}),
		WithHooks(hook.Matcher{Event: hook.ToolError}, hook.Matcher{Event: hook.AgentCompleted}),
	})
	assert.Len(t, opts.hookMatchers, 3)
}

func TestWithLogger(t *testing.T) {
	l := slog.New(slog.DiscardHandler)
	opts := resolveOptions([]Option{WithLogger(l)})
	assert.Same(t, l, opts.logger)
}

func TestWithConfig(t *testing.T) {
	r := New(WithConfig(Config{InheritTools: []string{"read"}}))
	tools, hooks := r.Policies()
	assert.Equal(t, PolicyIncludeOnly, tools.Mode)
	assert.Equal(t, PolicyInheritAll, hooks.Mode)
}

func TestMultipleSinksAllReceive(t *testing.T) {
	a, b := &eventRecorder{}, &eventRecorder{}
	r := New(WithRegistry(testAgents), WithSpawner(echoSpawner(nil)), WithEventSink(a), WithEventSink(b))

	r.Delegate(context.Background(), Request{Agent: "researcher", Instruction: "x"})
	assert.Equal(t, a.names(), b.names())
	assert.Len(t, a.names(), 2)
}
