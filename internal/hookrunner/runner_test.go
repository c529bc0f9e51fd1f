package hookrunner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pubhook "github.com/armatrix/delegate-go/hook"
	"github.com/armatrix/delegate-go/internal/hookrunner"
)

func noop(_ context.Context, _ *pubhook.Input) error { return nil }

func input(agent string) *pubhook.Input {
	return &pubhook.Input{Event: pubhook.AgentSpawned, AgentName: agent, SessionID: "p-0123456789abcdef_" + agent}
}

func TestNewInvalidPattern(t *testing.T) {
	_, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.AgentSpawned, Pattern: "[invalid", Hooks: []pubhook.Func{noop}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestEmptyRunnerReturnsNil(t *testing.T) {
	r, err := hookrunner.New(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
	assert.NoError(t, r.Dispatch(context.Background(), pubhook.AgentSpawned, input("x")))
}

func TestBasicMatchByEvent(t *testing.T) {
	called := false
	r, err := hookrunner.New([]pubhook.Matcher{{
		Event: pubhook.AgentSpawned,
		Hooks: []pubhook.Func{func(_ context.Context, in *pubhook.Input) error {
			called = true
			assert.Equal(t, "researcher", in.AgentName)
			return nil
		}},
	}})
	require.NoError(t, err)

	require.NoError(t, r.Dispatch(context.Background(), pubhook.AgentSpawned, input("researcher")))
	assert.True(t, called)
}

func TestEventMismatchSkips(t *testing.T) {
	called := false
	r, err := hookrunner.New([]pubhook.Matcher{{
		Event: pubhook.AgentCompleted,
		Hooks: []pubhook.Func{func(context.Context, *pubhook.Input) error { called = true; return nil }},
	}})
	require.NoError(t, err)

	require.NoError(t, r.Dispatch(context.Background(), pubhook.AgentSpawned, input("x")))
	assert.False(t, called)
}

func TestRegexPatternMatching(t *testing.T) {
	var seen []string
	r, err := hookrunner.New([]pubhook.Matcher{{
		Event:   pubhook.AgentSpawned,
		Pattern: "^foundation:",
		Hooks: []pubhook.Func{func(_ context.Context, in *pubhook.Input) error {
			seen = append(seen, in.AgentName)
			return nil
		}},
	}})
	require.NoError(t, err)

	for _, agent := range []string{"foundation:zen-architect", "researcher", "foundation:bug-hunter"} {
		require.NoError(t, r.Dispatch(context.Background(), pubhook.AgentSpawned, input(agent)))
	}
	assert.Equal(t, []string{"foundation:zen-architect", "foundation:bug-hunter"}, seen)
}

func TestMatchersRunInOrder(t *testing.T) {
	var order []int
	hookN := func(n int) pubhook.Func {
		return func(context.Context, *pubhook.Input) error { order = append(order, n); return nil }
	}
	r, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.AgentSpawned, Hooks: []pubhook.Func{hookN(1), hookN(2)}},
		{Event: pubhook.AgentSpawned, Hooks: []pubhook.Func{hookN(3)}},
	})
	require.NoError(t, err)

	require.NoError(t, r.Dispatch(context.Background(), pubhook.AgentSpawned, input("x")))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestHookErrorStopsExecution(t *testing.T) {
	secondCalled := false
	r, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.ToolError, Hooks: []pubhook.Func{
			func(context.Context, *pubhook.Input) error { return errors.New("hook failed") },
			func(context.Context, *pubhook.Input) error { secondCalled = true; return nil },
		}},
	})
	require.NoError(t, err)

	err = r.Dispatch(context.Background(), pubhook.ToolError, &pubhook.Input{Event: pubhook.ToolError})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook tool:error")
	assert.Contains(t, err.Error(), "hook failed")
	assert.False(t, secondCalled)
}

func TestTimeoutEnforcement(t *testing.T) {
	r, err := hookrunner.New([]pubhook.Matcher{{
		Event:   pubhook.AgentSpawned,
		Timeout: 20 * time.Millisecond,
		Hooks: []pubhook.Func{func(ctx context.Context, _ *pubhook.Input) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	}})
	require.NoError(t, err)

	start := time.Now()
	err = r.Dispatch(context.Background(), pubhook.AgentSpawned, input("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCancelledContextSkipsHooks(t *testing.T) {
	called := false
	r, err := hookrunner.New([]pubhook.Matcher{{
		Event: pubhook.AgentSpawned,
		Hooks: []pubhook.Func{func(context.Context, *pubhook.Input) error { called = true; return nil }},
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Dispatch(ctx, pubhook.AgentSpawned, input("x")), context.Canceled)
	assert.False(t, called)
}
