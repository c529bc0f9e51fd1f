package delegate

import (
	"context"
	"errors"
)

// Lifecycle event names. They are part of the observable contract.
const (
	EventAgentSpawned   = "task:agent_spawned"
	EventAgentResumed   = "task:agent_resumed"
	EventAgentCompleted = "task:agent_completed"
	EventToolError      = "tool:error"
)

// ObservableEvents lists the lifecycle events hosts can advertise to
// logging hooks.
func ObservableEvents() []string {
	return []string{EventAgentSpawned, EventAgentResumed, EventAgentCompleted}
}

// EventSink receives lifecycle events. Emission is best effort: errors are
// logged and never change a delegation's outcome.
type EventSink interface {
	Emit(ctx context.Context, name string, payload map[string]any) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, name string, payload map[string]any) error

func (f EventSinkFunc) Emit(ctx context.Context, name string, payload map[string]any) error {
	return f(ctx, name, payload)
}

// multiSink fans an event out to several sinks.
type multiSink []EventSink

func (m multiSink) Emit(ctx context.Context, name string, payload map[string]any) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, name, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
