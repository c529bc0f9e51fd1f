// Package hook defines public types for delegation lifecycle hooks.
//
// Hooks let hosts observe sub-sessions as they are spawned, resumed,
// completed or fail. A [Matcher] binds a set of [Func] callbacks to one
// [Event] and an optional agent-name regex pattern.
package hook

import (
	"context"
	"time"
)

// Event identifies when a hook fires. Values equal the delegation event names.
type Event string

const (
	AgentSpawned   Event = "task:agent_spawned"
	AgentResumed   Event = "task:agent_resumed"
	AgentCompleted Event = "task:agent_completed"
	ToolError      Event = "tool:error"
)

// Input is passed to hook functions.
type Input struct {
	Event           Event
	SessionID       string // Sub-session the event is about.
	ParentSessionID string
	AgentName       string // Empty for resume events.
	Success         bool   // AgentCompleted.
	Error           string // ToolError.

	// Payload is the raw event payload.
	Payload map[string]any
}

// InputFromPayload builds an Input from an emitted event payload.
func InputFromPayload(event Event, payload map[string]any) *Input {
	in := &Input{
		Event:           event,
		SessionID:       str(payload, "sub_session_id"),
		ParentSessionID: str(payload, "parent_session_id"),
		AgentName:       str(payload, "agent"),
		Error:           str(payload, "error"),
		Payload:         payload,
	}
	if in.SessionID == "" {
		in.SessionID = str(payload, "session_id")
	}
	if ok, isBool := payload["success"].(bool); isBool {
		in.Success = ok
	}
	return in
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// Func is the signature for hook callbacks.
type Func func(ctx context.Context, input *Input) error

// Matcher defines which events a set of hooks should fire for.
type Matcher struct {
	Event   Event         // Which event to match.
	Pattern string        // Regex pattern for agent name (empty = match all).
	Hooks   []Func        // Functions to call (in order).
	Timeout time.Duration // Max time for all hooks in this matcher (0 = 30s default).
}
