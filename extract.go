package delegate

import (
	"context"
	"strings"
	"unicode/utf8"
)

// InheritMode selects how much parent history a spawned child receives.
type InheritMode string

const (
	InheritNone   InheritMode = "none"
	InheritRecent InheritMode = "recent"
	InheritAll    InheritMode = "all"
)

// ContextPolicy is the caller's request for parent history.
type ContextPolicy struct {
	Mode InheritMode
	// Turns is the number of trailing turns kept in InheritRecent mode.
	Turns int
}

// ContextProvider exposes the parent session's conversation history.
type ContextProvider interface {
	Messages(ctx context.Context) ([]RawMessage, error)
}

// ContextProviderFunc adapts a function to ContextProvider.
type ContextProviderFunc func(ctx context.Context) ([]RawMessage, error)

func (f ContextProviderFunc) Messages(ctx context.Context) ([]RawMessage, error) { return f(ctx) }

// ExtractContext fetches parent history from p and applies policy. A nil
// provider, a retrieval error or an empty history all yield no context.
func ExtractContext(ctx context.Context, p ContextProvider, policy ContextPolicy) ([]Message, bool) {
	if p == nil || policy.Mode == InheritNone || policy.Mode == "" {
		return nil, false
	}
	history, err := p.Messages(ctx)
	if err != nil {
		return nil, false
	}
	return Extract(history, policy)
}

// Extract applies policy to history. The boolean is false when no context
// should be attached at all.
func Extract(history []RawMessage, policy ContextPolicy) ([]Message, bool) {
	if len(history) == 0 {
		return nil, false
	}
	switch policy.Mode {
	case InheritAll:
		return Sanitize(history), true
	case InheritRecent:
		return Sanitize(ExtractRecentTurns(history, policy.Turns)), true
	}
	return nil, false
}

// ExtractRecentTurns returns the messages of the last n turns. A turn starts
// at a user message and runs up to the next one. Histories with fewer than n
// turns, or with no user message at all, are returned whole.
func ExtractRecentTurns(messages []RawMessage, n int) []RawMessage {
	if len(messages) == 0 || n <= 0 {
		return nil
	}

	var starts []int
	for i, m := range messages {
		if m.Role == RoleUser {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 || len(starts) <= n {
		return messages
	}
	return messages[starts[len(starts)-n]:]
}

// FormatParentContext renders sanitized messages as a bounded transcript
// suitable for prepending to a child's instruction.
func FormatParentContext(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}

	lines := []string{
		"[PARENT CONVERSATION CONTEXT]",
		"The following is recent conversation history from the parent session:",
		"",
	}
	for _, m := range messages {
		lines = append(lines, roleLabel(m.Role)+": "+truncateContent(m.Content), "")
	}
	lines = append(lines, "[END PARENT CONTEXT]")
	return strings.Join(lines, "\n")
}

// ComposeInstruction wraps instruction in the parent context envelope. An
// empty context leaves the instruction unchanged.
func ComposeInstruction(contextText, instruction string) string {
	if contextText == "" {
		return instruction
	}
	return contextText + "\n\n[YOUR TASK]\n" + instruction
}

func roleLabel(r Role) string {
	switch r {
	case RoleUser:
		return "USER"
	case RoleAssistant:
		return "ASSISTANT"
	case "":
		return "UNKNOWN"
	}
	return strings.ToUpper(string(r))
}

func truncateContent(s string) string {
	if utf8.RuneCountInString(s) <= MaxContextContentChars {
		return s
	}
	return string([]rune(s)[:MaxContextContentChars]) + TruncatedSuffix
}
