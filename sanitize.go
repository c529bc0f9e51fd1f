package delegate

import "strings"

// Sanitize strips everything a child session cannot use from a parent
// history. Tool results, system prompts and tool-call-only assistant turns
// are dropped; structured content is reduced to its text segments joined by
// newlines. Entries left with no text are dropped. The input is not modified.
func Sanitize(messages []RawMessage) []Message {
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleTool || msg.ToolCallID != "" {
			continue
		}
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			continue
		}
		if msg.Role == RoleAssistant && len(msg.ToolCalls) > 0 && msg.Content.IsEmpty() {
			continue
		}

		text := reduceContent(msg.Content)
		if text == "" {
			continue
		}
		out = append(out, Message{Role: msg.Role, Content: text})
	}
	return out
}

func reduceContent(c Content) string {
	if !c.IsStructured() {
		return c.String()
	}

	var parts []string
	for _, seg := range c.Segments() {
		switch seg.Kind {
		case SegmentText:
			if seg.Text != "" {
				parts = append(parts, seg.Text)
			}
		case SegmentToolInvocation, SegmentToolResult, SegmentReasoning, SegmentUnknown:
		}
	}
	return strings.Join(parts, "\n")
}
