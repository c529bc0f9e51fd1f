package delegate

import (
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"
)

// Role identifies the author of a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// SegmentKind is the closed set of content segment types.
type SegmentKind int

const (
	SegmentUnknown SegmentKind = iota
	SegmentText
	SegmentToolInvocation
	SegmentToolResult
	SegmentReasoning
)

// Segment is one typed piece of structured message content.
type Segment struct {
	Kind SegmentKind
	// Type is the wire type the segment was decoded from, e.g. "tool_use".
	Type string
	Text string
}

// TextSegment returns a text segment.
func TextSegment(text string) Segment {
	return Segment{Kind: SegmentText, Type: "text", Text: text}
}

// Content is either a plain string or an ordered list of segments.
type Content struct {
	text       string
	segments   []Segment
	structured bool
}

// TextContent returns plain string content.
func TextContent(text string) Content {
	return Content{text: text}
}

// SegmentContent returns structured content made of the given segments.
func SegmentContent(segments ...Segment) Content {
	return Content{segments: segments, structured: true}
}

// IsStructured reports whether the content is a segment list.
func (c Content) IsStructured() bool { return c.structured }

// Segments returns the segment list; nil for plain string content.
func (c Content) Segments() []Segment { return c.segments }

// String returns the plain string content; empty for structured content.
func (c Content) String() string { return c.text }

// IsEmpty reports whether the content has no string and no segments.
func (c Content) IsEmpty() bool {
	if c.structured {
		return len(c.segments) == 0
	}
	return c.text == ""
}

// ToolCall is a tool invocation recorded on a message outside its content.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// RawMessage is a conversation entry as held by the parent session. It may
// carry tool invocations, reasoning and other fields that never reach a child.
type RawMessage struct {
	Role       Role
	Content    Content
	ToolCalls  []ToolCall
	ToolCallID string
}

// Message is the sanitized, wire-safe representation handed to a child.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Raw converts a sanitized message back into a RawMessage.
func (m Message) Raw() RawMessage {
	return RawMessage{Role: m.Role, Content: TextContent(m.Content)}
}

// RawMessages converts sanitized messages back into raw form.
func RawMessages(msgs []Message) []RawMessage {
	out := make([]RawMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.Raw()
	}
	return out
}

var errInvalidMessage = errors.New("delegate: invalid message json")

// UnmarshalJSON decodes the historical message shapes: content as a string
// or as a list of typed blocks, tool calls at message level, and tool result
// correlation ids.
func (m *RawMessage) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errInvalidMessage
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return errInvalidMessage
	}

	*m = RawMessage{
		Role:       Role(doc.Get("role").String()),
		ToolCallID: doc.Get("tool_call_id").String(),
		Content:    decodeContent(doc.Get("content")),
	}
	doc.Get("tool_calls").ForEach(func(_, v gjson.Result) bool {
		name := v.Get("name").String()
		if name == "" {
			name = v.Get("function.name").String()
		}
		args := v.Get("arguments")
		if !args.Exists() {
			args = v.Get("function.arguments")
		}
		call := ToolCall{ID: v.Get("id").String(), Name: name}
		if args.Exists() {
			call.Arguments = json.RawMessage(args.Raw)
		}
		m.ToolCalls = append(m.ToolCalls, call)
		return true
	})
	return nil
}

func decodeContent(v gjson.Result) Content {
	switch {
	case v.Type == gjson.String:
		return TextContent(v.String())
	case v.IsArray():
		var segs []Segment
		v.ForEach(func(_, block gjson.Result) bool {
			if block.Type == gjson.String {
				segs = append(segs, TextSegment(block.String()))
				return true
			}
			typ := block.Get("type").String()
			seg := Segment{Kind: segmentKind(typ), Type: typ}
			if seg.Kind == SegmentText {
				seg.Text = block.Get("text").String()
			}
			segs = append(segs, seg)
			return true
		})
		return SegmentContent(segs...)
	}
	return Content{}
}

func segmentKind(typ string) SegmentKind {
	switch typ {
	case "text":
		return SegmentText
	case "tool_use", "tool_call":
		return SegmentToolInvocation
	case "tool_result":
		return SegmentToolResult
	case "thinking", "redacted_thinking":
		return SegmentReasoning
	}
	return SegmentUnknown
}

// FromAnthropic adapts an anthropic-sdk-go conversation into raw messages.
func FromAnthropic(msgs []anthropic.MessageParam) []RawMessage {
	out := make([]RawMessage, 0, len(msgs))
	for _, m := range msgs {
		segs := make([]Segment, 0, len(m.Content))
		for _, b := range m.Content {
			segs = append(segs, segmentFromBlock(b))
		}
		out = append(out, RawMessage{Role: Role(m.Role), Content: SegmentContent(segs...)})
	}
	return out
}

func segmentFromBlock(b anthropic.ContentBlockParamUnion) Segment {
	switch {
	case b.OfText != nil:
		return TextSegment(b.OfText.Text)
	case b.OfToolUse != nil:
		return Segment{Kind: SegmentToolInvocation, Type: "tool_use"}
	case b.OfToolResult != nil:
		return Segment{Kind: SegmentToolResult, Type: "tool_result"}
	case b.OfThinking != nil:
		return Segment{Kind: SegmentReasoning, Type: "thinking"}
	case b.OfRedactedThinking != nil:
		return Segment{Kind: SegmentReasoning, Type: "redacted_thinking"}
	}
	return Segment{Kind: SegmentUnknown}
}
