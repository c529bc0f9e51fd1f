package delegate

const (
	// ToolName is the name the Task tool is registered under.
	ToolName = "task"

	// DefaultInheritTurns is the number of recent turns passed when a request
	// asks for recent context without specifying a count.
	DefaultInheritTurns = 5

	// DefaultMaxRecursionDepth is the declared nesting limit for delegations.
	DefaultMaxRecursionDepth = 1

	// MaxContextContentChars caps each rendered parent message.
	MaxContextContentChars = 2000

	// TruncatedSuffix is appended to parent messages cut at MaxContextContentChars.
	TruncatedSuffix = "... [truncated]"

	// SpanLength is the number of hex characters in a sub-session span.
	SpanLength = 16
)
