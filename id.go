package delegate

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// AgentSeparator splits the span from the agent name in a sub-session id.
// SanitizeAgentName never produces it, so the last occurrence is always the
// separator.
const AgentSeparator = "_"

var (
	nonAlnumRun  = regexp.MustCompile(`[^a-z0-9]+`)
	hyphenRun    = regexp.MustCompile(`-{2,}`)
	subSessionRe = regexp.MustCompile(`^(.*)-([0-9a-f]{16})_([a-z0-9-]+)$`)
)

// SanitizeAgentName makes an agent name safe for ids and file names:
// lowercase alphanumerics separated by single hyphens, "agent" when empty.
// "foundation:zen-architect" becomes "foundation-zen-architect".
func SanitizeAgentName(name string) string {
	s := nonAlnumRun.ReplaceAllString(strings.ToLower(name), "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "agent"
	}
	return s
}

// GenerateSubSessionID builds {parentID}-{span}_{agent}. The span is 16 hex
// characters from crypto/rand.
func GenerateSubSessionID(parentID, agentName string) string {
	return parentID + "-" + newSpan() + AgentSeparator + SanitizeAgentName(agentName)
}

func newSpan() string {
	b := make([]byte, SpanLength/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewRootSessionID returns a 32 hex character id for a top-level session,
// the same width as a W3C trace id.
func NewRootSessionID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// SubSessionID is a parsed sub-session identifier.
type SubSessionID struct {
	ParentID string
	Span     string
	Agent    string
}

// ParseSubSessionID splits a generated id into its parts. It reports false
// for ids that were not produced by GenerateSubSessionID.
func ParseSubSessionID(id string) (SubSessionID, bool) {
	m := subSessionRe.FindStringSubmatch(id)
	if m == nil {
		return SubSessionID{}, false
	}
	return SubSessionID{ParentID: m[1], Span: m[2], Agent: m[3]}, true
}

// AgentFromSessionID returns the agent name embedded after the last
// separator, or "" when there is none.
func AgentFromSessionID(id string) string {
	i := strings.LastIndex(id, AgentSeparator)
	if i < 0 {
		return ""
	}
	return id[i+1:]
}
