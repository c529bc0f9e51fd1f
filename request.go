package delegate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Mode is the routing decision for a request.
type Mode int

const (
	ModeSpawn Mode = iota
	ModeResume
)

func (m Mode) String() string {
	if m == ModeResume {
		return "resume"
	}
	return "spawn"
}

// Request is a single delegation, decoded from the Task tool input.
// A non-blank SessionID always makes it a resume.
type Request struct {
	Agent               string               `json:"agent,omitempty" jsonschema:"description=Agent name for spawning a new sub-session (e.g. 'foundation:zen-architect')"`
	Instruction         string               `json:"instruction" jsonschema:"required,description=Task instruction for the agent"`
	SessionID           string               `json:"session_id,omitempty" jsonschema:"description=Session ID to resume (from a previous spawn or resume response)"`
	InheritContext      InheritMode          `json:"inherit_context,omitempty" jsonschema:"enum=none,enum=recent,enum=all,description=Context inheritance: 'none' (default) starts fresh; 'recent' passes the last N turns; 'all' passes the full history" validate:"omitempty,oneof=none recent all"`
	InheritContextTurns *int                 `json:"inherit_context_turns,omitempty" jsonschema:"description=Number of recent turns passed when inherit_context is 'recent' (default: 5)" validate:"omitempty,gte=0"`
	ProviderPreferences []ProviderPreference `json:"provider_preferences,omitempty" jsonschema:"description=Ordered provider/model fallback chain; model names support glob patterns" validate:"omitempty,dive"`
}

// Mode reports whether the request spawns or resumes.
func (r Request) Mode() Mode {
	if strings.TrimSpace(r.SessionID) != "" {
		return ModeResume
	}
	return ModeSpawn
}

// ContextPolicy returns the requested history inheritance with defaults
// applied.
func (r Request) ContextPolicy() ContextPolicy {
	p := ContextPolicy{Mode: r.InheritContext, Turns: DefaultInheritTurns}
	if p.Mode == "" {
		p.Mode = InheritNone
	}
	if r.InheritContextTurns != nil {
		p.Turns = *r.InheritContextTurns
	}
	return p
}

func (r Request) normalized() Request {
	r.Agent = strings.TrimSpace(r.Agent)
	r.Instruction = strings.TrimSpace(r.Instruction)
	r.SessionID = strings.TrimSpace(r.SessionID)
	return r
}

// ParseRequest decodes a Task tool input.
func ParseRequest(raw []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(raw, &r); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return r, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural constraints of the request: known
// inheritance mode, non-negative turn count, complete provider preferences.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}
