package config

import delegate "github.com/armatrix/delegate-go"

// Presets are built-in agent definitions available when no agent directory
// provides one of the same name.
var Presets = map[string]delegate.AgentDefinition{
	"general-purpose": {
		Name:         "general-purpose",
		Description:  "General agent for multi-step research and coding tasks",
		Instructions: "You are a sub-agent working on a task delegated by another agent. Complete the task and reply with a concise report of what you found or did.",
	},
	"explore": {
		Name:           "explore",
		Description:    "Read-only agent for searching and summarizing a codebase",
		PermittedTools: []string{"read*", "glob", "grep"},
		PermittedHooks: []string{},
		Instructions:   "You are a read-only exploration agent. Search and read, never modify. Reply with the relevant file paths and a short summary.",
	},
}

// GetPreset returns the built-in agent with the given name.
func GetPreset(name string) (delegate.AgentDefinition, bool) {
	def, ok := Presets[name]
	return def, ok
}

// WithPresets returns defs plus every preset whose name defs does not
// already use.
func WithPresets(defs []delegate.AgentDefinition) []delegate.AgentDefinition {
	out := append([]delegate.AgentDefinition(nil), defs...)
	used := make(map[string]bool, len(defs))
	for _, d := range defs {
		used[d.Name] = true
	}
	for _, name := range []string{"explore", "general-purpose"} {
		if !used[name] {
			out = append(out, Presets[name])
		}
	}
	return out
}
