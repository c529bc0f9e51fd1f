package delegate

import (
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ProviderPreference is one entry of an ordered provider/model fallback
// chain. Model may be a glob pattern such as "claude-haiku-*".
type ProviderPreference struct {
	Provider string `json:"provider" jsonschema:"required,description=Provider name (e.g. 'anthropic' or 'openai')" validate:"required"`
	Model    string `json:"model" jsonschema:"required,description=Model name or glob pattern (e.g. 'claude-haiku-*')" validate:"required"`
}

// IsPattern reports whether Model contains glob metacharacters.
func (p ProviderPreference) IsPattern() bool {
	return strings.ContainsAny(p.Model, "*?[{")
}

// Matches reports whether model satisfies this preference.
func (p ProviderPreference) Matches(model string) bool {
	if !p.IsPattern() {
		return p.Model == model
	}
	ok, err := doublestar.Match(p.Model, model)
	return err == nil && ok
}

// Resolve picks a concrete model for this preference from available. A
// literal model resolves to itself. A pattern resolves to the
// lexicographically greatest match, which favors the newest dated release.
func (p ProviderPreference) Resolve(available []string) (string, bool) {
	if !p.IsPattern() {
		return p.Model, p.Model != ""
	}
	var matches []string
	for _, m := range available {
		if p.Matches(m) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	return slices.Max(matches), true
}

// String renders the preference as provider/model.
func (p ProviderPreference) String() string {
	return p.Provider + "/" + p.Model
}
