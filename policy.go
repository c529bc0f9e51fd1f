package delegate

import (
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// PolicyMode selects how a spawned child inherits tools or hooks.
type PolicyMode string

const (
	PolicyInheritAll  PolicyMode = "inherit-all"
	PolicyExclude     PolicyMode = "exclude"
	PolicyIncludeOnly PolicyMode = "include-only"
)

// PolicyConfig is the raw configuration for one policy dimension.
// A nil IncludeOnly means "not configured"; an empty non-nil slice means
// "inherit nothing".
type PolicyConfig struct {
	Exclude     []string
	IncludeOnly []string
}

// InheritancePolicy decides which parent tools or hooks a child receives.
// Names may be exact names or doublestar glob patterns such as "mcp-*".
type InheritancePolicy struct {
	Mode  PolicyMode `json:"mode"`
	Names []string   `json:"names,omitempty"`
}

// BuildPolicy resolves a PolicyConfig. A non-empty Exclude always wins over
// IncludeOnly; with neither configured the child inherits everything.
func BuildPolicy(cfg PolicyConfig) InheritancePolicy {
	switch {
	case len(cfg.Exclude) > 0:
		return InheritancePolicy{Mode: PolicyExclude, Names: slices.Clone(cfg.Exclude)}
	case cfg.IncludeOnly != nil:
		return InheritancePolicy{Mode: PolicyIncludeOnly, Names: append([]string{}, cfg.IncludeOnly...)}
	}
	return InheritancePolicy{Mode: PolicyInheritAll}
}

// Allows reports whether a child may inherit name.
func (p InheritancePolicy) Allows(name string) bool {
	switch p.Mode {
	case PolicyExclude:
		return !p.matches(name)
	case PolicyIncludeOnly:
		return p.matches(name)
	}
	return true
}

// Filter returns the subset of names the policy allows, in input order.
func (p InheritancePolicy) Filter(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if p.Allows(n) {
			out = append(out, n)
		}
	}
	return out
}

func (p InheritancePolicy) matches(name string) bool {
	for _, pattern := range p.Names {
		if pattern == name {
			return true
		}
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
