package delegate

// Config holds the static settings of a Router. ExcludeTools and
// InheritTools are mutually exclusive; when both are set ExcludeTools wins.
// The same holds for hooks.
type Config struct {
	ExcludeTools []string `json:"exclude_tools,omitempty" yaml:"exclude_tools,omitempty"`
	InheritTools []string `json:"inherit_tools,omitempty" yaml:"inherit_tools,omitempty"`
	ExcludeHooks []string `json:"exclude_hooks,omitempty" yaml:"exclude_hooks,omitempty"`
	InheritHooks []string `json:"inherit_hooks,omitempty" yaml:"inherit_hooks,omitempty"`

	// MaxRecursionDepth is declared for hosts but not enforced.
	MaxRecursionDepth int `json:"max_recursion_depth,omitempty" yaml:"max_recursion_depth,omitempty"`
}

// ToolPolicy resolves the tool inheritance policy.
func (c Config) ToolPolicy() InheritancePolicy {
	return BuildPolicy(PolicyConfig{Exclude: c.ExcludeTools, IncludeOnly: c.InheritTools})
}

// HookPolicy resolves the hook inheritance policy.
func (c Config) HookPolicy() InheritancePolicy {
	return BuildPolicy(PolicyConfig{Exclude: c.ExcludeHooks, IncludeOnly: c.InheritHooks})
}

func (c Config) maxDepth() int {
	if c.MaxRecursionDepth <= 0 {
		return DefaultMaxRecursionDepth
	}
	return c.MaxRecursionDepth
}
