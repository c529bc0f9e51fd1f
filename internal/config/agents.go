package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	delegate "github.com/armatrix/delegate-go"
)

// agentFrontMatter is the YAML header of an agent file.
type agentFrontMatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
	Hooks       []string `yaml:"hooks"`
}

// LoadAgents reads all .md files from the given directories as agent
// definitions. An optional YAML front matter block sets name, description,
// tools and hooks; the body becomes the agent's instructions. Names default
// to the file name without extension. Later directories override earlier
// ones for the same name. Missing directories are skipped.
func LoadAgents(dirs ...string) ([]delegate.AgentDefinition, error) {
	seen := make(map[string]delegate.AgentDefinition)

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			def, err := ParseAgent(strings.TrimSuffix(entry.Name(), ".md"), data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			seen[def.Name] = def
		}
	}

	defs := make([]delegate.AgentDefinition, 0, len(seen))
	for _, d := range seen {
		defs = append(defs, d)
	}
	slices.SortFunc(defs, func(a, b delegate.AgentDefinition) int { return strings.Compare(a.Name, b.Name) })
	return defs, nil
}

// ParseAgent parses one agent file. fallbackName is used when the front
// matter has no name.
func ParseAgent(fallbackName string, data []byte) (delegate.AgentDefinition, error) {
	var fm agentFrontMatter
	body := data

	if rest, ok := bytes.CutPrefix(data, []byte("---\n")); ok {
		header, after, found := bytes.Cut(rest, []byte("\n---"))
		if !found {
			return delegate.AgentDefinition{}, fmt.Errorf("unterminated front matter")
		}
		if err := yaml.Unmarshal(header, &fm); err != nil {
			return delegate.AgentDefinition{}, fmt.Errorf("front matter: %w", err)
		}
		body = after
	}

	name := strings.TrimSpace(fm.Name)
	if name == "" {
		name = fallbackName
	}
	return delegate.AgentDefinition{
		Name:           name,
		Description:    strings.TrimSpace(fm.Description),
		PermittedTools: fm.Tools,
		PermittedHooks: fm.Hooks,
		Instructions:   strings.TrimSpace(string(body)),
	}, nil
}
