// Package config loads delegation settings and agent definitions from disk.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	delegate "github.com/armatrix/delegate-go"
)

// ProviderSettings configures one model provider.
type ProviderSettings struct {
	Name    string   `json:"name" yaml:"name"`
	APIKey  string   `json:"apiKey,omitempty" yaml:"api_key,omitempty"`
	BaseURL string   `json:"baseURL,omitempty" yaml:"base_url,omitempty"`
	Models  []string `json:"models,omitempty" yaml:"models,omitempty"`
}

// CommandSettings configures an external agent process as the child runtime.
type CommandSettings struct {
	Path    string   `json:"path,omitempty" yaml:"path,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	Timeout string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// StoreSettings selects where sub-session transcripts live.
type StoreSettings struct {
	// Kind is "memory", "file" or "sqlite".
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Settings holds merged configuration from multiple sources.
// Later sources override earlier ones (user < project < local).
type Settings struct {
	Delegate           delegate.Config               `json:"delegate" yaml:"delegate"`
	Providers          []ProviderSettings            `json:"providers,omitempty" yaml:"providers,omitempty"`
	DefaultPreferences []delegate.ProviderPreference `json:"defaultPreferences,omitempty" yaml:"default_preferences,omitempty"`
	Command            CommandSettings               `json:"command" yaml:"command"`
	Store              StoreSettings                 `json:"store" yaml:"store"`
	AgentDirs          []string                      `json:"agentDirs,omitempty" yaml:"agent_dirs,omitempty"`
	MaxBudgetUSD       float64                       `json:"maxBudgetUSD,omitempty" yaml:"max_budget_usd,omitempty"`
	ParentSessionID    string                        `json:"parentSessionId,omitempty" yaml:"parent_session_id,omitempty"`
	LogLevel           string                        `json:"logLevel,omitempty" yaml:"log_level,omitempty"`
	LogFormat          string                        `json:"logFormat,omitempty" yaml:"log_format,omitempty"`
}

// LoadSettings merges settings from JSON or YAML files, chosen by extension.
// Later paths override earlier ones. Missing files are skipped; a file that
// exists but does not parse is an error.
func LoadSettings(paths ...string) (*Settings, error) {
	merged := &Settings{}
	for _, path := range paths {
		s, err := loadSettingsFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		mergeSettings(merged, s)
	}
	return merged, nil
}

// DefaultSettingsPaths returns the standard settings file search paths.
func DefaultSettingsPaths(projectDir string) []string {
	home, _ := os.UserHomeDir()
	var paths []string

	// User-level settings
	if home != "" {
		paths = append(paths, filepath.Join(home, ".delegate", "settings.yaml"))
	}

	// Project-level settings, then local overrides
	if projectDir != "" {
		paths = append(paths,
			filepath.Join(projectDir, ".delegate", "settings.yaml"),
			filepath.Join(projectDir, ".delegate", "settings.local.yaml"),
		)
	}

	return paths
}

func loadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return &s, nil
}

func mergeSettings(dst, src *Settings) {
	mergeDelegate(&dst.Delegate, src.Delegate)

	// Providers merge by name; a later entry replaces an earlier one.
	for _, p := range src.Providers {
		replaced := false
		for i := range dst.Providers {
			if dst.Providers[i].Name == p.Name {
				dst.Providers[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			dst.Providers = append(dst.Providers, p)
		}
	}
	if len(src.DefaultPreferences) > 0 {
		dst.DefaultPreferences = src.DefaultPreferences
	}
	if src.Command.Path != "" {
		dst.Command = src.Command
	}
	if src.Store.Kind != "" {
		dst.Store = src.Store
	}
	dst.AgentDirs = append(dst.AgentDirs, src.AgentDirs...)
	if src.MaxBudgetUSD > 0 {
		dst.MaxBudgetUSD = src.MaxBudgetUSD
	}
	if src.ParentSessionID != "" {
		dst.ParentSessionID = src.ParentSessionID
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
}

// mergeDelegate overrides each policy pair as a unit so that a later file
// switching from exclude to inherit does not leave both set.
func mergeDelegate(dst *delegate.Config, src delegate.Config) {
	if src.ExcludeTools != nil || src.InheritTools != nil {
		dst.ExcludeTools = src.ExcludeTools
		dst.InheritTools = src.InheritTools
	}
	if src.ExcludeHooks != nil || src.InheritHooks != nil {
		dst.ExcludeHooks = src.ExcludeHooks
		dst.InheritHooks = src.InheritHooks
	}
	if src.MaxRecursionDepth > 0 {
		dst.MaxRecursionDepth = src.MaxRecursionDepth
	}
}
