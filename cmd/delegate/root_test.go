package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup writes a settings file that runs children through sh and an agents
// directory with one agent.
func setup(t *testing.T) (configPath, agentsDir string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	agentsDir = filepath.Join(dir, "agents")
	require.NoError(t, os.Mkdir(agentsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(agentsDir, "echo.md"),
		[]byte("---\ndescription: Echoes its task\n---\n"), 0o644))

	configPath = filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
command:
  path: sh
  args: ["-c", "printf 'did: %s' \"$1\"", "sh"]
store:
  kind: file
  path: `+filepath.Join(dir, "sessions")+`
parent_session_id: root
log_level: error
`), 0o644))
	return configPath, agentsDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type toolOutput struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

func TestRunThenResume(t *testing.T) {
	cfg, agents := setup(t)

	out, err := execute(t, "--config", cfg, "--agents-dir", agents, "run", "--agent", "echo", "--instruction", "count files")
	require.NoError(t, err, out)

	var first toolOutput
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &first), out)
	assert.Equal(t, "did: count files", first.Response)
	assert.True(t, strings.HasPrefix(first.SessionID, "root-"), first.SessionID)
	assert.True(t, strings.HasSuffix(first.SessionID, "_echo"), first.SessionID)

	out, err = execute(t, "--config", cfg, "--agents-dir", agents, "resume", "--session", first.SessionID, "--instruction", "and dirs")
	require.NoError(t, err, out)

	var second toolOutput
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &second), out)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Contains(t, second.Response, "did: count files")
	assert.Contains(t, second.Response, "[YOUR TASK]\nand dirs")

	out, err = execute(t, "--config", cfg, "sessions", "--of", "root")
	require.NoError(t, err)
	assert.Contains(t, out, first.SessionID)
	assert.Contains(t, out, "echo")
}

func TestRun_UnknownAgent(t *testing.T) {
	cfg, agents := setup(t)

	out, err := execute(t, "--config", cfg, "--agents-dir", agents, "run", "--agent", "ghost", "--instruction", "x")
	require.Error(t, err)
	assert.Contains(t, out, "Agent 'ghost' not found")
}

func TestResume_UnknownSession(t *testing.T) {
	cfg, agents := setup(t)

	out, err := execute(t, "--config", cfg, "--agents-dir", agents, "resume", "--session", "nope", "--instruction", "x")
	require.Error(t, err)
	assert.Contains(t, out, "Session 'nope' not found")
}

func TestAgents_ListsFilesAndPresets(t *testing.T) {
	cfg, agents := setup(t)

	out, err := execute(t, "--config", cfg, "--agents-dir", agents, "agents")
	require.NoError(t, err)
	assert.Contains(t, out, "echo")
	assert.Contains(t, out, "Echoes its task")
	assert.Contains(t, out, "general-purpose")
}

func TestID(t *testing.T) {
	cfg, _ := setup(t)

	out, err := execute(t, "--config", cfg, "--parent", "p1", "id", "--agent", "foundation:zen")
	require.NoError(t, err)
	assert.Regexp(t, `^p1-[0-9a-f]{16}_foundation-zen\n$`, out)
}

func TestParsePreferences(t *testing.T) {
	prefs, err := parsePreferences([]string{"anthropic/claude-haiku-*", "openai/gpt-5"})
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, "claude-haiku-*", prefs[0].Model)

	_, err = parsePreferences([]string{"nomodel"})
	assert.Error(t, err)
}
