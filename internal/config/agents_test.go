package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAgents_FrontMatter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "zen.md"), `---
name: foundation:zen-architect
description: Designs clean systems
tools: [read_*, grep]
hooks: []
---
You are an architect.
`)
	writeFile(t, filepath.Join(dir, "plain.md"), "Just do the thing.")
	writeFile(t, filepath.Join(dir, "readme.txt"), "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	defs, err := LoadAgents(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "foundation:zen-architect", defs[0].Name)
	assert.Equal(t, "Designs clean systems", defs[0].Description)
	assert.Equal(t, []string{"read_*", "grep"}, defs[0].PermittedTools)
	assert.NotNil(t, defs[0].PermittedHooks)
	assert.Empty(t, defs[0].PermittedHooks)
	assert.Equal(t, "You are an architect.", defs[0].Instructions)

	assert.Equal(t, "plain", defs[1].Name)
	assert.Nil(t, defs[1].PermittedTools, "no restriction")
	assert.Equal(t, "Just do the thing.", defs[1].Instructions)
}

func TestLoadAgents_LaterDirOverrides(t *testing.T) {
	user := t.TempDir()
	project := t.TempDir()
	writeFile(t, filepath.Join(user, "reviewer.md"), "user version")
	writeFile(t, filepath.Join(project, "reviewer.md"), "project version")

	defs, err := LoadAgents(user, project, "/nonexistent")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "project version", defs[0].Instructions)
}

func TestParseAgent_Errors(t *testing.T) {
	_, err := ParseAgent("x", []byte("---\nname: x\nno end"))
	assert.ErrorContains(t, err, "unterminated")

	_, err = ParseAgent("x", []byte("---\nname: [unclosed\n---\nbody"))
	assert.ErrorContains(t, err, "front matter")
}
