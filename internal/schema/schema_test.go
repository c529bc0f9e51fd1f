package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type target struct {
	Provider string `json:"provider" jsonschema:"required,description=Provider name"`
	Model    string `json:"model" jsonschema:"required"`
}

type delegationInput struct {
	Agent       string   `json:"agent,omitempty" jsonschema:"description=Agent to spawn"`
	Instruction string   `json:"instruction" jsonschema:"required,description=What to do"`
	Mode        string   `json:"mode,omitempty" jsonschema:"enum=none,enum=recent,enum=all"`
	Turns       *int     `json:"turns,omitempty" jsonschema:"description=Turn count"`
	Verbose     bool     `json:"verbose,omitempty"`
	Targets     []target `json:"targets,omitempty"`
}

func TestGenerateRequiredAndDescriptions(t *testing.T) {
	s := Generate[delegationInput]()

	props, ok := s.Properties.(map[string]any)
	require.True(t, ok, "Properties should be map[string]any")

	instr, ok := props["instruction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", instr["type"])
	assert.Equal(t, "What to do", instr["description"])

	assert.Contains(t, s.Required, "instruction")
	assert.NotContains(t, s.Required, "agent")
}

func TestGenerateEnum(t *testing.T) {
	props := Generate[delegationInput]().Properties.(map[string]any)

	mode, ok := props["mode"].(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"none", "recent", "all"}, mode["enum"])
}

func TestGeneratePointerAndBool(t *testing.T) {
	props := Generate[delegationInput]().Properties.(map[string]any)

	turns, ok := props["turns"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "integer", turns["type"])

	verbose, ok := props["verbose"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boolean", verbose["type"])
}

func TestGenerateInlinesNestedArrayItems(t *testing.T) {
	props := Generate[delegationInput]().Properties.(map[string]any)

	targets, ok := props["targets"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", targets["type"])

	items, ok := targets["items"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", items["type"])
	itemProps, ok := items["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, itemProps, "provider")
	assert.Contains(t, itemProps, "model")
	assert.ElementsMatch(t, []string{"provider", "model"}, items["required"])
}

func TestGenerateJSONRoundtrip(t *testing.T) {
	data, err := GenerateJSON[delegationInput]()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, "object", m["type"])
	assert.NotNil(t, m["properties"])
	assert.NotNil(t, m["required"])
}

func TestMap(t *testing.T) {
	m := Map[delegationInput]()
	assert.Equal(t, "object", m["type"])
	assert.Equal(t, []string{"instruction"}, m["required"])
}
