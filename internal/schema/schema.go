// Package schema derives tool input schemas from Go struct types.
package schema

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
)

var reflector = &jsonschema.Reflector{
	// Inline every type so the tool schema is self-contained.
	DoNotReference: true,
	ExpandedStruct: true,
}

// Generate produces an anthropic.ToolInputSchemaParam from a Go struct type T.
// It uses struct tags (json, jsonschema) to derive the JSON Schema.
func Generate[T any]() anthropic.ToolInputSchemaParam {
	var zero T
	root := reflector.Reflect(&zero)

	return anthropic.ToolInputSchemaParam{
		Properties: schemaProperties(root),
		Required:   root.Required,
	}
}

// Map returns the full object schema of T as a plain map, for providers
// that take JSON Schema directly.
func Map[T any]() map[string]any {
	p := Generate[T]()
	m := map[string]any{
		"type":       "object",
		"properties": p.Properties,
	}
	if len(p.Required) > 0 {
		m["required"] = p.Required
	}
	return m
}

// schemaProperties converts an ordered map of properties into a plain
// map[string]any suitable for the Anthropic API.
func schemaProperties(s *jsonschema.Schema) map[string]any {
	if s.Properties == nil {
		return nil
	}
	props := make(map[string]any)
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props[pair.Key] = propertySchema(pair.Value)
	}
	return props
}

// propertySchema converts a single property schema to a serializable map.
func propertySchema(s *jsonschema.Schema) map[string]any {
	m := make(map[string]any)

	if s.Type != "" {
		m["type"] = s.Type
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if s.Default != nil {
		m["default"] = s.Default
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}

	// Pointer types come back as anyOf with a null branch.
	if len(s.AnyOf) > 0 {
		for _, sub := range s.AnyOf {
			if sub.Type != "null" && sub.Type != "" {
				m["type"] = sub.Type
				break
			}
		}
	}

	if s.Properties != nil {
		m["type"] = "object"
		m["properties"] = schemaProperties(s)
		if len(s.Required) > 0 {
			m["required"] = s.Required
		}
	}

	if s.Items != nil {
		m["items"] = propertySchema(s.Items)
	}

	return m
}

// GenerateJSON is a convenience that returns the schema as raw JSON bytes.
func GenerateJSON[T any]() (json.RawMessage, error) {
	param := Generate[T]()
	return json.Marshal(param)
}
