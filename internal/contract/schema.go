package contract

import (
	"encoding/json"
	"fmt"

	"github.com/structocr/structocr/internal/providers"
)

// ResponseFormat renders the contract as a strict json_schema response format
// for structured LLM calls.
func (c *Contract) ResponseFormat() (*providers.ResponseFormat, error) {
	schema := map[string]any{
		"name":   c.Name,
		"strict": true,
		"schema": objectSchema(c.Fields),
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize contract schema: %w", err)
	}
	return &providers.ResponseFormat{
		Type:       "json_schema",
		JSONSchema: raw,
	}, nil
}

func objectSchema(fields []Field) map[string]any {
	properties := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		properties[f.Name] = fieldSchema(f)
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func fieldSchema(f Field) map[string]any {
	var schema map[string]any
	switch f.Kind {
	case KindObject:
		schema = objectSchema(f.Fields)
	case KindArray:
		schema = map[string]any{
			"type":  "array",
			"items": fieldSchema(*f.Items),
		}
	default:
		schema = map[string]any{"type": string(f.Kind)}
	}

	if f.Optional {
		// Strict structured outputs require every property; optional fields
		// are expressed as nullable instead.
		schema["type"] = []any{schema["type"], "null"}
	}
	if f.Description != "" {
		schema["description"] = f.Description
	}
	return schema
}

// DescribeFields renders a human-readable field listing (path, kind,
// description) for prompt construction.
func (c *Contract) DescribeFields() string {
	var out []byte
	var walk func(fields []Field, prefix, indent string)
	walk = func(fields []Field, prefix, indent string) {
		for _, f := range fields {
			path := joinPath(prefix, f.Name)
			line := fmt.Sprintf("%s- %s (%s)", indent, f.Name, f.Kind)
			if f.Description != "" {
				line += ": " + f.Description
			}
			out = append(out, line...)
			out = append(out, '\n')
			switch f.Kind {
			case KindObject:
				walk(f.Fields, path, indent+"  ")
			case KindArray:
				if f.Items != nil && f.Items.Kind == KindObject {
					walk(f.Items.Fields, path, indent+"  ")
				}
			}
		}
	}
	walk(c.Fields, "", "")
	return string(out)
}
