package registry

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// normalizeInputSchema checks that a tool's input schema is a JSON object
// schema. Invalid schemas are replaced by an empty object schema.
func normalizeInputSchema(raw map[string]any) (map[string]any, error) {
	if len(raw) == 0 {
		return emptyObjectSchema(), nil
	}
	schema, err := ParseSchema(raw)
	if err != nil {
		return emptyObjectSchema(), err
	}
	if schema.Type != "" && schema.Type != "object" {
		return emptyObjectSchema(), fmt.Errorf("input schema type %q is not an object", schema.Type)
	}
	if len(schema.Types) > 0 && !slices.Contains(schema.Types, "object") {
		return emptyObjectSchema(), fmt.Errorf("input schema types %v do not include object", schema.Types)
	}
	if _, err := schema.Resolve(nil); err != nil {
		return emptyObjectSchema(), fmt.Errorf("resolve input schema: %w", err)
	}
	return raw, nil
}

// ParseSchema decodes a loosely typed schema into a jsonschema.Schema.
func ParseSchema(raw map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	return &schema, nil
}

func emptyObjectSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
