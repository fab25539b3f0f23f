package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema validates assistant text as JSON conforming to a configured
// output schema (§4.J). It reuses santhosh-tekuri/jsonschema/v5, the same
// library tool.Registry compiles tool-argument schemas with, so structured
// output and tool arguments share one schema-validation dependency.
type Schema struct {
	compiled *jsonschema.Schema
}

// Compile compiles schema (a JSON-schema document) ahead of time.
func Compile(name string, schema map[string]any) (*Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("output: marshal schema %q: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	resource := name + ".output.schema.json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("output: add schema resource %q: %w", name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("output: compile schema %q: %w", name, err)
	}
	return &Schema{compiled: compiled}, nil
}

// ParseAndValidate parses text as JSON and validates it against the
// schema. On success it returns text unchanged as a json.RawMessage; the
// decoded value is not returned.
func (s *Schema) ParseAndValidate(text string) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("output: not valid JSON: %w", err)
	}
	if err := s.compiled.Validate(v); err != nil {
		return nil, fmt.Errorf("output: schema validation failed: %w", err)
	}
	return json.RawMessage(text), nil
}
