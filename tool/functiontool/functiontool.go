// Package functiontool adapts a typed Go function into a tool.Tool,
// generating its JSON-schema parameter definition from the argument
// struct's tags. Grounded on pkg/tool/functiontool/schema.go and
// marshal.go, generalized from the ADK-Go-flavored map-only Tool
// interface to this module's context.Context/json.RawMessage Tool.
package functiontool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/agentrt/tool"
)

// Func is a strongly-typed tool implementation: decode Args, do work,
// return Result or an error.
type Func[Args any, Result any] func(ctx context.Context, args Args) (Result, error)

type functionTool[Args any, Result any] struct {
	name        string
	description string
	policy      tool.ExecutionPolicy
	schema      map[string]any
	fn          Func[Args, Result]
}

// Config customizes the wrapped tool beyond name/description/function.
type Config struct {
	Policy tool.ExecutionPolicy
}

// New builds a tool.Tool from a name, description, and typed function.
// The parameter schema is reflected from Args using struct tags:
//
//	type AddArgs struct {
//	    A int `json:"a" jsonschema:"required,description=First operand"`
//	    B int `json:"b" jsonschema:"required,description=Second operand"`
//	}
func New[Args any, Result any](name, description string, fn Func[Args, Result], cfg *Config) (tool.Tool, error) {
	schema, err := generateSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("functiontool %q: generate schema: %w", name, err)
	}

	policy := tool.PolicyAuto
	if cfg != nil && cfg.Policy != "" {
		policy = cfg.Policy
	}

	return &functionTool[Args, Result]{
		name:        name,
		description: description,
		policy:      policy,
		schema:      schema,
		fn:          fn,
	}, nil
}

func (t *functionTool[Args, Result]) Definition() tool.Definition {
	return tool.Definition{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.schema,
		OutputType:  "json",
	}
}

func (t *functionTool[Args, Result]) Policy() tool.ExecutionPolicy { return t.policy }

func (t *functionTool[Args, Result]) Call(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var m map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, tool.InvalidArguments(t.name, err.Error())
		}
	}

	var args Args
	if err := mapToStruct(m, &args); err != nil {
		return nil, tool.InvalidArguments(t.name, err.Error())
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return nil, tool.Execution(t.name, fmt.Errorf("marshal result: %w", err))
	}
	return out, nil
}

// mapToStruct decodes a map[string]any into a typed struct. mapstructure
// handles the common case; it falls back to a JSON marshal/unmarshal
// round trip (the teacher's own functiontool/marshal.go technique) when
// mapstructure's default decoder rejects the input, such as a field type
// that decodes only through its json.Unmarshaler.
func mapToStruct(m map[string]any, target any) error {
	if m == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  target,
	})
	if err == nil && dec.Decode(m) == nil {
		return nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal args: %w", err)
	}
	return nil
}

// generateSchema reflects Args into a flat JSON-schema object, matching
// the teacher's ADK-Go-compatible flattening (inline properties, no
// $ref/$schema/$id noise).
func generateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")

	if m["type"] == "object" {
		result := map[string]any{
			"type":       "object",
			"properties": m["properties"],
		}
		if req, ok := m["required"]; ok {
			result["required"] = req
		}
		if addProps, ok := m["additionalProperties"]; ok {
			result["additionalProperties"] = addProps
		}
		return result, nil
	}
	return m, nil
}
