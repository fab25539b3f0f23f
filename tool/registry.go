package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/agentrt/observability"
	"github.com/kadirpekel/agentrt/registry"
)

var nameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Registry is the name-indexed Tool Registry of §4.B: unique, case
// sensitive, `[A-Za-z_][A-Za-z0-9_]*`-matching names, insertion-order
// iteration, schema-validated dispatch. It is read-only during a run;
// the Agent builder is the only mutator.
type Registry struct {
	tools    *registry.Ordered[Tool]
	schemas  map[string]*jsonschema.Schema
	metrics  observability.Metrics
	tracer   oteltrace.Tracer
}

// NewRegistry creates an empty registry. Pass nil for metrics to use the
// recorder installed by observability.SetGlobalMetrics (a no-op unless one
// was installed).
func NewRegistry(metrics observability.Metrics) *Registry {
	if metrics == nil {
		metrics = observability.GlobalMetrics()
	}
	return &Registry{
		tools:   registry.NewOrdered[Tool](),
		schemas: make(map[string]*jsonschema.Schema),
		metrics: metrics,
		tracer:  observability.Tracer("agentrt.tool"),
	}
}

// Register adds t to the registry, compiling its parameter schema ahead
// of time so dispatch-time validation never pays a compile cost.
func (r *Registry) Register(t Tool) error {
	def := t.Definition()
	if err := validateName(def.Name); err != nil {
		return err
	}
	if _, exists := r.tools.Get(def.Name); exists {
		return fmt.Errorf("tool registry: duplicate tool name %q", def.Name)
	}

	compiled, err := compileSchema(def.Name, def.Parameters)
	if err != nil {
		return err
	}

	if err := r.tools.Register(def.Name, t); err != nil {
		return err
	}
	if compiled != nil {
		r.schemas[def.Name] = compiled
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("tool registry: tool name cannot be empty")
	}
	if name[0] == '_' {
		return fmt.Errorf("tool registry: names starting with '_' are reserved: %q", name)
	}
	if name == "final_answer" || name == "user_input" {
		return fmt.Errorf("tool registry: %q is a reserved tool name", name)
	}
	if !nameRE.MatchString(name) {
		return fmt.Errorf("tool registry: invalid tool name %q, must match [A-Za-z_][A-Za-z0-9_]*", name)
	}
	return nil
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	if len(params) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("tool registry: marshal schema for %q: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tool registry: add schema resource for %q: %w", name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("tool registry: compile schema for %q: %w", name, err)
	}
	return schema, nil
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.tools.Get(name)
}

// Definitions returns every ToolDefinition in insertion order, the
// deterministic ordering §4.B requires for prompt/schema rendering.
func (r *Registry) Definitions() []Definition {
	tools := r.tools.List()
	defs := make([]Definition, len(tools))
	for i, t := range tools {
		defs[i] = t.Definition()
	}
	return defs
}

// Dispatch validates args against name's schema and, if valid, invokes
// the tool. Errors are always a *tool.Error. Dispatch is instrumented
// with a trace span and metrics, mirroring the teacher's ExecuteTool.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "tool.dispatch", oteltrace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	result, err := r.dispatch(ctx, name, args)

	r.metrics.RecordToolExecution(ctx, name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (r *Registry) dispatch(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	t, ok := r.tools.Get(name)
	if !ok {
		return nil, NotFound(name)
	}

	if schema, ok := r.schemas[name]; ok {
		var v any
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		if err := json.Unmarshal(args, &v); err != nil {
			return nil, InvalidArguments(name, fmt.Sprintf("arguments are not valid JSON: %v", err))
		}
		if err := schema.Validate(v); err != nil {
			return nil, InvalidArguments(name, err.Error())
		}
	}

	result, err := t.Call(ctx, args)
	if err != nil {
		var toolErr *Error
		if asToolError(err, &toolErr) {
			return nil, toolErr
		}
		return nil, Execution(name, err)
	}
	return result, nil
}

func asToolError(err error, target **Error) bool {
	te, ok := err.(*Error)
	if ok {
		*target = te
	}
	return ok
}
