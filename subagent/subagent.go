// Package subagent implements the Sub-agent Adapter (§4.G): wrapping an
// Agent so it appears to a parent agent as an ordinary Tool. Grounded on
// the Rust original's managed/tool_wrapper.rs, whose fixed
// {task, additional_args} parameter schema supersedes the teacher's own
// agenttool.go (a bare {request: string} schema) per SPEC_FULL.md §4.G.
package subagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kadirpekel/agentrt/agent"
	"github.com/kadirpekel/agentrt/memory"
	"github.com/kadirpekel/agentrt/message"
	"github.com/kadirpekel/agentrt/tool"
)

// DefaultMaxDepth bounds sub-agent recursion when an Adapter is built
// without an explicit depth limit.
const DefaultMaxDepth = 5

// DepthExceededError is returned when invoking a sub-agent would exceed
// the configured recursion depth. It is deliberately NOT a *tool.Error:
// per the RunError taxonomy (§7), exceeding the depth limit is a distinct
// fatal error, not a tool-call observation the run continues past, so it
// must propagate to the runner as StateFailed rather than becoming
// tool-result text.
type DepthExceededError struct {
	Agent string
	Max   int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("subagent %q: recursion depth exceeded (max %d)", e.Agent, e.Max)
}

// depthKey is the context key carrying the current sub-agent nesting
// depth, incremented by each Adapter.Call and checked against maxDepth.
type depthKey struct{}

func depthFromContext(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// Runner executes a child run for a sub-agent invocation. It is supplied
// by the runner package at adapter-construction time, avoiding an import
// cycle (the runner builds adapters over its own Run, and an adapter's
// Call must in turn invoke the runner). transcript is the completed
// child run's Memory, used by Call to render a summary-mode transcript
// when the sub-agent is configured with SummarizeAsSubAgent (§4.C, §4.G).
type Runner func(ctx context.Context, sub *agent.Agent, task string, additionalArgs map[string]any) (answer string, usage *message.Usage, transcript *memory.Memory, err error)

// usageSinkKey carries the parent run's token-usage accumulator
// (RunContext.token_usage_accumulator, §3) into Adapter.Call, since a
// Tool's Call signature has no return slot for usage. The runner installs
// one per run so a sub-agent's token counts roll up into the parent's
// total regardless of delegation depth.
type usageSinkKey struct{}

// ContextWithUsageSink attaches sink to ctx; every Adapter.Call reachable
// from ctx reports its child's usage to sink once the child run finishes.
func ContextWithUsageSink(ctx context.Context, sink func(*message.Usage)) context.Context {
	return context.WithValue(ctx, usageSinkKey{}, sink)
}

func usageSinkFromContext(ctx context.Context) func(*message.Usage) {
	if f, ok := ctx.Value(usageSinkKey{}).(func(*message.Usage)); ok {
		return f
	}
	return nil
}

// Adapter exposes a single Agent as a tool.Tool.
type Adapter struct {
	sub      *agent.Agent
	run      Runner
	maxDepth int
}

// New builds an Adapter over sub, using run to execute child invocations.
// maxDepth <= 0 selects DefaultMaxDepth.
func New(sub *agent.Agent, run Runner, maxDepth int) *Adapter {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Adapter{sub: sub, run: run, maxDepth: maxDepth}
}

// args is the fixed parameter schema for every Sub-agent Adapter tool.
type args struct {
	Task           string         `json:"task"`
	AdditionalArgs map[string]any `json:"additional_args,omitempty"`
}

func (a *Adapter) Definition() tool.Definition {
	return tool.Definition{
		Name:        a.sub.Name(),
		Description: fmt.Sprintf("Delegate a task to %s. %s", a.sub.Name(), a.sub.Description()),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task": map[string]any{
					"type":        "string",
					"description": "Long detailed description of the task.",
				},
				"additional_args": map[string]any{
					"type":        "object",
					"description": "Extra inputs to pass to the managed agent.",
				},
			},
			"required": []any{"task"},
		},
		OutputType: "string",
	}
}

func (a *Adapter) Policy() tool.ExecutionPolicy { return tool.PolicyAuto }

func (a *Adapter) Call(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	depth := depthFromContext(ctx)
	if depth >= a.maxDepth {
		return nil, &DepthExceededError{Agent: a.sub.Name(), Max: a.maxDepth}
	}

	var parsed args
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, tool.InvalidArguments(a.sub.Name(), err.Error())
		}
	}
	if parsed.Task == "" {
		return nil, tool.InvalidArguments(a.sub.Name(), "task is required")
	}

	childCtx := context.WithValue(ctx, depthKey{}, depth+1)
	answer, usage, transcript, err := a.run(childCtx, a.sub, parsed.Task, parsed.AdditionalArgs)
	if sink := usageSinkFromContext(ctx); sink != nil {
		sink(usage)
	}
	if err != nil {
		return nil, tool.Execution(a.sub.Name(), err)
	}

	result := answer
	if a.sub.SummarizeAsSubAgent() && transcript != nil {
		if summary := transcript.RenderSummaryText(); summary != "" {
			result = fmt.Sprintf("%s\n\n--- %s run summary ---\n%s", answer, a.sub.Name(), summary)
		}
	}

	out, err := json.Marshal(result)
	if err != nil {
		return nil, tool.Execution(a.sub.Name(), fmt.Errorf("marshal result: %w", err))
	}
	return out, nil
}
