// Package agent defines the Agent configuration surface (§4.G, §5): an
// immutable, validated bundle of instructions, model, tools, and managed
// sub-agents. Grounded on the teacher's Config/New builder pattern in
// pkg/agent/agent.go (name required, reserved-name rejection, duplicate
// sub-agent detection at construction time), generalized to this module's
// own tool/provider/hook/policy/output types in place of a2a/ADK-Go ones.
package agent

import (
	"fmt"

	"github.com/kadirpekel/agentrt/hook"
	"github.com/kadirpekel/agentrt/output"
	"github.com/kadirpekel/agentrt/provider"
	"github.com/kadirpekel/agentrt/tool"
)

// DefaultMaxSteps is the outer step-loop budget when Config.MaxSteps is
// left at zero, carried over from the Rust original's DEFAULT_MAX_STEPS.
const DefaultMaxSteps = 20

// reservedNames cannot be used as an agent's own Name, since the Sub-agent
// Adapter (§4.G) registers the agent under this name as a tool.
var reservedNames = map[string]bool{
	"user":         true,
	"final_answer": true,
	"user_input":   true,
}

// Config specifies a new Agent. All fields are read once at New and the
// resulting Agent is immutable thereafter.
type Config struct {
	Name         string
	Description  string
	Instructions string

	ModelID string
	LLM     provider.LLM

	Tools         []tool.Tool
	ManagedAgents []*Agent

	RunHooks   hook.Hooks
	AgentHooks hook.Hooks

	OutputSchema      map[string]any
	FinalAnswerChecks []output.Check

	MaxSteps    int
	Temperature *float64
	MaxTokens   *int

	// SummarizeAsSubAgent selects summary-mode memory rendering (§4.C)
	// when this agent is invoked through the Sub-agent Adapter, grounded
	// on the Rust original's provide_run_summary builder flag.
	SummarizeAsSubAgent bool
}

// Agent is an immutable, validated runnable configuration.
type Agent struct {
	name         string
	description  string
	instructions string

	modelID string
	llm     provider.LLM

	tools         *tool.Registry
	managedAgents map[string]*Agent
	managedOrder  []string

	runHooks   hook.Hooks
	agentHooks hook.Hooks

	outputSchema      map[string]any
	finalAnswerChecks []output.Check

	maxSteps    int
	temperature *float64
	maxTokens   *int

	summarizeAsSubAgent bool
}

// New validates cfg and builds an immutable Agent. Build-time errors:
// empty/reserved name, nil LLM, duplicate tool names, unknown or cyclic
// managed-agent references.
func New(cfg Config) (*Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent: name is required")
	}
	if reservedNames[cfg.Name] {
		return nil, fmt.Errorf("agent: name %q is reserved", cfg.Name)
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("agent: LLM is required")
	}

	registry := tool.NewRegistry(nil)
	for _, t := range cfg.Tools {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("agent %q: %w", cfg.Name, err)
		}
	}

	managed := make(map[string]*Agent, len(cfg.ManagedAgents))
	var order []string
	for _, sub := range cfg.ManagedAgents {
		if sub == nil {
			return nil, fmt.Errorf("agent %q: nil managed agent", cfg.Name)
		}
		if _, dup := managed[sub.name]; dup {
			return nil, fmt.Errorf("agent %q: duplicate managed agent %q", cfg.Name, sub.name)
		}
		managed[sub.name] = sub
		order = append(order, sub.name)
	}

	maxSteps := cfg.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}

	a := &Agent{
		name:                cfg.Name,
		description:         cfg.Description,
		instructions:        cfg.Instructions,
		modelID:             cfg.ModelID,
		llm:                 cfg.LLM,
		tools:               registry,
		managedAgents:       managed,
		managedOrder:        order,
		runHooks:            cfg.RunHooks,
		agentHooks:          cfg.AgentHooks,
		outputSchema:        cfg.OutputSchema,
		finalAnswerChecks:   cfg.FinalAnswerChecks,
		maxSteps:            maxSteps,
		temperature:         cfg.Temperature,
		maxTokens:           cfg.MaxTokens,
		summarizeAsSubAgent: cfg.SummarizeAsSubAgent,
	}

	if err := detectCycle(a, map[string]bool{}); err != nil {
		return nil, err
	}

	return a, nil
}

// detectCycle walks the managed-agent graph via DFS, generalizing the
// teacher's duplicate-name-only check (pkg/runner/runner.go's
// BuildParentMap) to full-cycle detection: A may embed B and C, but not
// transitively embed itself.
func detectCycle(a *Agent, visiting map[string]bool) error {
	if visiting[a.name] {
		return fmt.Errorf("agent: cyclic managed-agent reference involving %q", a.name)
	}
	visiting[a.name] = true
	defer delete(visiting, a.name)

	for _, name := range a.managedOrder {
		if err := detectCycle(a.managedAgents[name], visiting); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) Name() string                      { return a.name }
func (a *Agent) Description() string               { return a.description }
func (a *Agent) Instructions() string               { return a.instructions }
func (a *Agent) ModelID() string                    { return a.modelID }
func (a *Agent) LLM() provider.LLM                  { return a.llm }
func (a *Agent) MaxSteps() int                      { return a.maxSteps }
func (a *Agent) Temperature() *float64              { return a.temperature }
func (a *Agent) MaxTokens() *int                    { return a.maxTokens }
func (a *Agent) OutputSchema() map[string]any       { return a.outputSchema }
func (a *Agent) FinalAnswerChecks() []output.Check  { return a.finalAnswerChecks }
func (a *Agent) SummarizeAsSubAgent() bool          { return a.summarizeAsSubAgent }
func (a *Agent) Tools() *tool.Registry              { return a.tools }
func (a *Agent) Hooks() *hook.Dispatcher            { return hook.New(a.runHooks, a.agentHooks) }

// ManagedAgents returns the sub-agents this agent can delegate to, in
// configuration order.
func (a *Agent) ManagedAgents() []*Agent {
	out := make([]*Agent, len(a.managedOrder))
	for i, name := range a.managedOrder {
		out[i] = a.managedAgents[name]
	}
	return out
}
