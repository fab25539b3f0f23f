package runner

import (
	"context"
	"encoding/json"

	"github.com/kadirpekel/agentrt/agent"
	"github.com/kadirpekel/agentrt/subagent"
	"github.com/kadirpekel/agentrt/tool"
)

// toolSet is the union, for one run, of an agent's registered Tools and a
// Sub-agent Adapter (§4.G) per managed agent. Adapters are kept in their
// own map beside the registry, and dispatch hands a managed-agent name
// straight to its Adapter's Call, so adapter calls skip the registry's
// schema validation, tracing and metrics. The step loop still never
// special-cases delegation.
type toolSet struct {
	registry     *tool.Registry
	adapters     map[string]*subagent.Adapter
	adapterOrder []string
}

func buildToolSet(a *agent.Agent, run subagent.Runner) *toolSet {
	ts := &toolSet{
		registry: a.Tools(),
		adapters: make(map[string]*subagent.Adapter),
	}
	for _, sub := range a.ManagedAgents() {
		ts.adapters[sub.Name()] = subagent.New(sub, run, subagent.DefaultMaxDepth)
		ts.adapterOrder = append(ts.adapterOrder, sub.Name())
	}
	return ts
}

// definitions returns every tool/sub-agent definition in registration
// order (registered tools first, then managed agents), the deterministic
// catalog the system prompt renders (§4.H).
func (ts *toolSet) definitions() []tool.Definition {
	defs := ts.registry.Definitions()
	for _, name := range ts.adapterOrder {
		defs = append(defs, ts.adapters[name].Definition())
	}
	return defs
}

// policyFor reports the execution policy governing name, or false if name
// resolves to neither a registered tool nor a managed agent.
func (ts *toolSet) policyFor(name string) (tool.ExecutionPolicy, bool) {
	if t, ok := ts.registry.Get(name); ok {
		return t.Policy(), true
	}
	if ad, ok := ts.adapters[name]; ok {
		return ad.Policy(), true
	}
	return "", false
}

func (ts *toolSet) dispatch(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	if _, ok := ts.registry.Get(name); ok {
		return ts.registry.Dispatch(ctx, name, args)
	}
	if ad, ok := ts.adapters[name]; ok {
		return ad.Call(ctx, args)
	}
	return nil, tool.NotFound(name)
}
