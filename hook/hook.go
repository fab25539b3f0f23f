// Package hook implements the two-layer observation system (§4.E):
// RunHooks (scoped to an entire run, including nested sub-agent runs) and
// AgentHooks (scoped to a single agent instance). Grounded on the teacher's
// BeforeAgentCallback/AfterAgentCallback lists in pkg/agent/agent.go,
// generalized from a single sequential callback layer to two independently
// registered layers fired concurrently via golang.org/x/sync/errgroup.
package hook

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/agentrt/message"
)

// ToolOutcome is passed to OnToolEnd, carrying either a result or an error.
type ToolOutcome struct {
	ToolName string
	CallID   string
	Result   string
	Err      error
}

// Hooks is the event surface both RunHooks and AgentHooks implement.
// Every method has a no-op default via NopHooks so implementers only
// override what they need.
type Hooks interface {
	OnStart(ctx context.Context, agentName string)
	OnEnd(ctx context.Context, agentName string, output string)
	OnLLMStart(ctx context.Context, agentName string, req *message.Message)
	OnLLMEnd(ctx context.Context, agentName string, resp *message.Message)
	OnToolStart(ctx context.Context, agentName, toolName string, args string)
	OnToolEnd(ctx context.Context, agentName string, outcome ToolOutcome)
	OnHandoff(ctx context.Context, fromAgent, toAgent string)
	OnError(ctx context.Context, agentName string, err error)
}

// NopHooks implements Hooks with no-ops; embed it to implement only a
// subset of events.
type NopHooks struct{}

func (NopHooks) OnStart(context.Context, string)                     {}
func (NopHooks) OnEnd(context.Context, string, string)               {}
func (NopHooks) OnLLMStart(context.Context, string, *message.Message) {}
func (NopHooks) OnLLMEnd(context.Context, string, *message.Message)  {}
func (NopHooks) OnToolStart(context.Context, string, string, string) {}
func (NopHooks) OnToolEnd(context.Context, string, ToolOutcome)      {}
func (NopHooks) OnHandoff(context.Context, string, string)           {}
func (NopHooks) OnError(context.Context, string, error)              {}

// Dispatcher fires matching events on both its RunHooks and AgentHooks
// layers concurrently and waits for both before returning, per §4.E.
// Hooks must not mutate Memory; they only observe.
type Dispatcher struct {
	Run   Hooks
	Agent Hooks
}

// New builds a Dispatcher. Either layer may be nil, treated as NopHooks.
func New(run, agent Hooks) *Dispatcher {
	if run == nil {
		run = NopHooks{}
	}
	if agent == nil {
		agent = NopHooks{}
	}
	return &Dispatcher{Run: run, Agent: agent}
}

func (d *Dispatcher) both(ctx context.Context, fn func(Hooks)) {
	var g errgroup.Group
	g.Go(func() error { fn(d.Run); return nil })
	g.Go(func() error { fn(d.Agent); return nil })
	_ = g.Wait()
}

func (d *Dispatcher) OnStart(ctx context.Context, agentName string) {
	d.both(ctx, func(h Hooks) { h.OnStart(ctx, agentName) })
}

func (d *Dispatcher) OnEnd(ctx context.Context, agentName, output string) {
	d.both(ctx, func(h Hooks) { h.OnEnd(ctx, agentName, output) })
}

func (d *Dispatcher) OnLLMStart(ctx context.Context, agentName string, req *message.Message) {
	d.both(ctx, func(h Hooks) { h.OnLLMStart(ctx, agentName, req) })
}

func (d *Dispatcher) OnLLMEnd(ctx context.Context, agentName string, resp *message.Message) {
	d.both(ctx, func(h Hooks) { h.OnLLMEnd(ctx, agentName, resp) })
}

func (d *Dispatcher) OnToolStart(ctx context.Context, agentName, toolName, args string) {
	d.both(ctx, func(h Hooks) { h.OnToolStart(ctx, agentName, toolName, args) })
}

func (d *Dispatcher) OnToolEnd(ctx context.Context, agentName string, outcome ToolOutcome) {
	d.both(ctx, func(h Hooks) { h.OnToolEnd(ctx, agentName, outcome) })
}

func (d *Dispatcher) OnHandoff(ctx context.Context, fromAgent, toAgent string) {
	d.both(ctx, func(h Hooks) { h.OnHandoff(ctx, fromAgent, toAgent) })
}

func (d *Dispatcher) OnError(ctx context.Context, agentName string, err error) {
	d.both(ctx, func(h Hooks) { h.OnError(ctx, agentName, err) })
}
