// Package runner implements the reasoning loop of §4.H: it drives an
// Agent's steps, enforces the step budget, dispatches tool calls
// (including delegation to managed sub-agents via the Sub-agent Adapter),
// validates the final answer, and reports both a synchronous Result and a
// streamed Event pipeline (§4.I). Grounded on the teacher's
// pkg/agent/llmagent/flow.go step loop, generalized to concurrent
// tool-call dispatch and this module's own provider/memory/policy/output
// types.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/kadirpekel/agentrt/agent"
	"github.com/kadirpekel/agentrt/hook"
	"github.com/kadirpekel/agentrt/memory"
	"github.com/kadirpekel/agentrt/message"
	"github.com/kadirpekel/agentrt/output"
	"github.com/kadirpekel/agentrt/policy"
	"github.com/kadirpekel/agentrt/provider"
	"github.com/kadirpekel/agentrt/subagent"
	"github.com/kadirpekel/agentrt/tool"
)

// Run executes a to completion and returns the final Result. It is the
// synchronous entry point; no Events are emitted.
func Run(ctx context.Context, a *agent.Agent, input string, cfg Config) (*Result, error) {
	return runLoop(ctx, a, nil, input, cfg, func(Event) {}), nil
}

// RunStreamed executes a and yields Events as they occur (§4.I), the last
// of which is always EventRunCompleted carrying the final Result. The
// iterator is a single-producer/single-consumer push sequence: the loop
// runs on its own goroutine and blocks on a bounded channel send, so a
// consumer that stops early (yield returning false) unwinds the producer
// via ctx cancellation rather than leaking it.
func RunStreamed(ctx context.Context, a *agent.Agent, input string, cfg Config) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		events := make(chan Event, 16)
		done := make(chan struct{})

		go func() {
			defer close(events)
			defer close(done)
			runLoop(ctx, a, nil, input, cfg, func(e Event) {
				select {
				case events <- e:
				case <-ctx.Done():
				}
			})
		}()

		for e := range events {
			ev := e
			if !yield(&ev, nil) {
				cancel()
				// Drain until the producer observes cancellation and exits,
				// so its goroutine never leaks past this call.
				for range events {
				}
				return
			}
		}
		<-done
	}
}

// runLoop is the single implementation shared by Run and RunStreamed,
// parameterized by an emit callback so the synchronous path pays no
// channel overhead. A non-nil runHooks replaces a's own RunHooks layer, so
// a sub-agent's run fires the parent's run-wide hooks.
func runLoop(ctx context.Context, a *agent.Agent, runHooks hook.Hooks, input string, cfg Config, emit func(Event)) *Result {
	hooks := a.Hooks()
	if runHooks != nil {
		hooks.Run = runHooks
	}
	tracker := policy.NewTracker()

	runFn := buildSubagentRunner(cfg, hooks, a.Name())
	ts := buildToolSet(a, runFn)
	defs := ts.definitions()

	mem := memory.New(renderSystemPrompt(a, defs))
	if err := mem.Append(memory.NewTaskStep(memory.TaskStep{Task: input})); err != nil {
		return &Result{State: StateFailed, Transcript: mem, Err: err}
	}

	hooks.OnStart(ctx, a.Name())

	var outputSchema *output.Schema
	if schema := a.OutputSchema(); schema != nil {
		compiled, err := output.Compile(a.Name(), schema)
		if err != nil {
			result := &Result{State: StateFailed, Transcript: mem, Err: err}
			hooks.OnEnd(ctx, a.Name(), "")
			emit(Event{Kind: EventRunCompleted, Result: result})
			return result
		}
		outputSchema = compiled
	}

	var usageMu sync.Mutex
	totalUsage := &message.Usage{}
	addUsage := func(u *message.Usage) {
		usageMu.Lock()
		defer usageMu.Unlock()
		totalUsage.Add(u)
	}
	ctx = subagent.ContextWithUsageSink(ctx, addUsage)

	result := &Result{Transcript: mem}

	finish := func(state State, output string, err error) *Result {
		result.State = state
		result.Output = output
		result.Err = err
		result.Usage = totalUsage
		hooks.OnEnd(ctx, a.Name(), result.Output)
		emit(Event{Kind: EventRunCompleted, Result: result})
		return result
	}

	for step := 1; step <= a.MaxSteps(); step++ {
		select {
		case <-ctx.Done():
			return finish(StateInterrupted, lastAssistantText(mem), ctx.Err())
		default:
		}

		started := time.Now()

		req := buildChatRequest(a, mem, defs)
		hooks.OnLLMStart(ctx, a.Name(), lastMessage(req.Messages))

		assistantMsg, usage, err := callLLM(ctx, a, req, cfg, emit, step)
		if err != nil {
			hooks.OnError(ctx, a.Name(), err)
			return finish(StateFailed, lastAssistantText(mem), err)
		}
		hooks.OnLLMEnd(ctx, a.Name(), assistantMsg)

		if usage != nil {
			addUsage(usage)
			emit(Event{Kind: EventTokenUsage, Step: step, Usage: usage})
		}

		calls := assistantMsg.ToolCalls()

		if len(calls) == 0 {
			answer := assistantMsg.Text()
			parsed, reason := checkFinalAnswer(a, outputSchema, answer, mem)
			if reason != "" {
				appendObservationStep(mem, step, assistantMsg, usage, started, reason)
				emit(Event{Kind: EventStepComplete, Step: step})
				continue
			}
			_ = mem.Append(memory.NewFinalStep(memory.FinalStep{Answer: parsed, Raw: answer}))
			emit(Event{Kind: EventFinalAnswer, FinalAnswer: answer, Step: step})
			return finish(StateSuccess, answer, nil)
		}

		for _, c := range calls {
			emit(Event{Kind: EventToolCallStart, ToolCallID: c.ID, ToolName: c.Name, Step: step})
		}

		results, finalAnswer, err := dispatchToolCalls(ctx, calls, ts, tracker, cfg.ConfirmationHandler, hooks, a.Name(), time.Duration(cfg.PerToolTimeout))
		if err != nil {
			// A fatal dispatch error (e.g. subagent.DepthExceededError) is
			// distinct from plain cancellation: only ctx's own deadline/
			// cancel unwinds to Interrupted, everything else is Failed.
			if ctx.Err() != nil {
				return finish(StateInterrupted, lastAssistantText(mem), ctx.Err())
			}
			hooks.OnError(ctx, a.Name(), err)
			return finish(StateFailed, lastAssistantText(mem), err)
		}

		for _, r := range results {
			emit(Event{Kind: EventToolCallComplete, ToolCallID: r.ToolCallID, ToolResult: r.Payload, ToolErr: toolResultErr(r), Step: step})
		}

		if err := mem.Append(memory.NewActionStep(memory.ActionStep{
			StepNumber:   step,
			ModelMessage: assistantMsg,
			ToolCalls:    calls,
			ToolResults:  results,
			Usage:        usage,
			Duration:     time.Since(started),
		})); err != nil {
			return finish(StateFailed, lastAssistantText(mem), err)
		}
		emit(Event{Kind: EventStepComplete, Step: step})

		if finalAnswer == nil {
			continue
		}

		reason, ok := output.RunChecks(*finalAnswer, mem, a.FinalAnswerChecks())
		if !ok {
			appendObservationStep(mem, step, nil, nil, started, reason)
			continue
		}
		_ = mem.Append(memory.NewFinalStep(memory.FinalStep{Raw: *finalAnswer}))
		emit(Event{Kind: EventFinalAnswer, FinalAnswer: *finalAnswer, Step: step})
		return finish(StateSuccess, *finalAnswer, nil)
	}

	return finish(StateMaxStepsReached, lastAssistantText(mem), nil)
}

// buildSubagentRunner closes over cfg, the parent's hooks, and the
// parent's name (not a itself, which varies per recursive call) to
// produce the subagent.Runner every Sub-agent Adapter invokes; it fires
// on_handoff (§4.E) at the delegation point, then recurses into runLoop
// on the child agent, keeping the parent's RunHooks/RetryOnProviderError/
// ConfirmationHandler but starting a fresh Memory and step counter (§4.G).
func buildSubagentRunner(cfg Config, hooks *hook.Dispatcher, fromAgent string) subagent.Runner {
	return func(ctx context.Context, sub *agent.Agent, task string, additionalArgs map[string]any) (string, *message.Usage, *memory.Memory, error) {
		hooks.OnHandoff(ctx, fromAgent, sub.Name())

		childInput := task
		if len(additionalArgs) > 0 {
			if raw, err := json.Marshal(additionalArgs); err == nil {
				childInput = fmt.Sprintf("%s\n\nAdditional arguments: %s", task, raw)
			}
		}
		res := runLoop(ctx, sub, hooks.Run, childInput, cfg, func(Event) {})
		if res.State != StateSuccess {
			err := res.Err
			if err == nil {
				err = fmt.Errorf("subagent %q: run ended in state %s", sub.Name(), res.State)
			}
			return "", res.Usage, res.Transcript, err
		}
		return res.Output, res.Usage, res.Transcript, nil
	}
}

func buildChatRequest(a *agent.Agent, mem *memory.Memory, defs []tool.Definition) *provider.ChatRequest {
	rendered := mem.Render(memory.ModeFull)
	system := ""
	msgs := rendered
	if len(rendered) > 0 {
		system = rendered[0].Text()
		msgs = rendered[1:]
	}
	return &provider.ChatRequest{
		Model:      a.ModelID(),
		System:     system,
		Messages:   msgs,
		Tools:      defs,
		ToolChoice: provider.ToolChoiceAuto,
		Config: &provider.GenerateConfig{
			Temperature: a.Temperature(),
			MaxTokens:   a.MaxTokens(),
		},
	}
}

func lastMessage(msgs []*message.Message) *message.Message {
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func lastAssistantText(mem *memory.Memory) string {
	steps := mem.Steps()
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Kind == memory.KindAction && steps[i].Action.ModelMessage != nil {
			return steps[i].Action.ModelMessage.Text()
		}
	}
	return ""
}

func appendObservationStep(mem *memory.Memory, step int, modelMsg *message.Message, usage *message.Usage, started time.Time, reason string) {
	_ = mem.Append(memory.NewActionStep(memory.ActionStep{
		StepNumber:   step,
		ModelMessage: modelMsg,
		Observations: reason,
		Usage:        usage,
		Duration:     time.Since(started),
	}))
}

func toolResultErr(r message.ToolResult) error {
	if !r.IsError {
		return nil
	}
	return fmt.Errorf("%s", r.Payload)
}

// checkFinalAnswer runs the final-answer checks (§4.J) against mem and, if
// an output schema is configured, validates answer as JSON against it. It
// returns the parsed JSON value (nil if no schema is configured) and an
// empty failure reason on success.
func checkFinalAnswer(a *agent.Agent, schema *output.Schema, answer string, mem *memory.Memory) (json.RawMessage, string) {
	if reason, ok := output.RunChecks(answer, mem, a.FinalAnswerChecks()); !ok {
		return nil, reason
	}
	if schema == nil {
		return nil, ""
	}
	parsed, err := schema.ParseAndValidate(answer)
	if err != nil {
		return nil, err.Error()
	}
	return parsed, ""
}

// callLLM calls the agent's LLM, retrying up to cfg.RetryOnProviderError
// additional times on failure before returning a fatal error (§7).
func callLLM(ctx context.Context, a *agent.Agent, req *provider.ChatRequest, cfg Config, emit func(Event), step int) (*message.Message, *message.Usage, error) {
	attempts := cfg.RetryOnProviderError
	if attempts < 0 {
		attempts = 0
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		msg, usage, err := generateOnce(ctx, a, req, emit, step)
		if err == nil {
			return msg, usage, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}
	}
	return nil, nil, fmt.Errorf("runner: provider call failed after %d attempt(s): %w", attempts+1, lastErr)
}

func generateOnce(ctx context.Context, a *agent.Agent, req *provider.ChatRequest, emit func(Event), step int) (*message.Message, *message.Usage, error) {
	for resp, err := range a.LLM().GenerateContent(ctx, req, true) {
		if err != nil {
			return nil, nil, err
		}
		if resp.Partial {
			if resp.Chunk != nil {
				switch resp.Chunk.Kind {
				case message.ChunkTextDelta:
					emit(Event{Kind: EventTextDelta, TextDelta: resp.Chunk.TextDelta, Step: step})
				case message.ChunkReasoningDelta:
					emit(Event{Kind: EventReasoningDelta, ReasoningDelta: resp.Chunk.ReasoningDelta, Step: step})
				}
			}
			continue
		}
		return resp.Message, resp.Usage, nil
	}
	return nil, nil, fmt.Errorf("runner: provider returned no response")
}
