package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentrt/agent"
	"github.com/kadirpekel/agentrt/hook"
	"github.com/kadirpekel/agentrt/memory"
	"github.com/kadirpekel/agentrt/message"
	"github.com/kadirpekel/agentrt/policy"
	"github.com/kadirpekel/agentrt/provider/providertest"
	"github.com/kadirpekel/agentrt/subagent"
	"github.com/kadirpekel/agentrt/tool"
	"github.com/kadirpekel/agentrt/tool/functiontool"
)

func newSimpleAgent(t *testing.T, name string, llm *providertest.Script, tools ...tool.Tool) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Config{
		Name:         name,
		Instructions: "You are a helpful assistant.",
		LLM:          llm,
		Tools:        tools,
	})
	require.NoError(t, err)
	return a
}

// Scenario 1: pure-answer run, one LLM call, no tool calls.
func TestRun_PureAnswerSucceedsInOneCall(t *testing.T) {
	llm := providertest.New("mock", providertest.Turn{Text: "the answer is 42"})
	a := newSimpleAgent(t, "answerer", llm)

	res, err := Run(context.Background(), a, "what is the answer?", Config{})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, "the answer is 42", res.Output)
	assert.Equal(t, 1, llm.Calls())

	steps := res.Transcript.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, memory.KindTask, steps[0].Kind)
	assert.Equal(t, memory.KindFinal, steps[1].Kind)
}

// Scenario 2: a single tool call, then a final answer.
func TestRun_SingleToolCallThenAnswer(t *testing.T) {
	type addArgs struct {
		A int `json:"a" jsonschema:"required"`
		B int `json:"b" jsonschema:"required"`
	}
	add, err := functiontool.New("add", "adds two numbers", func(_ context.Context, args addArgs) (int, error) {
		return args.A + args.B, nil
	}, nil)
	require.NoError(t, err)

	llm := providertest.New("mock",
		providertest.Turn{ToolCalls: []message.ToolCall{{ID: "call1", Name: "add", Arguments: `{"a":2,"b":3}`}}},
		providertest.Turn{Text: "2+3 is 5"},
	)
	a := newSimpleAgent(t, "mathbot", llm, add)

	res, err := Run(context.Background(), a, "what is 2+3?", Config{})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, "2+3 is 5", res.Output)
	assert.Equal(t, 2, llm.Calls())

	steps := res.Transcript.Steps()
	require.Len(t, steps, 3)
	action := steps[1].Action
	require.Len(t, action.ToolResults, 1)
	assert.Equal(t, "5", action.ToolResults[0].Payload)
	assert.False(t, action.ToolResults[0].IsError)
}

// Scenario 3: parallel tool calls dispatch concurrently and their results
// land back in call order regardless of completion order.
func TestRun_ParallelToolCallsDispatchConcurrentlyInCallOrder(t *testing.T) {
	type sleepArgs struct {
		Ms int `json:"ms" jsonschema:"required"`
	}
	sleepTool, err := functiontool.New("sleep", "sleeps for ms milliseconds", func(ctx context.Context, args sleepArgs) (string, error) {
		select {
		case <-time.After(time.Duration(args.Ms) * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return fmt.Sprintf("slept %dms", args.Ms), nil
	}, nil)
	require.NoError(t, err)

	llm := providertest.New("mock",
		providertest.Turn{ToolCalls: []message.ToolCall{
			{ID: "slow", Name: "sleep", Arguments: `{"ms":80}`},
			{ID: "fast", Name: "sleep", Arguments: `{"ms":5}`},
		}},
		providertest.Turn{Text: "done"},
	)
	a := newSimpleAgent(t, "sleeper", llm, sleepTool)

	start := time.Now()
	res, err := Run(context.Background(), a, "sleep twice", Config{})
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	assert.Less(t, elapsed, 150*time.Millisecond, "tool calls should run concurrently, not sequentially (80ms+5ms)")

	steps := res.Transcript.Steps()
	action := steps[1].Action
	require.Len(t, action.ToolResults, 2)
	assert.Equal(t, "slow", action.ToolResults[0].ToolCallID)
	assert.Equal(t, "fast", action.ToolResults[1].ToolCallID)
	assert.Equal(t, "slept 80ms", action.ToolResults[0].Payload)
	assert.Equal(t, "slept 5ms", action.ToolResults[1].Payload)
}

// Scenario 4: a RequireConfirmation tool denied by the handler never runs
// its underlying function, and the result text says so.
func TestRun_ConfirmationDeniedToolNeverExecutes(t *testing.T) {
	invoked := false
	type args struct {
		Path string `json:"path" jsonschema:"required"`
	}
	dangerous, err := functiontool.New("delete_file", "deletes a file", func(_ context.Context, a args) (string, error) {
		invoked = true
		return "deleted", nil
	}, &functiontool.Config{Policy: tool.PolicyRequireConfirmation})
	require.NoError(t, err)

	llm := providertest.New("mock",
		providertest.Turn{ToolCalls: []message.ToolCall{{ID: "c1", Name: "delete_file", Arguments: `{"path":"/tmp/x"}`}}},
		providertest.Turn{Text: "ok, I did not delete it"},
	)
	a := newSimpleAgent(t, "deleter", llm, dangerous)

	handler := &denyingHandler{}
	res, err := Run(context.Background(), a, "delete /tmp/x", Config{ConfirmationHandler: handler})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	assert.False(t, invoked, "denied tool's function must never run")

	steps := res.Transcript.Steps()
	action := steps[1].Action
	require.Len(t, action.ToolResults, 1)
	assert.True(t, action.ToolResults[0].IsError)
	assert.Contains(t, action.ToolResults[0].Payload, "denied by user")
}

type denyingHandler struct{}

func (denyingHandler) RequestApproval(context.Context, string, string) (policy.Decision, error) {
	return policy.Denied, nil
}
func (denyingHandler) RequestText(context.Context, string) (string, error) { return "", nil }

// Scenario 5: structured output validated against a schema; a non-JSON
// first attempt is rejected as an observation and the model gets another
// turn to comply.
func TestRun_StructuredOutputRetriesOnInvalidJSON(t *testing.T) {
	llm := providertest.New("mock",
		providertest.Turn{Text: "not json at all"},
		providertest.Turn{Text: `{"sum": 5}`},
	)
	a, err := agent.New(agent.Config{
		Name:         "structured",
		Instructions: "Respond with JSON.",
		LLM:          llm,
		OutputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"sum": map[string]any{"type": "integer"}},
			"required":   []any{"sum"},
		},
	})
	require.NoError(t, err)

	res, err := Run(context.Background(), a, "add 2 and 3", Config{})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	assert.JSONEq(t, `{"sum":5}`, res.Output)
	assert.Equal(t, 2, llm.Calls())

	steps := res.Transcript.Steps()
	require.Len(t, steps, 3)
	assert.NotEmpty(t, steps[1].Action.Observations)
}

// Scenario 6: sub-agent delegation keeps the child's steps out of the
// parent transcript and sums usage across parent and child.
func TestRun_SubAgentDelegationIsolatesTranscriptAndSumsUsage(t *testing.T) {
	childLLM := providertest.New("child", providertest.Turn{
		Text:  "the capital of France is Paris",
		Usage: &message.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
	child, err := agent.New(agent.Config{
		Name:         "geography",
		Description:  "answers geography questions",
		Instructions: "Answer geography questions.",
		LLM:          childLLM,
	})
	require.NoError(t, err)

	parentLLM := providertest.New("parent",
		providertest.Turn{
			ToolCalls: []message.ToolCall{{ID: "d1", Name: "geography", Arguments: `{"task":"what is the capital of France?"}`}},
			Usage:     &message.Usage{PromptTokens: 20, CompletionTokens: 8, TotalTokens: 28},
		},
		providertest.Turn{Text: "Paris is the capital of France."},
	)
	parent, err := agent.New(agent.Config{
		Name:          "planner",
		Instructions:  "Delegate geography questions.",
		LLM:           parentLLM,
		ManagedAgents: []*agent.Agent{child},
	})
	require.NoError(t, err)

	res, err := Run(context.Background(), parent, "what is the capital of France?", Config{})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, "Paris is the capital of France.", res.Output)

	require.NotNil(t, res.Usage)
	assert.Equal(t, 28+15, res.Usage.TotalTokens)

	for _, s := range res.Transcript.Steps() {
		if s.Kind == memory.KindAction {
			for _, c := range s.Action.ToolCalls {
				assert.NotEqual(t, "geography-internal-step", c.Name)
			}
		}
	}
	assert.Len(t, res.Transcript.Steps(), 3)
}

// Boundary: a budget of zero iterations returns MaxStepsReached with a
// transcript containing only the TaskStep.
func TestRun_ZeroStepBudgetReturnsMaxStepsReachedImmediately(t *testing.T) {
	llm := providertest.New("mock", providertest.Turn{Text: "should never be asked"})
	a, err := agent.New(agent.Config{
		Name:         "budgetless",
		Instructions: "unused",
		LLM:          llm,
		MaxSteps:     -1, // New only applies its default when MaxSteps == 0
	})
	require.NoError(t, err)

	res, err := Run(context.Background(), a, "do anything", Config{})
	require.NoError(t, err)

	assert.Equal(t, StateMaxStepsReached, res.State)
	assert.Equal(t, 0, llm.Calls())

	steps := res.Transcript.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, memory.KindTask, steps[0].Kind)
}

// Boundary: a tool that always errors still lets the run terminate within
// budget rather than hanging or failing fatally.
func TestRun_AlwaysErroringToolStillTerminatesWithinBudget(t *testing.T) {
	type args struct {
		X int `json:"x" jsonschema:"required"`
	}
	failing, err := functiontool.New("explode", "always fails", func(_ context.Context, a args) (string, error) {
		return "", fmt.Errorf("boom")
	}, nil)
	require.NoError(t, err)

	llm := providertest.New("mock",
		providertest.Turn{ToolCalls: []message.ToolCall{{ID: "c1", Name: "explode", Arguments: `{"x":1}`}}},
	)
	a, err := agent.New(agent.Config{
		Name:         "brittle",
		Instructions: "unused",
		LLM:          llm,
		Tools:        []tool.Tool{failing},
		MaxSteps:     3,
	})
	require.NoError(t, err)

	res, err := Run(context.Background(), a, "try the tool", Config{})
	require.NoError(t, err)

	assert.Equal(t, StateMaxStepsReached, res.State)
	assert.LessOrEqual(t, llm.Calls(), 3)

	for _, s := range res.Transcript.Steps() {
		if s.Kind == memory.KindAction {
			for _, r := range s.Action.ToolResults {
				assert.True(t, r.IsError)
			}
		}
	}
}

// Boundary: cancellation mid-run unwinds to Interrupted.
func TestRun_CancellationUnwindsToInterrupted(t *testing.T) {
	llm := providertest.New("mock", providertest.Turn{Text: "first", Delay: 50 * time.Millisecond})
	a := newSimpleAgent(t, "slowpoke", llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, a, "go", Config{})
	require.NoError(t, err)
	assert.Equal(t, StateInterrupted, res.State)
}

// The final_answer reserved tool short-circuits the loop without a
// schema/plain-text branch.
func TestRun_FinalAnswerToolSetsOutputAndSucceeds(t *testing.T) {
	llm := providertest.New("mock", providertest.Turn{
		ToolCalls: []message.ToolCall{{ID: "f1", Name: "final_answer", Arguments: `{"answer":"done here"}`}},
	})
	a := newSimpleAgent(t, "finisher", llm)

	res, err := Run(context.Background(), a, "finish", Config{})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, "done here", res.Output)

	steps := res.Transcript.Steps()
	require.Len(t, steps, 3)
	action := steps[1].Action
	require.Len(t, action.ToolResults, 1)
	assert.Equal(t, "ok", action.ToolResults[0].Payload)
}

// RunStreamed emits TextDelta events before the final RunCompleted event.
func TestRunStreamed_EmitsDeltaThenRunCompleted(t *testing.T) {
	llm := providertest.New("mock", providertest.Turn{Text: "streamed answer"})
	a := newSimpleAgent(t, "streamer", llm)

	var kinds []EventKind
	var finalResult *Result
	for ev, err := range RunStreamed(context.Background(), a, "stream please", Config{}) {
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventRunCompleted {
			finalResult = ev.Result
		}
	}

	require.NotEmpty(t, kinds)
	assert.Equal(t, EventRunCompleted, kinds[len(kinds)-1])
	require.NotNil(t, finalResult)
	assert.Equal(t, StateSuccess, finalResult.State)
	assert.Equal(t, "streamed answer", finalResult.Output)
}

// depthExceededTool simulates a Sub-agent Adapter that has hit its
// recursion limit, without needing a real chain of managed agents deep
// enough to trigger subagent.DefaultMaxDepth.
type depthExceededTool struct{}

func (depthExceededTool) Definition() tool.Definition {
	return tool.Definition{Name: "recurse", Parameters: map[string]any{"type": "object"}, OutputType: "string"}
}
func (depthExceededTool) Policy() tool.ExecutionPolicy { return tool.PolicyAuto }
func (depthExceededTool) Call(context.Context, json.RawMessage) (json.RawMessage, error) {
	return nil, &subagent.DepthExceededError{Agent: "recurse", Max: subagent.DefaultMaxDepth}
}

// A subagent.DepthExceededError surfacing from tool dispatch is fatal: it
// must fail the run rather than become a tool-result observation the loop
// continues past.
func TestRun_SubAgentDepthExceededFailsRun(t *testing.T) {
	llm := providertest.New("mock", providertest.Turn{
		ToolCalls: []message.ToolCall{{ID: "c1", Name: "recurse", Arguments: `{}`}},
	})
	a := newSimpleAgent(t, "recurser", llm, depthExceededTool{})

	res, err := Run(context.Background(), a, "go deep", Config{})
	require.NoError(t, err)

	assert.Equal(t, StateFailed, res.State)
	require.Error(t, res.Err)
	var depthErr *subagent.DepthExceededError
	assert.ErrorAs(t, res.Err, &depthErr)
}

// recordingHooks captures on_handoff firings for TestRun_SubAgentDelegationFiresOnHandoff.
type recordingHooks struct {
	hook.NopHooks
	handoffs []handoff
}

type handoff struct{ From, To string }

func (r *recordingHooks) OnHandoff(_ context.Context, from, to string) {
	r.handoffs = append(r.handoffs, handoff{From: from, To: to})
}

// Delegating to a managed agent must fire on_handoff (§4.E) exactly once,
// naming the delegating agent and the one it handed off to.
func TestRun_SubAgentDelegationFiresOnHandoff(t *testing.T) {
	childLLM := providertest.New("child", providertest.Turn{Text: "child answer"})
	child, err := agent.New(agent.Config{Name: "helper", Description: "helps out", LLM: childLLM})
	require.NoError(t, err)

	parentLLM := providertest.New("parent",
		providertest.Turn{ToolCalls: []message.ToolCall{{ID: "d1", Name: "helper", Arguments: `{"task":"help me"}`}}},
		providertest.Turn{Text: "done"},
	)
	hooks := &recordingHooks{}
	parent, err := agent.New(agent.Config{
		Name:          "lead",
		Instructions:  "delegate to helper",
		LLM:           parentLLM,
		ManagedAgents: []*agent.Agent{child},
		RunHooks:      hooks,
	})
	require.NoError(t, err)

	res, err := Run(context.Background(), parent, "help me", Config{})
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, res.State)

	require.Len(t, hooks.handoffs, 1)
	assert.Equal(t, "lead", hooks.handoffs[0].From)
	assert.Equal(t, "helper", hooks.handoffs[0].To)
}
