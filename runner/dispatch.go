package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/agentrt/hook"
	"github.com/kadirpekel/agentrt/message"
	"github.com/kadirpekel/agentrt/policy"
	"github.com/kadirpekel/agentrt/subagent"
	"github.com/kadirpekel/agentrt/tool"
)

// finalAnswerArgs is the argument shape of the reserved final_answer tool.
type finalAnswerArgs struct {
	Answer json.RawMessage `json:"answer"`
}

// userInputArgs is the argument shape of the reserved user_input tool.
type userInputArgs struct {
	Question string `json:"question"`
}

// dispatchOutcome is one tool-call's outcome, indexed by its position in
// the originating assistant message so results can be re-sorted into call
// order regardless of completion order (§4.H).
type dispatchOutcome struct {
	index       int
	result      message.ToolResult
	finalAnswer *string
}

// dispatchToolCalls executes every call in calls concurrently (one
// goroutine per call, via errgroup, keyed by its slice index — a
// deliberate departure from the teacher's sequential flow.go::
// handleToolCalls, per §4.H), applies policy (§4.F), and fires
// on_tool_start/on_tool_end around each dispatch. Results are returned in
// call order. If any call was the reserved final_answer tool, its parsed
// value is returned as finalAnswer. A non-nil error return is always
// fatal (e.g. subagent.DepthExceededError) and terminates the run; an
// ordinary tool failure is never returned here, only folded into its
// message.ToolResult as an observation.
func dispatchToolCalls(
	ctx context.Context,
	calls []message.ToolCall,
	ts *toolSet,
	tracker *policy.Tracker,
	handler policy.ConfirmationHandler,
	hooks *hook.Dispatcher,
	agentName string,
	perToolTimeout time.Duration,
) ([]message.ToolResult, *string, error) {
	outcomes := make([]dispatchOutcome, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			outcome, fatal := dispatchOne(gctx, i, call, ts, tracker, handler, hooks, agentName, perToolTimeout)
			outcomes[i] = outcome
			return fatal
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	results := make([]message.ToolResult, len(outcomes))
	var finalAnswer *string
	for _, o := range outcomes {
		results[o.index] = o.result
		if o.finalAnswer != nil {
			finalAnswer = o.finalAnswer
		}
	}
	return results, finalAnswer, nil
}

// dispatchOne executes one tool call and returns its outcome. The second
// return value is non-nil only for a fatal error (currently
// subagent.DepthExceededError) that must abort the run rather than become
// an observation; every other failure is folded into the returned
// dispatchOutcome's message.ToolResult.
func dispatchOne(
	ctx context.Context,
	index int,
	call message.ToolCall,
	ts *toolSet,
	tracker *policy.Tracker,
	handler policy.ConfirmationHandler,
	hooks *hook.Dispatcher,
	agentName string,
	perToolTimeout time.Duration,
) (dispatchOutcome, error) {
	var out dispatchOutcome
	out.index = index
	out.result.ToolCallID = call.ID

	switch call.Name {
	case "final_answer":
		hooks.OnToolStart(ctx, agentName, call.Name, call.Arguments)
		answer, err := extractFinalAnswer(call.Arguments)
		if err != nil {
			out.result.Payload = err.Error()
			out.result.IsError = true
			hooks.OnToolEnd(ctx, agentName, hook.ToolOutcome{ToolName: call.Name, CallID: call.ID, Err: err})
			return out, nil
		}
		out.result.Payload = "ok"
		out.finalAnswer = &answer
		hooks.OnToolEnd(ctx, agentName, hook.ToolOutcome{ToolName: call.Name, CallID: call.ID, Result: "ok"})
		return out, nil

	case "user_input":
		hooks.OnToolStart(ctx, agentName, call.Name, call.Arguments)
		var args userInputArgs
		_ = json.Unmarshal([]byte(call.Arguments), &args)
		if handler == nil {
			out.result.Payload = "denied by user"
			out.result.IsError = true
			hooks.OnToolEnd(ctx, agentName, hook.ToolOutcome{ToolName: call.Name, CallID: call.ID, Result: out.result.Payload})
			return out, nil
		}
		answer, err := handler.RequestText(ctx, args.Question)
		if err != nil {
			out.result.Payload = err.Error()
			out.result.IsError = true
			hooks.OnToolEnd(ctx, agentName, hook.ToolOutcome{ToolName: call.Name, CallID: call.ID, Err: err})
			return out, nil
		}
		out.result.Payload = answer
		hooks.OnToolEnd(ctx, agentName, hook.ToolOutcome{ToolName: call.Name, CallID: call.ID, Result: answer})
		return out, nil
	}

	toolPolicy, known := ts.policyFor(call.Name)
	if !known {
		out.result.Payload = fmt.Sprintf("unknown tool: %s", call.Name)
		out.result.IsError = true
		return out, nil
	}

	hooks.OnToolStart(ctx, agentName, call.Name, call.Arguments)

	if toolPolicy == tool.PolicyDeny {
		out.result.Payload = "denied by policy"
		out.result.IsError = true
		hooks.OnToolEnd(ctx, agentName, hook.ToolOutcome{ToolName: call.Name, CallID: call.ID, Result: out.result.Payload})
		return out, nil
	}

	kind, err := tracker.Resolve(ctx, call.Name, toolPolicy == tool.PolicyRequireConfirmation, handler, call.Arguments)
	if err != nil {
		out.result.Payload = err.Error()
		out.result.IsError = true
		hooks.OnToolEnd(ctx, agentName, hook.ToolOutcome{ToolName: call.Name, CallID: call.ID, Err: err})
		return out, nil
	}
	if kind == policy.DeniedByUser {
		out.result.Payload = "denied by user"
		out.result.IsError = true
		hooks.OnToolEnd(ctx, agentName, hook.ToolOutcome{ToolName: call.Name, CallID: call.ID, Result: out.result.Payload})
		return out, nil
	}

	dispatchCtx := ctx
	if perToolTimeout > 0 {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(ctx, perToolTimeout)
		defer cancel()
	}

	raw, err := ts.dispatch(dispatchCtx, call.Name, json.RawMessage(call.Arguments))
	if err != nil {
		hooks.OnToolEnd(ctx, agentName, hook.ToolOutcome{ToolName: call.Name, CallID: call.ID, Err: err})

		var depthErr *subagent.DepthExceededError
		if errors.As(err, &depthErr) {
			return out, depthErr
		}

		var toolErr *tool.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded) && perToolTimeout > 0:
			out.result.Payload = tool.Timeout(call.Name).Message()
		case errors.As(err, &toolErr):
			out.result.Payload = toolErr.Message()
		default:
			out.result.Payload = err.Error()
		}
		out.result.IsError = true
		return out, nil
	}

	out.result.Payload = string(raw)
	hooks.OnToolEnd(ctx, agentName, hook.ToolOutcome{ToolName: call.Name, CallID: call.ID, Result: out.result.Payload})
	return out, nil
}

func extractFinalAnswer(argsJSON string) (string, error) {
	var args finalAnswerArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("final_answer: invalid arguments: %w", err)
	}
	if len(args.Answer) == 0 {
		return "", fmt.Errorf("final_answer: answer is required")
	}

	var s string
	if err := json.Unmarshal(args.Answer, &s); err == nil {
		return s, nil
	}
	return string(args.Answer), nil
}
