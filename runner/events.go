package runner

import "github.com/kadirpekel/agentrt/message"

// EventKind discriminates a streamed Event (§4.I).
type EventKind string

const (
	EventTextDelta        EventKind = "text_delta"
	EventReasoningDelta   EventKind = "reasoning_delta"
	EventToolCallStart    EventKind = "tool_call_start"
	EventToolCallComplete EventKind = "tool_call_complete"
	EventStepComplete     EventKind = "step_complete"
	EventFinalAnswer      EventKind = "final_answer"
	EventTokenUsage       EventKind = "token_usage"
	EventError            EventKind = "error"
	EventRunCompleted     EventKind = "run_completed"
)

// Event is one item of the streaming pipeline. Only the fields relevant to
// Kind are populated. Ordering guarantees are as in §4.I: within a step,
// (TextDelta|ReasoningDelta)* ToolCallStart* ToolCallComplete* StepComplete;
// StepComplete of step N precedes any event of step N+1; RunCompleted is
// always last.
type Event struct {
	Kind EventKind

	TextDelta      string
	ReasoningDelta string

	ToolCallID string
	ToolName   string
	ToolResult string
	ToolErr    error

	Step int

	FinalAnswer string
	Usage       *message.Usage

	Err error

	Result *Result
}
