package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kadirpekel/agentrt/message"
)

// Mode selects how Render expresses the transcript as messages.
type Mode string

const (
	// ModeFull renders every step verbatim: full model messages, full
	// tool-result payloads, the complete task text.
	ModeFull Mode = "full"
	// ModeSummary renders an abbreviated form for sub-agent summarization
	// (§4.C): the task and elided intermediate observations, suitable for
	// a parent agent's own context budget. Like ModeFull, it never
	// replays a FinalStep; the final answer travels back separately as
	// the adapter's own return value.
	ModeSummary Mode = "summary"
)

// Memory is the append-only, ordered transcript of one run (§3, §4.C). It
// enforces:
//
//	I1 - the cached system prompt always renders first.
//	I2 - steps render in the order they were appended.
//	I3 - an ActionStep's ToolResults is a call-order-preserving set over
//	     its ToolCalls (no result for an unknown call, no duplicate).
//	I4 - at most one FinalStep, and it must be the last step appended.
type Memory struct {
	mu           sync.RWMutex
	systemPrompt string
	steps        []Step
	haveFinal    bool
}

// New creates a Memory whose rendered transcript always opens with
// systemPrompt as a system message.
func New(systemPrompt string) *Memory {
	return &Memory{systemPrompt: systemPrompt}
}

// Append adds step to the transcript, enforcing I3 and I4. It is the only
// mutator; Memory has no Remove or reorder operation.
func (m *Memory) Append(step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.haveFinal {
		return fmt.Errorf("memory: cannot append after a FinalStep")
	}

	if step.Kind == KindAction {
		if err := validateActionStep(step.Action); err != nil {
			return err
		}
	}

	if step.Kind == KindFinal {
		m.haveFinal = true
	}

	m.steps = append(m.steps, step)
	return nil
}

// validateActionStep enforces I3: every ToolResult must reference a
// ToolCallID present in ToolCalls, no ToolCallID repeats, and results
// appear in the same order as their calls.
func validateActionStep(a *ActionStep) error {
	order := make(map[string]int, len(a.ToolCalls))
	for i, c := range a.ToolCalls {
		if _, dup := order[c.ID]; dup {
			return fmt.Errorf("memory: action step has duplicate tool call id %q", c.ID)
		}
		order[c.ID] = i
	}

	seen := make(map[string]bool, len(a.ToolResults))
	lastIdx := -1
	for _, res := range a.ToolResults {
		idx, ok := order[res.ToolCallID]
		if !ok {
			return fmt.Errorf("memory: tool result references unknown call id %q", res.ToolCallID)
		}
		if seen[res.ToolCallID] {
			return fmt.Errorf("memory: duplicate tool result for call id %q", res.ToolCallID)
		}
		if idx < lastIdx {
			return fmt.Errorf("memory: tool results are out of call order at id %q", res.ToolCallID)
		}
		seen[res.ToolCallID] = true
		lastIdx = idx
	}
	return nil
}

// Steps returns a copy of the appended steps in emission order.
func (m *Memory) Steps() []Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Step, len(m.steps))
	copy(out, m.steps)
	return out
}

// HasFinal reports whether a FinalStep has been appended.
func (m *Memory) HasFinal() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.haveFinal
}

// TotalUsage sums token usage across every ActionStep that reported one.
func (m *Memory) TotalUsage() *message.Usage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := &message.Usage{}
	any := false
	for _, s := range m.steps {
		if s.Kind == KindAction && s.Action.Usage != nil {
			total = total.Add(s.Action.Usage)
			any = true
		}
	}
	if !any {
		return nil
	}
	return total
}

// Render produces the provider-neutral message sequence the LLM sees for
// the next call, per §4.C. The system prompt always leads (I1), followed
// by one or more messages per step in append order (I2).
func (m *Memory) Render(mode Mode) []*message.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := []*message.Message{message.NewText(message.RoleSystem, m.systemPrompt)}

	for _, step := range m.steps {
		switch step.Kind {
		case KindTask:
			msgs = append(msgs, renderTask(step.Task))
		case KindPlanning:
			msgs = append(msgs, message.NewText(message.RoleAssistant, step.Planning.Plan))
		case KindAction:
			msgs = append(msgs, renderAction(step.Action, mode)...)
		case KindFinal:
			// not rendered back in either mode: the final answer is
			// returned to the caller, not replayed into a future prompt.
		}
	}
	return msgs
}

// RenderSummaryText renders m in ModeSummary and flattens it to a plain
// text transcript, one line per non-system message that carries text, for
// the Sub-agent Adapter's summary-mode delegation result (§4.C, §4.G).
// Tool-result messages have no text part and are left out.
func (m *Memory) RenderSummaryText() string {
	var b strings.Builder
	for _, msg := range m.Render(ModeSummary) {
		if msg.Role == message.RoleSystem {
			continue
		}
		text := msg.Text()
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTask(t *TaskStep) *message.Message {
	parts := []message.Part{message.Text(t.Task)}
	for i := range t.Images {
		img := t.Images[i]
		parts = append(parts, message.Part{Type: message.PartImage, Image: &img})
	}
	return message.New(message.RoleUser, parts...)
}

// renderAction expands one ActionStep into its assistant turn plus one
// tool-role message per result, in call order. In summary mode, tool
// result payloads are elided to a short marker to keep a parent agent's
// context small when delegating through the Sub-agent Adapter.
func renderAction(a *ActionStep, mode Mode) []*message.Message {
	var out []*message.Message
	if a.ModelMessage != nil {
		out = append(out, a.ModelMessage)
	}

	resultByCall := make(map[string]message.ToolResult, len(a.ToolResults))
	for _, r := range a.ToolResults {
		resultByCall[r.ToolCallID] = r
	}

	for _, call := range a.ToolCalls {
		res, ok := resultByCall[call.ID]
		if !ok {
			continue
		}
		payload := res.Payload
		if mode == ModeSummary {
			payload = "(elided)"
		}
		out = append(out, message.New(message.RoleTool, message.ToolResultPart(message.ToolResult{
			ToolCallID: res.ToolCallID,
			Payload:    payload,
			IsError:    res.IsError,
		})))
	}
	return out
}
