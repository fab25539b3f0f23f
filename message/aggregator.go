package message

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Aggregator merges a sequence of StreamChunk deltas into one canonical
// assistant Message. Tool-call argument fragments are merged by index:
// fragments sharing an index append to that call's argument buffer, and
// an id propagates to the call once the provider sends one. A provider
// that never sends an id gets one backfilled at Finalize time, mirroring
// the teacher's populateFunctionCallIDs backfill in its flow runner.
//
// Every method takes the Aggregator's mutex, so concurrent calls do not
// corrupt its state, but fragments fed from several goroutines at once
// are merged in no defined order; a single stream has a single producer
// by construction (§4.I).
type Aggregator struct {
	mu sync.Mutex

	text      strings.Builder
	reasoning strings.Builder

	toolOrder []int
	tools     map[int]*toolCallBuilder

	usage      Usage
	haveUsage  bool
	stopReason StopReason
	err        error
}

type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

// NewAggregator returns an empty Aggregator ready to Feed.
func NewAggregator() *Aggregator {
	return &Aggregator{tools: make(map[int]*toolCallBuilder)}
}

// Reset clears the aggregator so it can be reused for the next step.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text.Reset()
	a.reasoning.Reset()
	a.toolOrder = nil
	a.tools = make(map[int]*toolCallBuilder)
	a.usage = Usage{}
	a.haveUsage = false
	a.stopReason = ""
	a.err = nil
}

// Feed applies one chunk to the aggregator's running state.
func (a *Aggregator) Feed(c StreamChunk) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch c.Kind {
	case ChunkTextDelta:
		a.text.WriteString(c.TextDelta)
	case ChunkReasoningDelta:
		a.reasoning.WriteString(c.ReasoningDelta)
	case ChunkToolUseStart:
		b := a.builderFor(c.ToolIndex)
		if c.ToolCallID != "" {
			b.id = c.ToolCallID
		}
		if c.ToolName != "" {
			b.name = c.ToolName
		}
	case ChunkToolUseDelta:
		b := a.builderFor(c.ToolIndex)
		if c.ToolCallID != "" && b.id == "" {
			b.id = c.ToolCallID
		}
		b.args.WriteString(c.ArgsFragment)
	case ChunkUsage:
		if c.Usage != nil {
			a.usage.Add(c.Usage)
			a.haveUsage = true
		}
	case ChunkDone:
		a.stopReason = c.StopReason
	case ChunkError:
		a.err = c.Err
	}
}

func (a *Aggregator) builderFor(index int) *toolCallBuilder {
	b, ok := a.tools[index]
	if !ok {
		b = &toolCallBuilder{}
		a.tools[index] = b
		a.toolOrder = append(a.toolOrder, index)
	}
	return b
}

// Finalize produces the canonical assistant Message from everything fed
// so far. Tool calls are emitted in ascending index order, whatever order
// their indices were first seen in.
// A tool call whose accumulated argument buffer is not valid JSON (and
// not empty, which defaults to "{}") produces an InvalidArguments error
// per §4.A; Finalize still returns the best-effort message alongside it.
func (a *Aggregator) Finalize() (*Message, *Usage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return nil, nil, a.err
	}

	var parts []Part
	if a.text.Len() > 0 {
		parts = append(parts, Text(a.text.String()))
	}
	if a.reasoning.Len() > 0 {
		parts = append(parts, Reasoning(a.reasoning.String()))
	}

	order := append([]int(nil), a.toolOrder...)
	sort.Ints(order)

	var invalid error
	for _, idx := range order {
		b := a.tools[idx]
		args := strings.TrimSpace(b.args.String())
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			if invalid == nil {
				invalid = fmt.Errorf("invalid arguments for tool call %q (index %d): not valid JSON", b.name, idx)
			}
		}
		id := b.id
		if id == "" {
			id = uuid.NewString()
		}
		parts = append(parts, ToolCallPart(ToolCall{ID: id, Name: b.name, Arguments: args}))
	}

	var usage *Usage
	if a.haveUsage {
		u := a.usage
		usage = &u
	}

	return &Message{Role: RoleAssistant, Parts: parts}, usage, invalid
}

// StopReason returns the terminal stop reason observed via a Done chunk.
func (a *Aggregator) StopReason() StopReason {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopReason
}
