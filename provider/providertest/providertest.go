// Package providertest supplies a scripted provider.LLM for deterministic
// multi-turn tests, grounded on the Rust original's providers/mock.rs
// (a response-cycling test double) and generalized to emit tool-calls and
// usage, not just plain text, since the runner's seed scenarios (§8)
// require scripting full multi-step tool-call exchanges.
package providertest

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/kadirpekel/agentrt/message"
	"github.com/kadirpekel/agentrt/provider"
)

// Turn is one scripted provider response.
type Turn struct {
	Text      string
	ToolCalls []message.ToolCall
	Delay     time.Duration
	Err       error
	Usage     *message.Usage
}

// Script is a provider.LLM that replays Turns in order, one per call to
// GenerateContent. Calling past the last turn repeats the last turn; it
// never wraps back to the first.
type Script struct {
	mu       sync.Mutex
	name     string
	provider provider.Provider
	turns    []Turn
	index    int
	calls    int
}

// New builds a Script that replays turns in order.
func New(name string, turns ...Turn) *Script {
	return &Script{name: name, provider: provider.ProviderUnknown, turns: turns}
}

// WithProvider sets the reported Provider() value.
func (s *Script) WithProvider(p provider.Provider) *Script {
	s.provider = p
	return s
}

func (s *Script) Name() string                { return s.name }
func (s *Script) Provider() provider.Provider { return s.provider }
func (s *Script) Close() error                { return nil }

// Calls reports how many times GenerateContent has been invoked, for
// assertions like "exactly 2 LLM calls" in the seed scenarios.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Script) next() Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.turns) == 0 {
		return Turn{Text: "no response"}
	}
	idx := s.index
	if idx >= len(s.turns) {
		idx = len(s.turns) - 1
	} else {
		s.index++
	}
	return s.turns[idx]
}

// GenerateContent replays the next scripted Turn. In streaming mode it
// yields one Partial=true ChatResponse carrying the whole text as a single
// delta, then the final Partial=false aggregated ChatResponse, matching
// the shape real streaming providers produce after aggregation (§4.A).
func (s *Script) GenerateContent(ctx context.Context, req *provider.ChatRequest, stream bool) iter.Seq2[*provider.ChatResponse, error] {
	return func(yield func(*provider.ChatResponse, error) bool) {
		turn := s.next()

		if turn.Delay > 0 {
			select {
			case <-time.After(turn.Delay):
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}

		if turn.Err != nil {
			yield(nil, turn.Err)
			return
		}

		msg := buildMessage(turn)
		stopReason := message.StopReasonStop
		if len(turn.ToolCalls) > 0 {
			stopReason = message.StopReasonToolCalls
		}

		if stream && turn.Text != "" {
			if !yield(&provider.ChatResponse{
				Partial: true,
				Chunk:   &message.StreamChunk{Kind: message.ChunkTextDelta, TextDelta: turn.Text},
			}, nil) {
				return
			}
		}

		yield(&provider.ChatResponse{
			Message:    msg,
			Partial:    false,
			Usage:      turn.Usage,
			StopReason: stopReason,
		}, nil)
	}
}

func buildMessage(turn Turn) *message.Message {
	var parts []message.Part
	if turn.Text != "" {
		parts = append(parts, message.Text(turn.Text))
	}
	for _, tc := range turn.ToolCalls {
		parts = append(parts, message.ToolCallPart(tc))
	}
	return message.New(message.RoleAssistant, parts...)
}
