// Package provider defines the LLM interface the runner consumes (§4.D).
// Concrete vendor clients (OpenAI, Anthropic, Gemini, Ollama, ...) are
// external collaborators that implement LLM against this module's own
// message.Message/message.Part types; none are implemented here.
package provider

import (
	"context"
	"iter"

	"github.com/kadirpekel/agentrt/message"
	"github.com/kadirpekel/agentrt/tool"
)

// Provider identifies the vendor behind an LLM. It is informational: the
// runner does not branch on it.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
	ProviderUnknown   Provider = "unknown"
)

// ToolChoice constrains whether and how the model may call tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// ResponseFormat selects plain text vs. schema-guided structured output.
type ResponseFormatKind string

const (
	ResponseFormatNone       ResponseFormatKind = "none"
	ResponseFormatJSON       ResponseFormatKind = "json"
	ResponseFormatJSONSchema ResponseFormatKind = "json_schema"
)

// ResponseFormat describes the requested output shape.
type ResponseFormat struct {
	Kind   ResponseFormatKind
	Name   string
	Schema map[string]any
}

// ChatRequest is a single provider call, in the runner's neutral model.
type ChatRequest struct {
	Model          string
	System         string
	Messages       []*message.Message
	Tools          []tool.Definition
	ToolChoice     ToolChoice
	ResponseFormat ResponseFormat
	Config         *GenerateConfig
}

// GenerateConfig is the sampling/shape configuration for one call.
type GenerateConfig struct {
	Temperature   *float64
	MaxTokens     *int
	TopP          *float64
	TopK          *int
	StopSequences []string
	Metadata      map[string]string
}

// Clone deep-copies c so a single Agent-level config can be mutated
// per-request (e.g. changing the temperature or stop sequences for one
// call) without aliasing the original.
func (c *GenerateConfig) Clone() *GenerateConfig {
	if c == nil {
		return nil
	}
	clone := *c

	if c.Temperature != nil {
		t := *c.Temperature
		clone.Temperature = &t
	}
	if c.MaxTokens != nil {
		mt := *c.MaxTokens
		clone.MaxTokens = &mt
	}
	if c.TopP != nil {
		tp := *c.TopP
		clone.TopP = &tp
	}
	if c.TopK != nil {
		tk := *c.TopK
		clone.TopK = &tk
	}
	if c.StopSequences != nil {
		clone.StopSequences = append([]string(nil), c.StopSequences...)
	}
	if c.Metadata != nil {
		clone.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// ChatResponse is one yielded value of a GenerateContent call. For a
// non-streaming call exactly one ChatResponse is yielded with Partial
// false; for a streaming call zero-or-more Partial=true responses carrying
// a Chunk are yielded, followed by exactly one Partial=false response
// carrying the fully aggregated Message.
type ChatResponse struct {
	Message    *message.Message
	Chunk      *message.StreamChunk
	Partial    bool
	Usage      *message.Usage
	StopReason message.StopReason
}

// LLM is the provider abstraction the runner depends on. Implementations
// translate this neutral request/response shape to and from their vendor's
// wire format, preserving tool-call id correlation across the boundary.
type LLM interface {
	Name() string
	Provider() Provider

	// GenerateContent performs a chat completion. When stream is true the
	// sequence yields incremental ChatResponses (Partial=true, Chunk set)
	// followed by one final aggregated ChatResponse (Partial=false). When
	// stream is false it yields exactly one ChatResponse.
	GenerateContent(ctx context.Context, req *ChatRequest, stream bool) iter.Seq2[*ChatResponse, error]

	Close() error
}
