// Package message defines the provider-neutral message and content model
// shared by every component of the runtime: the transcript (memory), the
// provider abstraction, and the tool-dispatch subsystem all exchange
// *message.Message values rather than any single vendor's wire format.
package message

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType discriminates the kind of content carried by a Part.
type PartType string

const (
	PartText       PartType = "text"
	PartImage      PartType = "image"
	PartAudio      PartType = "audio"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
	PartReasoning  PartType = "reasoning"
)

// ToolCall is a model-issued request to invoke a tool. ID is the
// correlation key its eventual ToolResult must reference.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object, e.g. `{"a":1,"b":2}`
}

// ToolResult is the outcome of dispatching a ToolCall, rendered back to
// the model as a tool message. Payload is the string projection of
// whatever the tool returned (JSON text, plain text, or an error string).
type ToolResult struct {
	ToolCallID string
	Payload    string
	IsError    bool
}

// ImageContent is either a remote reference or inline bytes.
type ImageContent struct {
	URL   string
	Bytes []byte
	MIME  string
}

// AudioContent is inline audio with its encoding.
type AudioContent struct {
	Bytes  []byte
	Format string
}

// Part is one unit of message content. Exactly the fields matching Type
// are meaningful; the others are nil/zero.
type Part struct {
	Type       PartType
	Text       string // PartText, PartReasoning
	Image      *ImageContent
	Audio      *AudioContent
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// Text creates a text part.
func Text(s string) Part { return Part{Type: PartText, Text: s} }

// Reasoning creates an opaque reasoning/thinking part.
func Reasoning(s string) Part { return Part{Type: PartReasoning, Text: s} }

// ToolCallPart creates a tool-call part.
func ToolCallPart(tc ToolCall) Part {
	call := tc
	return Part{Type: PartToolCall, ToolCall: &call}
}

// ToolResultPart creates a tool-result part.
func ToolResultPart(tr ToolResult) Part {
	res := tr
	return Part{Type: PartToolResult, ToolResult: &res}
}

// ImagePart creates an image part from a URL.
func ImagePart(url, mime string) Part {
	return Part{Type: PartImage, Image: &ImageContent{URL: url, MIME: mime}}
}

// Message is a single turn in the transcript: a role plus ordered parts.
type Message struct {
	Role  Role
	Parts []Part
}

// New constructs a Message from explicit parts.
func New(role Role, parts ...Part) *Message {
	return &Message{Role: role, Parts: parts}
}

// NewText constructs a single-text-part Message, the common case.
func NewText(role Role, text string) *Message {
	return &Message{Role: role, Parts: []Part{Text(text)}}
}

// Text concatenates every text/reasoning-less text part into one string.
// Reasoning parts are excluded; use Reasoning() for those.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ReasoningText concatenates every reasoning part.
func (m *Message) ReasoningText() string {
	if m == nil {
		return ""
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == PartReasoning {
			out += p.Text
		}
	}
	return out
}

// ToolCalls returns the tool calls carried by this message, in order.
func (m *Message) ToolCalls() []ToolCall {
	if m == nil {
		return nil
	}
	var calls []ToolCall
	for _, p := range m.Parts {
		if p.Type == PartToolCall && p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

// HasToolCalls reports whether the message carries any tool-call part.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls()) > 0
}

// ToolResults returns the tool results carried by this message, in order.
func (m *Message) ToolResults() []ToolResult {
	if m == nil {
		return nil
	}
	var results []ToolResult
	for _, p := range m.Parts {
		if p.Type == PartToolResult && p.ToolResult != nil {
			results = append(results, *p.ToolResult)
		}
	}
	return results
}
