package memory

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/kadirpekel/agentrt/message"
)

// encodingName is fixed rather than provider-selected: this estimate only
// ever serves as a fallback for providers that don't report usage, so an
// exact per-model encoding match isn't worth the extra configuration.
const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(encodingName)
	})
	return enc, encErr
}

// EstimateTokens counts tokens in s using a fixed BPE encoding, a local
// estimate for text whose usage a provider did not report. The runner
// does not call it: a step whose provider response carries no usage adds
// nothing to the run's totals, and Memory.TotalUsage returns nil when no
// step reported usage.
func EstimateTokens(s string) int {
	e, err := encoding()
	if err != nil {
		// No working encoder (e.g. offline without the bundled ranks):
		// approximate at ~4 bytes/token, the commonly cited rule of thumb
		// for English text under BPE tokenizers.
		return (len(s) + 3) / 4
	}
	return len(e.Encode(s, nil, nil))
}

// EstimateMessageTokens sums EstimateTokens over every text-bearing part
// of msgs, a render-time stand-in for a provider's prompt_tokens count.
func EstimateMessageTokens(msgs []*message.Message) int {
	total := 0
	for _, m := range msgs {
		for _, p := range m.Parts {
			switch p.Type {
			case message.PartText, message.PartReasoning:
				total += EstimateTokens(p.Text)
			case message.PartToolCall:
				if p.ToolCall != nil {
					total += EstimateTokens(p.ToolCall.Name) + EstimateTokens(p.ToolCall.Arguments)
				}
			case message.PartToolResult:
				if p.ToolResult != nil {
					total += EstimateTokens(p.ToolResult.Payload)
				}
			}
		}
	}
	return total
}
