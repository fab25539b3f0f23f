package runner

import (
	"github.com/kadirpekel/agentrt/memory"
	"github.com/kadirpekel/agentrt/message"
)

// State is the terminal status of a run (§7).
type State string

const (
	StateSuccess         State = "success"
	StateMaxStepsReached State = "max_steps_reached"
	StateInterrupted     State = "interrupted"
	StateFailed          State = "failed"
)

// Result is always returned from Run/RunStreamed, even on a non-Success
// state, carrying a best-effort output and the full transcript (§7).
type Result struct {
	State      State
	Output     string
	Transcript *memory.Memory
	Usage      *message.Usage
	Err        error
}
