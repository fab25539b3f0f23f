package runner

import "github.com/kadirpekel/agentrt/policy"

// Config carries per-run overrides (§4.H).
type Config struct {
	ConfirmationHandler policy.ConfirmationHandler

	// Detailed is not read by the runner. ReasoningDelta events are
	// streamed whenever the provider sends reasoning chunks, whatever its
	// value, and reasoning parts stay in the transcript as the provider
	// returns them.
	Detailed bool

	// RetryOnProviderError bounds retries of a single failing LLM call
	// before the run fails fatally (§7). 0 disables retrying.
	RetryOnProviderError int

	// PerToolTimeout, if non-zero, bounds a single tool dispatch.
	PerToolTimeout int64 // nanoseconds; 0 = no timeout
}
