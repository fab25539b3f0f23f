// Package output implements structured-output parsing and the
// final-answer validation chain of §4.J, grounded on the Rust original's
// agent/checks.rs (a builder of Fn(&Value) -> Result<()> checks), adapted
// to a slice-of-predicates idiom.
package output

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/agentrt/memory"
)

// Check validates a candidate final answer against the run's transcript,
// returning an empty string on success or a failure reason otherwise. mem
// is the run's Memory at the point of the check, letting a check inspect
// prior steps (e.g. which tools ran) rather than just the bare answer
// text; the three built-in checks below don't need it, but the parameter
// is part of the extensibility point itself (§4.J).
type Check func(answer string, mem *memory.Memory) string

// NotNull rejects the literal JSON null or an empty answer.
func NotNull() Check {
	return func(answer string, _ *memory.Memory) string {
		if answer == "" || answer == "null" {
			return "final answer cannot be null"
		}
		return ""
	}
}

// NotEmpty rejects an all-whitespace answer.
func NotEmpty() Check {
	return func(answer string, _ *memory.Memory) string {
		if strings.TrimSpace(answer) == "" {
			return "final answer cannot be empty"
		}
		return ""
	}
}

// Contains rejects an answer that does not include substr.
func Contains(substr string) Check {
	return func(answer string, _ *memory.Memory) string {
		if !strings.Contains(answer, substr) {
			return fmt.Sprintf("final answer must contain %q", substr)
		}
		return ""
	}
}

// RunChecks runs checks in order against answer and mem, short-circuiting
// on the first failure (§4.J). It returns ("", true) on success, or the
// failure reason and false otherwise.
func RunChecks(answer string, mem *memory.Memory, checks []Check) (reason string, ok bool) {
	for _, check := range checks {
		if r := check(answer, mem); r != "" {
			return r, false
		}
	}
	return "", true
}
