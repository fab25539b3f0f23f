package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/agentrt/agent"
	"github.com/kadirpekel/agentrt/tool"
)

// renderSystemPrompt builds the once-per-run system prompt (§4.H): agent
// instructions, the tool catalog (name, description, parameter schema),
// the managed-agent catalog, and an optional output-schema description.
// Subsequent re-renders within the same run are never performed; the Go
// expression of that constraint is simply that this function runs once,
// at Run/RunStreamed entry, before the step loop starts.
func renderSystemPrompt(a *agent.Agent, defs []tool.Definition) string {
	var b strings.Builder
	b.WriteString(a.Instructions())

	if len(defs) > 0 {
		b.WriteString("\n\nAvailable tools:\n")
		for _, def := range defs {
			b.WriteString(fmt.Sprintf("- %s: %s\n", def.Name, def.Description))
			if len(def.Parameters) > 0 {
				if schema, err := json.Marshal(def.Parameters); err == nil {
					b.WriteString(fmt.Sprintf("  parameters: %s\n", schema))
				}
			}
		}
	}

	if schema := a.OutputSchema(); schema != nil {
		if raw, err := json.Marshal(schema); err == nil {
			b.WriteString("\n\nRespond with JSON matching this schema:\n")
			b.Write(raw)
			b.WriteString("\n")
		}
	}

	return b.String()
}
