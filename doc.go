// Package agentrt implements an Agent Runtime Core: a think-act-observe
// reasoning loop that drives a language model through multiple turns,
// dispatches tool calls (each call policy-gated and run on its own goroutine),
// composes sub-agents into a hierarchy, streams incremental output while
// preserving an ordered transcript, and enforces step and token budgets
// under cooperative cancellation.
//
// # Architecture
//
// An Agent (configuration + tools + sub-agents + hooks + provider binding)
// is handed to a Runner together with a user input. The Runner iterates
// steps; each step renders the transcript, calls the provider, dispatches
// any tool calls concurrently, appends the results to Memory, fires
// lifecycle hooks, and checks termination.
//
//	import (
//	    "github.com/kadirpekel/agentrt/agent"
//	    "github.com/kadirpekel/agentrt/runner"
//	    "github.com/kadirpekel/agentrt/provider"
//	)
//
// # Scope
//
// This module is the reasoning core only. Concrete LLM provider clients,
// an embedding/vector-store subsystem, configuration-file loading, CLI
// entry points, and a remote tool-protocol client are external
// collaborators, bound through the [provider.LLM] and [tool.Tool]
// interfaces rather than implemented here.
package agentrt
