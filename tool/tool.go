// Package tool defines the Tool interface the runner dispatches against,
// the name-indexed Tool Registry, and the error taxonomy tool dispatch
// can produce. Argument validation against a tool's JSON schema happens
// in the registry, before a Tool's Call ever runs (§4.B).
package tool

import (
	"context"
	"encoding/json"
)

// ExecutionPolicy gates whether a tool runs automatically, requires
// human confirmation, or is denied outright (§4.F). Default is Auto.
type ExecutionPolicy string

const (
	PolicyAuto                ExecutionPolicy = "auto"
	PolicyRequireConfirmation ExecutionPolicy = "require_confirmation"
	PolicyDeny                ExecutionPolicy = "deny"
)

// Definition is a tool's static description: what the model sees in the
// tool catalog and what the registry validates arguments against.
type Definition struct {
	Name         string
	Description  string
	Parameters   map[string]any // JSON schema
	OutputType   string
	OutputSchema map[string]any
}

// Tool is a callable exposed to the model. Implementations must be safe
// for concurrent Call invocations: the runner dispatches the tool-calls
// of a single assistant message concurrently (§4.H.f), and the same Tool
// instance is shared across runs (§5).
type Tool interface {
	Definition() Definition
	Policy() ExecutionPolicy
	Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}
