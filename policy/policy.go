// Package policy implements the execution-policy/confirmation flow of
// §4.F: before a tool with a non-Auto policy executes, the runner consults
// a ConfirmationHandler. Grounded on the teacher's RequiresApproval()/
// approval-decision handling in pkg/agent/llmagent/flow.go, stripped of
// its session-state persistence (extractApprovalDecisions/
// checkApprovalDecision/clearApprovalDecision round-trip approval
// decisions through session state across process restarts; this core has
// no persisted memory, so the decision lives only in a run-scoped Tracker).
package policy

import (
	"context"
	"sync"
)

// Decision is the confirmation handler's verdict on one tool call.
type Decision int

const (
	Denied Decision = iota
	Approved
	// ApproveAll promotes every subsequent RequireConfirmation tool in the
	// same run to Auto, so the user isn't re-prompted call after call.
	ApproveAll
)

// ConfirmationHandler is the host-supplied gate for RequireConfirmation
// tools and for the reserved user_input tool (§4.H). Implementations may
// block arbitrarily long; the caller's context cancellation must abort it.
type ConfirmationHandler interface {
	// RequestApproval asks whether toolName may run with the given
	// arguments (JSON text, for display).
	RequestApproval(ctx context.Context, toolName, argsJSON string) (Decision, error)

	// RequestText prompts the user for free text, servicing the reserved
	// user_input tool.
	RequestText(ctx context.Context, question string) (string, error)
}

// Tracker holds the run-scoped approval state: which tool names have been
// promoted to Auto by a prior ApproveAll decision. Safe for concurrent
// Resolve calls, since tool-calls within one assistant message dispatch
// concurrently (§4.H).
type Tracker struct {
	mu       sync.Mutex
	promoted map[string]bool
}

// NewTracker creates an empty per-run approval tracker.
func NewTracker() *Tracker {
	return &Tracker{promoted: make(map[string]bool)}
}

// ErrorKind classifies why a tool did not execute under policy.
type ErrorKind int

const (
	// Proceed means the tool should execute normally.
	Proceed ErrorKind = iota
	// DeniedByPolicy means the tool's policy is Deny.
	DeniedByPolicy
	// DeniedByUser means a RequireConfirmation tool was denied, or no
	// handler was configured to ask.
	DeniedByUser
)

// Resolve decides whether a call to a tool with the given name and policy
// may proceed, consulting handler for RequireConfirmation tools unless a
// prior ApproveAll already promoted name to Auto for this run.
func (t *Tracker) Resolve(ctx context.Context, name string, requiresConfirmation bool, handler ConfirmationHandler, argsJSON string) (ErrorKind, error) {
	if !requiresConfirmation || t.isPromoted(name) {
		return Proceed, nil
	}

	if handler == nil {
		return DeniedByUser, nil
	}

	decision, err := handler.RequestApproval(ctx, name, argsJSON)
	if err != nil {
		return DeniedByUser, err
	}

	switch decision {
	case Approved:
		return Proceed, nil
	case ApproveAll:
		t.promote(name)
		return Proceed, nil
	default:
		return DeniedByUser, nil
	}
}

func (t *Tracker) isPromoted(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.promoted[name]
}

func (t *Tracker) promote(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.promoted[name] = true
}
