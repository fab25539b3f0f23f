package tool

import "fmt"

// ErrorKind discriminates the ToolError taxonomy of §7.
type ErrorKind string

const (
	ErrNotFound         ErrorKind = "not_found"
	ErrInvalidArguments ErrorKind = "invalid_arguments"
	ErrExecution        ErrorKind = "execution"
	ErrDeniedPolicy     ErrorKind = "denied_policy"
	ErrDeniedUser       ErrorKind = "denied_user"
	ErrTimeout          ErrorKind = "timeout"
)

// Error is the structured error a tool dispatch can fail with. Tool
// errors are always observations (§7): the runner converts them to
// tool-result text rather than surfacing them to the run's caller.
type Error struct {
	Kind ErrorKind
	Tool string
	Detail string
	Err  error
}

func (e *Error) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("tool %q: %s: %s", e.Tool, e.Kind, e.Detail)
	}
	return fmt.Sprintf("tool: %s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Message renders the string the runner feeds back to the model as the
// corresponding tool-result payload.
func (e *Error) Message() string {
	switch e.Kind {
	case ErrDeniedPolicy:
		return "denied by policy"
	case ErrDeniedUser:
		return "denied by user"
	case ErrNotFound:
		return fmt.Sprintf("unknown tool: %s", e.Tool)
	default:
		return e.Detail
	}
}

// NotFound builds a NotFound error for an unresolved tool name.
func NotFound(name string) *Error {
	return &Error{Kind: ErrNotFound, Tool: name, Detail: fmt.Sprintf("unknown tool: %s", name)}
}

// InvalidArguments builds an InvalidArguments error.
func InvalidArguments(name, detail string) *Error {
	return &Error{Kind: ErrInvalidArguments, Tool: name, Detail: detail}
}

// Execution wraps an underlying execution failure.
func Execution(name string, err error) *Error {
	return &Error{Kind: ErrExecution, Tool: name, Detail: err.Error(), Err: err}
}

// DeniedByPolicy builds the synthetic error for a Deny-policy tool.
func DeniedByPolicy(name string) *Error {
	return &Error{Kind: ErrDeniedPolicy, Tool: name, Detail: "denied by policy"}
}

// DeniedByUser builds the synthetic error for a confirmation-denied tool.
func DeniedByUser(name string) *Error {
	return &Error{Kind: ErrDeniedUser, Tool: name, Detail: "denied by user"}
}

// Timeout builds a Timeout error for a tool that exceeded its deadline.
func Timeout(name string) *Error {
	return &Error{Kind: ErrTimeout, Tool: name, Detail: "tool execution timed out"}
}
