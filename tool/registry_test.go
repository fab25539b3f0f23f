package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct {
	def    Definition
	policy ExecutionPolicy
}

func (t *echoTool) Definition() Definition   { return t.def }
func (t *echoTool) Policy() ExecutionPolicy  { return t.policy }
func (t *echoTool) Call(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	return args, nil
}

func newEchoTool(name string, params map[string]any) *echoTool {
	return &echoTool{def: Definition{Name: name, Description: "echoes its args", Parameters: params}, policy: PolicyAuto}
}

func TestRegistry_RegisterRejectsBadNames(t *testing.T) {
	r := NewRegistry(nil)

	assert.Error(t, r.Register(newEchoTool("", nil)))
	assert.Error(t, r.Register(newEchoTool("_hidden", nil)))
	assert.Error(t, r.Register(newEchoTool("final_answer", nil)))
	assert.Error(t, r.Register(newEchoTool("user_input", nil)))
	assert.Error(t, r.Register(newEchoTool("has space", nil)))
	assert.NoError(t, r.Register(newEchoTool("good_name", nil)))
	assert.Error(t, r.Register(newEchoTool("good_name", nil)), "duplicate registration must fail")
}

func TestRegistry_DefinitionsPreserveInsertionOrder(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(newEchoTool("charlie", nil)))
	require.NoError(t, r.Register(newEchoTool("alpha", nil)))
	require.NoError(t, r.Register(newEchoTool("bravo", nil)))

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, []string{defs[0].Name, defs[1].Name, defs[2].Name})
}

func TestRegistry_DispatchNotFound(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Dispatch(context.Background(), "missing", json.RawMessage(`{}`))
	require.Error(t, err)
	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrNotFound, toolErr.Kind)
}

func TestRegistry_DispatchValidatesArguments(t *testing.T) {
	r := NewRegistry(nil)
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "integer"}},
		"required":   []any{"a"},
	}
	require.NoError(t, r.Register(newEchoTool("needs_a", schema)))

	_, err := r.Dispatch(context.Background(), "needs_a", json.RawMessage(`{}`))
	require.Error(t, err)
	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrInvalidArguments, toolErr.Kind)

	out, err := r.Dispatch(context.Background(), "needs_a", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))
}
