package subagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentrt/agent"
	"github.com/kadirpekel/agentrt/memory"
	"github.com/kadirpekel/agentrt/message"
	"github.com/kadirpekel/agentrt/provider/providertest"
)

func newPoet(t *testing.T) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Config{Name: "poet", Description: "writes haiku", LLM: providertest.New("poet")})
	require.NoError(t, err)
	return a
}

func TestAdapter_DefinitionUsesFixedSchema(t *testing.T) {
	a := New(newPoet(t), nil, 0)
	def := a.Definition()

	assert.Equal(t, "poet", def.Name)
	props := def.Parameters["properties"].(map[string]any)
	assert.Contains(t, props, "task")
	assert.Contains(t, props, "additional_args")
	assert.Equal(t, []any{"task"}, def.Parameters["required"])
}

func TestAdapter_CallInvokesRunnerAndReturnsAnswer(t *testing.T) {
	var gotTask string
	run := func(_ context.Context, sub *agent.Agent, task string, _ map[string]any) (string, *message.Usage, *memory.Memory, error) {
		gotTask = task
		return "Iron blooms in rust", nil, nil, nil
	}

	a := New(newPoet(t), run, 0)
	out, err := a.Call(context.Background(), json.RawMessage(`{"task":"haiku about rust"}`))
	require.NoError(t, err)
	assert.Equal(t, "haiku about rust", gotTask)
	assert.JSONEq(t, `"Iron blooms in rust"`, string(out))
}

func TestAdapter_CallRequiresTask(t *testing.T) {
	a := New(newPoet(t), func(context.Context, *agent.Agent, string, map[string]any) (string, *message.Usage, *memory.Memory, error) {
		return "", nil, nil, nil
	}, 0)

	_, err := a.Call(context.Background(), json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestAdapter_CallAppendsSummaryWhenConfigured(t *testing.T) {
	sub, err := agent.New(agent.Config{
		Name:                "poet",
		Description:         "writes haiku",
		LLM:                 providertest.New("poet"),
		SummarizeAsSubAgent: true,
	})
	require.NoError(t, err)

	transcript := memory.New("you are a poet")
	require.NoError(t, transcript.Append(memory.NewTaskStep(memory.TaskStep{Task: "haiku about rust"})))

	run := func(context.Context, *agent.Agent, string, map[string]any) (string, *message.Usage, *memory.Memory, error) {
		return "Iron blooms in rust", nil, transcript, nil
	}

	a := New(sub, run, 0)
	out, err := a.Call(context.Background(), json.RawMessage(`{"task":"haiku about rust"}`))
	require.NoError(t, err)

	var result string
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Contains(t, result, "Iron blooms in rust")
	assert.Contains(t, result, "poet run summary")
	assert.Contains(t, result, "haiku about rust")
}

func TestAdapter_CallOmitsSummaryWhenNotConfigured(t *testing.T) {
	transcript := memory.New("you are a poet")
	require.NoError(t, transcript.Append(memory.NewTaskStep(memory.TaskStep{Task: "haiku about rust"})))

	run := func(context.Context, *agent.Agent, string, map[string]any) (string, *message.Usage, *memory.Memory, error) {
		return "Iron blooms in rust", nil, transcript, nil
	}

	a := New(newPoet(t), run, 0)
	out, err := a.Call(context.Background(), json.RawMessage(`{"task":"haiku about rust"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"Iron blooms in rust"`, string(out))
}

func TestAdapter_RejectsDepthExceeded(t *testing.T) {
	run := func(context.Context, *agent.Agent, string, map[string]any) (string, *message.Usage, *memory.Memory, error) {
		return "x", nil, nil, nil
	}
	a := New(newPoet(t), run, 1)

	ctx := context.WithValue(context.Background(), depthKey{}, 1)
	_, err := a.Call(ctx, json.RawMessage(`{"task":"x"}`))
	require.Error(t, err)

	var depthErr *DepthExceededError
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, "poet", depthErr.Agent)
	assert.Equal(t, 1, depthErr.Max)
}
