package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssistantText(t *testing.T) {
	assert.Equal(t, "42", AssistantText([]Message{AssistantMessage{Content: "42"}}))
	assert.Equal(t, "", AssistantText(nil))
	assert.Equal(t, "a\nb", AssistantText([]Message{
		AssistantMessage{Content: "a"},
		ToolResultMessage{ToolCallID: "1", Result: "ignored"},
		AssistantMessage{Content: "b"},
	}))
}

func TestToolCalls_OneToOne(t *testing.T) {
	msgs := []Message{
		AssistantMessage{Content: "thinking"},
		ToolCallMessage{ToolCallID: "c1", ToolName: "calculate", Arguments: map[string]any{"a": 1.0}},
	}
	calls := ToolCalls(msgs)
	require.Len(t, calls, 1)
	assert.Equal(t, ToolCall{ToolCallID: "c1", ToolName: "calculate", Arguments: map[string]any{"a": 1.0}}, calls[0])
	assert.Empty(t, ToolCalls([]Message{AssistantMessage{Content: "x"}}))
}

func TestMessages_RoleDiscriminator(t *testing.T) {
	in := []Message{
		SystemMessage{Content: "sys"},
		UserMessage{Content: "hi"},
		ToolCallMessage{ToolCallID: "c1", ToolName: "get_weather", Arguments: map[string]any{"location": "Paris"}},
		ToolResultMessage{ToolCallID: "c1", ToolName: "get_weather", Result: "sunny"},
		AssistantMessage{Content: "It is sunny."},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"role":"tool_call"`)

	out, err := UnmarshalMessages(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = UnmarshalMessage([]byte(`{"role":"bogus"}`))
	assert.Error(t, err)
}

func TestToolSchema_JSONSchema(t *testing.T) {
	s := ToolSchema{
		Name: "create_sub_agent",
		Parameters: []ToolParamSchema{
			{Name: "task", Type: "string", Required: true},
			{Name: "tool_names", Type: "array", Required: true, Items: map[string]any{"type": "string"}},
			{Name: "note", Type: "string"},
		},
	}
	js := s.JSONSchema()
	assert.Equal(t, "object", js["type"])
	assert.Equal(t, []string{"task", "tool_names"}, js["required"])
	props := js["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string"}, props["tool_names"].(map[string]any)["items"])
}

func TestToolContext(t *testing.T) {
	_, ok := ToolContextFrom(context.Background())
	assert.False(t, ok)

	ctx := WithToolContext(context.Background(), ToolContext{AgentID: "agent-1", ToolCallID: "c1"})
	tc, ok := ToolContextFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "agent-1", tc.AgentID)
	assert.Equal(t, "c1", tc.ToolCallID)
}

func TestMarshalEvent(t *testing.T) {
	data, err := MarshalEvent(AgentFinish{AgentID: "agent-1::01ABC", Result: "done"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, AgentFinishEventName, env.Type)
	assert.Equal(t, "agent-1::01ABC", env.AgentID)
	assert.Equal(t, "agent-1", env.PrimaryID)
	assert.JSONEq(t, `{"agent_id":"agent-1::01ABC","result":"done"}`, string(env.Data))
}
