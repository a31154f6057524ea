package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentlauncher/core"
)

func TestBuildMessages_MergesAdjacentTurns(t *testing.T) {
	msgs := buildMessages([]core.Message{
		core.UserMessage{Content: "weather?"},
		core.AssistantMessage{Content: "checking"},
		core.ToolCallMessage{ToolCallID: "t1", ToolName: "get_weather", Arguments: map[string]any{"location": "Oslo"}},
		core.ToolCallMessage{ToolCallID: "t2", ToolName: "get_weather", Arguments: map[string]any{"location": "Bergen"}},
		core.ToolResultMessage{ToolCallID: "t1", Result: "rain"},
		core.ToolResultMessage{ToolCallID: "t2", Result: "sun"},
		core.AssistantMessage{Content: "done"},
	})

	require.Len(t, msgs, 4)
	assert.Len(t, msgs[0].Content, 1)
	assert.Len(t, msgs[1].Content, 3)
	assert.Len(t, msgs[2].Content, 2)
	assert.Len(t, msgs[3].Content, 1)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
}

func TestProcess(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [
				{"type": "text", "text": "Let me look."},
				{"type": "tool_use", "id": "tu_1", "name": "get_weather", "input": {"location": "Oslo"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL + "/"
	})

	schemas := []core.ToolSchema{{
		Name:        "get_weather",
		Description: "Get the weather.",
		Parameters:  []core.ToolParamSchema{{Name: "location", Type: "string", Required: true}},
	}}
	out, err := m.Process(context.Background(), []core.Message{
		core.SystemMessage{Content: "be brief"},
		core.UserMessage{Content: "weather in Oslo?"},
	}, schemas, core.ProcessorContext{AgentID: "agent-1"})
	require.NoError(t, err)

	assert.Equal(t, []core.Message{
		core.AssistantMessage{Content: "Let me look."},
		core.ToolCallMessage{ToolCallID: "tu_1", ToolName: "get_weather", Arguments: map[string]any{"location": "Oslo"}},
	}, out)

	require.NotNil(t, body)
	system, ok := body["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "be brief", system[0].(map[string]any)["text"])
	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	assert.Equal(t, "get_weather", tools[0].(map[string]any)["name"])
	assert.Equal(t, "Get the weather.", tools[0].(map[string]any)["description"])
	assert.Equal(t, "anthropic", m.Info().Provider)
}
