package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentlauncher/core"
)

type recordingBus struct {
	mu     sync.Mutex
	events []core.Event
}

func (b *recordingBus) Emit(ev core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func TestScripted_ReplaysTurnsInOrder(t *testing.T) {
	p := NewScripted([][]core.Message{
		{core.ToolCallMessage{ToolCallID: "c1", ToolName: "calculate", Arguments: map[string]any{"a": 1}}},
		{core.AssistantMessage{Content: "42"}},
	})
	ctx := context.Background()
	pctx := core.ProcessorContext{AgentID: "agent-1"}

	first, err := p.Process(ctx, []core.Message{core.UserMessage{Content: "q"}}, nil, pctx)
	require.NoError(t, err)
	assert.Len(t, core.ToolCalls(first), 1)

	second, err := p.Process(ctx, nil, nil, pctx)
	require.NoError(t, err)
	assert.Equal(t, "42", core.AssistantText(second))

	third, err := p.Process(ctx, nil, nil, pctx)
	require.NoError(t, err)
	assert.Equal(t, ConcludedMessage, core.AssistantText(third))

	calls := p.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "agent-1", calls[0].AgentID)
	assert.Equal(t, []core.Message{core.UserMessage{Content: "q"}}, calls[0].Messages)
}

func TestFunc_PropagatesErrorAndStreams(t *testing.T) {
	boom := errors.New("boom")
	p := NewFunc(func(context.Context, Call) ([]core.Message, error) { return nil, boom },
		func(o *Options) { o.Stream = true })
	bus := &recordingBus{}

	_, err := p.Process(context.Background(), nil, nil, core.ProcessorContext{AgentID: "agent-1", Bus: bus})
	assert.ErrorIs(t, err, boom)
	require.Len(t, bus.events, 1)
	assert.Equal(t, core.MessageError{AgentID: "agent-1", Error: "boom"}, bus.events[0])
}

func TestStreamEvents(t *testing.T) {
	p := NewScripted([][]core.Message{{
		core.AssistantMessage{Content: "hi"},
		core.ToolCallMessage{ToolCallID: "c1", ToolName: "get_weather", Arguments: map[string]any{"location": "Oslo"}},
	}}, func(o *Options) { o.Stream = true })
	bus := &recordingBus{}

	_, err := p.Process(context.Background(), nil, nil, core.ProcessorContext{AgentID: "agent-1", Bus: bus})
	require.NoError(t, err)

	assert.Equal(t, []core.Event{
		core.MessageStart{AgentID: "agent-1"},
		core.MessageDelta{AgentID: "agent-1", Delta: "hi"},
		core.MessageDone{AgentID: "agent-1", Message: "hi"},
		core.ToolCallName{AgentID: "agent-1", ToolCallID: "c1", ToolName: "get_weather"},
		core.ToolCallArgsStart{AgentID: "agent-1", ToolCallID: "c1"},
		core.ToolCallArgsDelta{AgentID: "agent-1", ToolCallID: "c1", ArgumentsDelta: `{"location":"Oslo"}`},
		core.ToolCallArgsDone{AgentID: "agent-1", ToolCallID: "c1", Arguments: `{"location":"Oslo"}`},
	}, bus.events)
	assert.True(t, p.Info().Streaming)
}

func TestDelay_HonoursContext(t *testing.T) {
	p := NewScripted(nil, func(o *Options) { o.Delay = time.Hour })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, nil, nil, core.ProcessorContext{})
	assert.ErrorIs(t, err, context.Canceled)
}

func schemas(names ...string) []core.ToolSchema {
	out := make([]core.ToolSchema, len(names))
	for i, n := range names {
		out[i] = core.ToolSchema{Name: n}
	}
	return out
}

func TestScenario_WeatherPlaysToCompletion(t *testing.T) {
	p := NewScenario(1)
	ctx := context.Background()
	pctx := core.ProcessorContext{AgentID: "agent-1"}
	msgs := []core.Message{core.UserMessage{Content: "What is the weather in Oslo?"}}
	tools := schemas("get_weather", "convert_temperature")

	first, err := p.Process(ctx, msgs, tools, pctx)
	require.NoError(t, err)
	calls := core.ToolCalls(first)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].ToolName)
	assert.Equal(t, "Oslo", calls[0].Arguments["location"])

	second, err := p.Process(ctx, msgs, tools, pctx)
	require.NoError(t, err)
	assert.Equal(t, "convert_temperature", core.ToolCalls(second)[0].ToolName)

	third, err := p.Process(ctx, msgs, tools, pctx)
	require.NoError(t, err)
	assert.Empty(t, core.ToolCalls(third))
	assert.Contains(t, core.AssistantText(third), "Oslo")

	// a finished agent starts over
	again, err := p.Process(ctx, msgs, tools, pctx)
	require.NoError(t, err)
	assert.Len(t, core.ToolCalls(again), 1)
}

func TestScenario_AgentsAreIndependent(t *testing.T) {
	p := NewScenario(7)
	ctx := context.Background()
	tools := schemas("calculate")
	msgs := []core.Message{core.UserMessage{Content: "compute"}}

	a1, err := p.Process(ctx, msgs, tools, core.ProcessorContext{AgentID: "agent-1"})
	require.NoError(t, err)
	b1, err := p.Process(ctx, msgs, tools, core.ProcessorContext{AgentID: "agent-2"})
	require.NoError(t, err)
	assert.Len(t, core.ToolCalls(a1), 1)
	assert.Len(t, core.ToolCalls(b1), 1)

	a2, err := p.Process(ctx, msgs, tools, core.ProcessorContext{AgentID: "agent-1"})
	require.NoError(t, err)
	assert.Contains(t, core.AssistantText(a2), "is complete")
}

func TestScenario_GenericFallbacks(t *testing.T) {
	ctx := context.Background()
	pctx := core.ProcessorContext{AgentID: "agent-1"}

	p := NewScenario(3)
	out, err := p.Process(ctx, nil, nil, pctx)
	require.NoError(t, err)
	assert.Contains(t, core.AssistantText(out), "your request")

	tool := core.ToolSchema{Name: "lookup", Parameters: []core.ToolParamSchema{
		{Name: "q", Type: "string"},
		{Name: "n", Type: "integer"},
		{Name: "tags", Type: "array"},
	}}
	p = NewScenario(3)
	out, err = p.Process(ctx, nil, []core.ToolSchema{tool}, pctx)
	require.NoError(t, err)
	calls := core.ToolCalls(out)
	require.Len(t, calls, 1)
	assert.Equal(t, "mock-q", calls[0].Arguments["q"])
	assert.IsType(t, 0, calls[0].Arguments["n"])
	assert.Equal(t, []any{"mock-item-for-tags"}, calls[0].Arguments["tags"])
}
