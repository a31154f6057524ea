package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/eventbus"
	"github.com/hupe1980/agentlauncher/internal/testutil"
)

type staticCatalog []core.ToolSchema

func (c staticCatalog) Schemas() []core.ToolSchema { return c }

type mockSessionStore struct {
	mu       sync.Mutex
	messages map[string][]core.Message
	loadErr  error
}

func (m *mockSessionStore) Load(_ context.Context, id string) ([]core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return core.CloneMessages(m.messages[id]), nil
}

func (m *mockSessionStore) Append(_ context.Context, id string, msgs ...core.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messages == nil {
		m.messages = make(map[string][]core.Message)
	}
	m.messages[id] = append(m.messages[id], msgs...)
	return nil
}

func (m *mockSessionStore) Close() error { return nil }

// finishWith answers every TaskCreate with a TaskFinish carrying result.
func finishWith(bus *eventbus.Bus, result string) {
	eventbus.Subscribe(bus, func(_ context.Context, ev core.TaskCreate) error {
		bus.Emit(core.TaskFinish{AgentID: ev.AgentID, Result: result + ":" + ev.Task})
		return nil
	})
}

func TestRun_ReturnsTaskFinishResult(t *testing.T) {
	bus := eventbus.New()
	rec := testutil.NewRecorder(bus)
	eng := New(bus, func(o *Options) { o.Tools = staticCatalog{{Name: "calculate"}} })
	finishWith(bus, "done")

	result, ok := eng.Run(context.Background(), "task")
	require.True(t, ok)
	assert.Equal(t, "done:task", result)

	create := testutil.WaitFor(t, rec, testutil.Any[core.TaskCreate])
	assert.True(t, agentid.IsPrimary(create.AgentID))
	assert.Equal(t, []core.ToolSchema{{Name: "calculate"}}, create.ToolSchemas)

	stop := testutil.WaitFor(t, rec, testutil.Any[core.Stop])
	assert.Equal(t, ReasonFinished, stop.Reason)
	assert.Equal(t, create.AgentID, stop.AgentID)
	assert.Empty(t, eng.Pending())
}

func TestRun_SecondTaskFinishIsIgnored(t *testing.T) {
	bus := eventbus.New()
	rec := testutil.NewRecorder(bus)
	eng := New(bus)
	eventbus.Subscribe(bus, func(_ context.Context, ev core.TaskCreate) error {
		bus.Emit(core.TaskFinish{AgentID: ev.AgentID, Result: "first"})
		bus.Emit(core.TaskFinish{AgentID: ev.AgentID, Result: "second"})
		return nil
	})

	result, ok := eng.Run(context.Background(), "task")
	require.True(t, ok)
	assert.Contains(t, []string{"first", "second"}, result)

	bus.Wait()
	assert.Len(t, testutil.Of[core.Stop](rec), 1)
}

func TestRun_Timeout(t *testing.T) {
	bus := eventbus.New()
	rec := testutil.NewRecorder(bus)
	eng := New(bus)

	result, ok := eng.Run(context.Background(), "never finishes", WithTimeout(20*time.Millisecond))
	assert.False(t, ok)
	assert.Empty(t, result)

	cancel := testutil.WaitFor(t, rec, testutil.Any[core.TaskCancel])
	assert.Equal(t, ReasonTimeout, cancel.Reason)
	stop := testutil.WaitFor(t, rec, testutil.Any[core.Stop])
	assert.Equal(t, ReasonTimeout, stop.Reason)
	assert.Empty(t, eng.Pending())
}

func TestRun_DefaultTimeout(t *testing.T) {
	bus := eventbus.New()
	eng := New(bus, func(o *Options) { o.DefaultTimeout = 10 * time.Millisecond })

	_, ok := eng.Run(context.Background(), "never finishes")
	assert.False(t, ok)
}

func TestRun_ContextCancel(t *testing.T) {
	bus := eventbus.New()
	rec := testutil.NewRecorder(bus)
	eng := New(bus)

	ctx, cancel := context.WithCancel(context.Background())
	eventbus.Subscribe(bus, func(context.Context, core.TaskCreate) error {
		cancel()
		return nil
	})

	_, ok := eng.Run(ctx, "task")
	assert.False(t, ok)

	ev := testutil.WaitFor(t, rec, testutil.Any[core.TaskCancel])
	assert.Equal(t, ReasonCancelled, ev.Reason)
}

func TestCancel(t *testing.T) {
	bus := eventbus.New()
	rec := testutil.NewRecorder(bus)
	eng := New(bus)

	eventbus.Subscribe(bus, func(_ context.Context, ev core.TaskCreate) error {
		assert.True(t, eng.Cancel(ev.AgentID, "user"))
		return nil
	})

	_, ok := eng.Run(context.Background(), "task")
	assert.False(t, ok)

	stop := testutil.WaitFor(t, rec, testutil.Any[core.Stop])
	assert.Equal(t, "user", stop.Reason)

	bus.Wait()
	assert.False(t, eng.Cancel("agent-unknown", ""))
	bus.Wait()
	assert.Len(t, testutil.Of[core.TaskCancel](rec), 2)
	assert.Len(t, testutil.Of[core.Stop](rec), 1)
}

func TestShutdown_CancelsPendingRuns(t *testing.T) {
	bus := eventbus.New()
	rec := testutil.NewRecorder(bus)
	eng := New(bus)

	var wg sync.WaitGroup
	var okCount atomic.Int32
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := eng.Run(context.Background(), "task"); ok {
				okCount.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return len(eng.Pending()) == 2 }, testutil.WaitTimeout, 5*time.Millisecond)
	eng.Shutdown()
	wg.Wait()

	assert.Equal(t, int32(0), okCount.Load())
	bus.Wait()
	assert.Len(t, testutil.Of[core.Shutdown](rec), 2)

	cancels := testutil.Of[core.TaskCancel](rec)
	require.Len(t, cancels, 2)
	stops := testutil.Of[core.Stop](rec)
	require.Len(t, stops, 2)
	for i := range cancels {
		assert.Equal(t, ReasonShutdown, cancels[i].Reason)
		assert.Equal(t, ReasonShutdown, stops[i].Reason)
	}
	assert.Empty(t, eng.Pending())
}

func TestRun_HookReceivesTaskEvents(t *testing.T) {
	bus := eventbus.New()
	eng := New(bus)
	eventbus.Subscribe(bus, func(_ context.Context, ev core.TaskCreate) error {
		child := agentid.Derive(ev.AgentID)
		bus.Emit(core.AgentStart{AgentID: child})
		bus.Emit(core.AgentStart{AgentID: "agent-other"})
		bus.Emit(core.AgentFinish{AgentID: child, Result: "sub"})
		return nil
	})
	eventbus.Subscribe(bus, func(_ context.Context, ev core.AgentFinish) error {
		bus.Emit(core.TaskFinish{AgentID: agentid.PrimaryOf(ev.AgentID), Result: ev.Result})
		return nil
	})

	var mu sync.Mutex
	var seen []core.Event
	hook := func(_ context.Context, ev core.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev)
		return nil
	}

	result, ok := eng.Run(context.Background(), "task", WithHook(hook))
	require.True(t, ok)
	assert.Equal(t, "sub", result)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range seen {
			if _, ok := ev.(core.TaskFinish); ok {
				return true
			}
		}
		return false
	}, testutil.WaitTimeout, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, ev := range seen {
		assert.NotEqual(t, "agent-other", ev.GetAgentID())
	}
}

func TestRun_LoadsSessionHistory(t *testing.T) {
	bus := eventbus.New()
	rec := testutil.NewRecorder(bus)
	store := &mockSessionStore{}
	require.NoError(t, store.Append(context.Background(), "s1", core.UserMessage{Content: "hi"}, core.AssistantMessage{Content: "hello"}))

	eng := New(bus, func(o *Options) { o.SessionStore = store })
	finishWith(bus, "ok")

	_, ok := eng.Run(context.Background(), "again",
		WithSessionID("s1"),
		WithHistory(core.UserMessage{Content: "extra"}),
		WithSystemPrompt("be brief"),
	)
	require.True(t, ok)

	create := testutil.WaitFor(t, rec, testutil.Any[core.TaskCreate])
	assert.Equal(t, "s1", create.SessionID)
	assert.Equal(t, "be brief", create.SystemPrompt)
	assert.Equal(t, []core.Message{
		core.UserMessage{Content: "hi"},
		core.AssistantMessage{Content: "hello"},
		core.UserMessage{Content: "extra"},
	}, create.Conversation)
}

func TestRun_SessionLoadErrorStartsEmpty(t *testing.T) {
	bus := eventbus.New()
	rec := testutil.NewRecorder(bus)
	eng := New(bus, func(o *Options) { o.SessionStore = &mockSessionStore{loadErr: errors.New("disk gone")} })
	finishWith(bus, "ok")

	_, ok := eng.Run(context.Background(), "task", WithSessionID("s1"))
	require.True(t, ok)

	create := testutil.WaitFor(t, rec, testutil.Any[core.TaskCreate])
	assert.Empty(t, create.Conversation)
}
