package agentlauncher

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/internal/testutil"
	"github.com/hupe1980/agentlauncher/model"
	"github.com/hupe1980/agentlauncher/model/mock"
	"github.com/hupe1980/agentlauncher/tool"
)

func newLauncher(t *testing.T, optFns ...func(o *Options)) *Launcher {
	t.Helper()
	l := New(optFns...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testutil.WaitTimeout)
		defer cancel()
		_ = l.Close(ctx)
	})
	return l
}

func calculateTool() tool.Tool {
	return tool.NewFunctionTool("calculate", "Compute a*b+c", []core.ToolParamSchema{
		{Name: "a", Type: "integer", Required: true},
		{Name: "b", Type: "integer", Required: true},
		{Name: "c", Type: "integer", Required: true},
	}, func(_ context.Context, args map[string]any) (string, error) {
		return strconv.Itoa(intArg(args["a"])*intArg(args["b"]) + intArg(args["c"])), nil
	})
}

func intArg(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func TestRun_TextAnswer(t *testing.T) {
	proc := mock.NewScripted([][]core.Message{{core.AssistantMessage{Content: "42"}}})
	l := newLauncher(t, func(o *Options) { o.PrimaryProcessor = model.Processor(proc) })

	result, ok := l.Run(context.Background(), "What is the answer?")
	require.True(t, ok)
	assert.Equal(t, "42", result)

	calls := proc.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, core.UserMessage{Content: "What is the answer?"}, calls[0].Messages[1])
	assert.True(t, agentid.IsPrimary(calls[0].AgentID))
}

func TestRun_ToolUsage(t *testing.T) {
	proc := mock.NewScripted([][]core.Message{
		testutil.NewResponse().ToolCallWithID("c1", "calculate", map[string]any{"a": 2, "b": 3, "c": 4}).Build(),
		testutil.NewResponse().Text("The result is 10").Build(),
	})
	l := newLauncher(t, func(o *Options) { o.PrimaryProcessor = model.Processor(proc) })
	require.NoError(t, l.RegisterTool(calculateTool()))
	rec := testutil.NewRecorder(l.Bus())

	result, ok := l.Run(context.Background(), "compute")
	require.True(t, ok)
	assert.Equal(t, "The result is 10", result)

	finish := testutil.WaitFor(t, rec, testutil.Any[core.ToolExecFinish])
	assert.Equal(t, "10", finish.Result)

	calls := proc.Calls()
	require.Len(t, calls, 2)
	last := calls[1].Messages[len(calls[1].Messages)-1]
	assert.Equal(t, core.ToolResultMessage{ToolCallID: "c1", ToolName: "calculate", Result: "10"}, last)
}

func TestRun_SubAgentCancellation(t *testing.T) {
	primary := mock.NewFunc(func(_ context.Context, call mock.Call) ([]core.Message, error) {
		return testutil.NewResponse().ToolCallWithID("s1", tool.SubAgentToolName, map[string]any{
			"task":       "research",
			"tool_names": []any{},
		}).Build(), nil
	})
	release := make(chan struct{})
	sub := mock.NewFunc(func(ctx context.Context, _ mock.Call) ([]core.Message, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return testutil.NewResponse().Text("too late").Build(), nil
	})

	l := newLauncher(t, func(o *Options) {
		o.PrimaryProcessor = model.Processor(primary)
		o.SubAgentProcessor = model.Processor(sub)
	})
	rec := testutil.NewRecorder(l.Bus())

	type outcome struct {
		result string
		ok     bool
	}
	done := make(chan outcome, 1)
	go func() {
		r, ok := l.Run(context.Background(), "delegate")
		done <- outcome{r, ok}
	}()

	started := testutil.WaitFor(t, rec, func(ev core.AgentStart) bool { return !agentid.IsPrimary(ev.AgentID) })
	primaryID := agentid.PrimaryOf(started.AgentID)
	require.True(t, l.Cancel(primaryID, "user"))

	select {
	case out := <-done:
		assert.False(t, out.ok)
		assert.Empty(t, out.result)
	case <-time.After(testutil.WaitTimeout):
		t.Fatal("run did not return after cancel")
	}

	testutil.WaitFor(t, rec, func(ev core.AgentDeleted) bool { return ev.AgentID == primaryID })
	testutil.WaitFor(t, rec, func(ev core.AgentDeleted) bool { return ev.AgentID == started.AgentID })
	execErr := testutil.WaitFor(t, rec, func(ev core.ToolExecError) bool { return ev.ToolName == tool.SubAgentToolName })
	assert.Contains(t, execErr.Error, "sub-agent cancelled")
	assert.Eventually(t, func() bool { return l.Tools().PendingSubAgents() == 0 }, testutil.WaitTimeout, 5*time.Millisecond)

	close(release)
	l.Bus().Wait()

	assert.Len(t, testutil.Where(rec, func(ev core.AgentDeleted) bool { return ev.AgentID == primaryID }), 1)
	assert.Len(t, testutil.Where(rec, func(ev core.AgentDeleted) bool { return ev.AgentID == started.AgentID }), 1)
	assert.Empty(t, testutil.Of[core.AgentRuntimeError](rec))
	assert.Empty(t, testutil.Of[core.TaskFinish](rec))
}

func TestRun_ProcessorFailureExhaustsRetries(t *testing.T) {
	proc := mock.NewFunc(func(context.Context, mock.Call) ([]core.Message, error) {
		return nil, errors.New("boom")
	})
	l := newLauncher(t, func(o *Options) { o.PrimaryProcessor = model.Processor(proc) })

	result, ok := l.Run(context.Background(), "fail")
	require.True(t, ok)
	assert.Equal(t, "Runtime error: boom", result)
	assert.Len(t, proc.Calls(), 6)
}

func TestRun_ConcurrentRunsAreIsolated(t *testing.T) {
	proc := mock.NewFunc(func(_ context.Context, call mock.Call) ([]core.Message, error) {
		return testutil.NewResponse().Text("answer:" + model.LastUserContent(call.Messages)).Build(), nil
	})
	l := newLauncher(t, func(o *Options) { o.PrimaryProcessor = model.Processor(proc) })

	tasks := []string{"a", "b", "c"}
	results := make([]string, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, ok := l.Run(context.Background(), task)
			if ok {
				results[i] = r
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"answer:a", "answer:b", "answer:c"}, results)
}

func TestRun_UnknownToolSkipsBatch(t *testing.T) {
	proc := mock.NewScripted([][]core.Message{
		testutil.NewResponse().
			ToolCallWithID("c1", "calculate", map[string]any{"a": 1, "b": 1, "c": 1}).
			ToolCallWithID("c2", "does_not_exist", nil).
			Build(),
		testutil.NewResponse().Text("gave up").Build(),
	})
	l := newLauncher(t, func(o *Options) { o.PrimaryProcessor = model.Processor(proc) })
	require.NoError(t, l.RegisterTool(calculateTool()))
	rec := testutil.NewRecorder(l.Bus())

	result, ok := l.Run(context.Background(), "try")
	require.True(t, ok)
	assert.Equal(t, "gave up", result)

	l.Bus().Wait()
	assert.Empty(t, testutil.Of[core.ToolExecStart](rec))
	assert.NotEmpty(t, testutil.Of[core.ToolRuntimeError](rec))

	calls := proc.Calls()
	require.Len(t, calls, 2)
	last := calls[1].Messages[len(calls[1].Messages)-1]
	assert.IsType(t, core.ToolCallMessage{}, last)
}

func TestRun_FailingToolIsDropped(t *testing.T) {
	proc := mock.NewScripted([][]core.Message{
		testutil.NewResponse().
			ToolCallWithID("c1", "calculate", map[string]any{"a": 1, "b": 2, "c": 3}).
			ToolCallWithID("c2", "explode", nil).
			Build(),
		testutil.NewResponse().Text("done").Build(),
	})
	l := newLauncher(t, func(o *Options) { o.PrimaryProcessor = model.Processor(proc) })
	require.NoError(t, l.RegisterTools(
		calculateTool(),
		tool.NewFunctionTool("explode", "Always panics", nil, func(context.Context, map[string]any) (string, error) {
			panic("kaboom")
		}),
	))
	rec := testutil.NewRecorder(l.Bus())

	result, ok := l.Run(context.Background(), "mixed")
	require.True(t, ok)
	assert.Equal(t, "done", result)

	results := testutil.WaitFor(t, rec, testutil.Any[core.ToolsExecResults])
	require.Len(t, results.ToolResults, 1)
	assert.Equal(t, "c1", results.ToolResults[0].ToolCallID)
	testutil.WaitFor(t, rec, func(ev core.ToolExecError) bool { return ev.ToolCallID == "c2" })
}

func TestRun_Timeout(t *testing.T) {
	proc := mock.NewScripted(nil, func(o *mock.Options) { o.Delay = time.Hour })
	l := newLauncher(t, func(o *Options) { o.PrimaryProcessor = model.Processor(proc) })
	rec := testutil.NewRecorder(l.Bus())

	result, ok := l.Run(context.Background(), "slow", WithTimeout(50*time.Millisecond))
	assert.False(t, ok)
	assert.Empty(t, result)

	cancel := testutil.WaitFor(t, rec, testutil.Any[core.TaskCancel])
	assert.Equal(t, "timeout", cancel.Reason)
}

func TestRun_SessionHistory(t *testing.T) {
	proc := mock.NewScripted([][]core.Message{
		testutil.NewResponse().Text("first answer").Build(),
		testutil.NewResponse().Text("second answer").Build(),
	})
	l := newLauncher(t, func(o *Options) { o.PrimaryProcessor = model.Processor(proc) })
	rec := testutil.NewRecorder(l.Bus())

	_, ok := l.Run(context.Background(), "first", WithSessionID("s1"))
	require.True(t, ok)
	testutil.WaitFor(t, rec, func(ev core.MessagesAdd) bool {
		return core.AssistantText(ev.Messages) == "first answer"
	})

	result, ok := l.Run(context.Background(), "second", WithSessionID("s1"))
	require.True(t, ok)
	assert.Equal(t, "second answer", result)

	calls := proc.Calls()
	require.Len(t, calls, 2)
	msgs := calls[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, core.UserMessage{Content: "first"}, msgs[1])
	assert.Equal(t, core.AssistantMessage{Content: "first answer"}, msgs[2])
	assert.Equal(t, core.UserMessage{Content: "second"}, msgs[3])
}

func TestRun_HookSeesSubAgentEvents(t *testing.T) {
	primary := mock.NewScripted([][]core.Message{
		testutil.NewResponse().ToolCallWithID("s1", tool.SubAgentToolName, map[string]any{
			"task":       "help",
			"tool_names": []any{},
		}).Build(),
		testutil.NewResponse().Text("final").Build(),
	})
	sub := mock.NewScripted([][]core.Message{testutil.NewResponse().Text("sub result").Build()})
	l := newLauncher(t, func(o *Options) {
		o.PrimaryProcessor = model.Processor(primary)
		o.SubAgentProcessor = model.Processor(sub)
	})

	var (
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	result, ok := l.Run(context.Background(), "go", WithHook(func(_ context.Context, ev core.Event) error {
		mu.Lock()
		defer mu.Unlock()
		ids[ev.GetAgentID()] = true
		return nil
	}))
	require.True(t, ok)
	assert.Equal(t, "final", result)

	mu.Lock()
	defer mu.Unlock()
	var sawSub bool
	for id := range ids {
		if !agentid.IsPrimary(id) {
			sawSub = true
		}
	}
	assert.True(t, sawSub)
}
