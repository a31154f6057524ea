package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentlauncher"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/internal/demotools"
	"github.com/hupe1980/agentlauncher/internal/testutil"
	"github.com/hupe1980/agentlauncher/model"
	"github.com/hupe1980/agentlauncher/model/mock"
	"github.com/hupe1980/agentlauncher/natsbridge"
)

func newTestServer(t *testing.T, proc *mock.Processor) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, newTestLauncher(t, proc))
}

func newTestLauncher(t *testing.T, proc *mock.Processor) *agentlauncher.Launcher {
	t.Helper()
	l := agentlauncher.New(func(o *agentlauncher.Options) {
		o.PrimaryProcessor = model.Processor(proc)
	})
	require.NoError(t, demotools.Register(l.Tools()))
	return l
}

func newTestServerWith(t *testing.T, l *agentlauncher.Launcher, optFns ...func(o *Options)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(l, optFns...).Handler())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), testutil.WaitTimeout)
		defer cancel()
		_ = l.Close(ctx)
	})
	return srv
}

func answer(text string) *mock.Processor {
	return mock.NewFunc(func(context.Context, mock.Call) ([]core.Message, error) {
		return testutil.NewResponse().Text(text).Build(), nil
	})
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, answer("ok"))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestTools(t *testing.T) {
	srv := newTestServer(t, answer("ok"))

	resp, err := http.Get(srv.URL + "/tools")
	require.NoError(t, err)
	defer resp.Body.Close()

	var schemas []core.ToolSchema
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&schemas))
	assert.Len(t, schemas, 15)
}

func TestCreateTask(t *testing.T) {
	srv := newTestServer(t, answer("42"))

	resp, err := http.Post(srv.URL+"/tasks", "application/json", strings.NewReader(`{"task":"answer"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out TaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.OK)
	assert.Equal(t, "42", out.Result)
	assert.NotEmpty(t, out.AgentID)
}

func TestCreateTask_BadRequest(t *testing.T) {
	srv := newTestServer(t, answer("42"))

	for _, body := range []string{`{}`, `{"task":`, `{"task":"x","unknown":1}`} {
		resp, err := http.Post(srv.URL+"/tasks", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestCreateTask_Timeout(t *testing.T) {
	srv := newTestServer(t, mock.NewScripted(nil, func(o *mock.Options) { o.Delay = time.Hour }))

	resp, err := http.Post(srv.URL+"/tasks", "application/json", strings.NewReader(`{"task":"slow","timeout_seconds":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out TaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.OK)
	assert.Empty(t, out.Result)
}

func TestCreateTask_Stream(t *testing.T) {
	srv := newTestServer(t, mock.NewScripted([][]core.Message{
		testutil.NewResponse().ToolCall("get_weather", map[string]any{"location": "Oslo"}).Build(),
		testutil.NewResponse().Text("Sunny in Oslo").Build(),
	}))

	resp, err := http.Post(srv.URL+"/tasks", "application/json", strings.NewReader(`{"task":"weather","stream":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Greater(t, len(lines), 1)

	for _, line := range lines[:len(lines)-1] {
		var env core.Envelope
		require.NoError(t, json.Unmarshal([]byte(line), &env))
		assert.NotEmpty(t, env.Type)
	}

	var final TaskResponse
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &final))
	assert.Equal(t, ResultType, final.Type)
	assert.True(t, final.OK)
	assert.Equal(t, "Sunny in Oslo", final.Result)
}

func TestCancelTask(t *testing.T) {
	srv := newTestServer(t, answer("x"))

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/tasks/agent-unknown", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTaskEvents_Disabled(t *testing.T) {
	srv := newTestServer(t, answer("x"))

	resp, err := http.Get(srv.URL + "/tasks/agent-1/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestTaskEvents_ReplaysPersistedEvents(t *testing.T) {
	ns, err := natsbridge.StartEmbedded(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = natsbridge.ShutdownEmbedded(ns, 5*time.Second) })
	nc, err := natsbridge.ConnectInProcess(ns)
	require.NoError(t, err)

	l := newTestLauncher(t, answer("persisted"))
	bridge, err := natsbridge.New(context.Background(), l.Bus(), nc, func(o *natsbridge.Options) {
		o.Prefix = "srv"
		o.Persist = true
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bridge.Close() })

	srv := newTestServerWith(t, l, func(o *Options) { o.History = bridge })

	resp, err := http.Post(srv.URL+"/tasks", "application/json", strings.NewReader(`{"task":"remember me"}`))
	require.NoError(t, err)
	var out TaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.True(t, out.OK)
	require.NotEmpty(t, out.AgentID)

	var envs []core.Envelope
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/tasks/" + out.AgentID + "/events")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		envs = nil
		if json.NewDecoder(resp.Body).Decode(&envs) != nil {
			return false
		}
		for _, env := range envs {
			if env.Type == core.TaskFinishEventName {
				return true
			}
		}
		return false
	}, testutil.WaitTimeout, 20*time.Millisecond)

	types := make([]string, 0, len(envs))
	for _, env := range envs {
		assert.Equal(t, out.AgentID, env.PrimaryID)
		types = append(types, env.Type)
	}
	assert.Contains(t, types, core.TaskCreateEventName)

	resp, err = http.Get(srv.URL + "/tasks/agent-unknown/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTaskWebSocket(t *testing.T) {
	srv := newTestServer(t, answer("hello over ws"))

	ctx, cancel := context.WithTimeout(context.Background(), testutil.WaitTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/tasks", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, wsjson.Write(ctx, conn, TaskRequest{Task: "greet"}))

	var final TaskResponse
	for {
		var msg map[string]json.RawMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		var typ string
		require.NoError(t, json.Unmarshal(msg["type"], &typ))
		if typ != ResultType {
			continue
		}
		raw, err := json.Marshal(msg)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &final))
		break
	}
	assert.True(t, final.OK)
	assert.Equal(t, "hello over ws", final.Result)

	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

type fakeWSWriter struct {
	messages [][]byte
}

func (f *fakeWSWriter) Write(_ context.Context, _ websocket.MessageType, data []byte) error {
	f.messages = append(f.messages, data)
	return nil
}

func TestStreamTo_EndsWithResult(t *testing.T) {
	l := agentlauncher.New(func(o *agentlauncher.Options) { o.PrimaryProcessor = model.Processor(answer("fin")) })
	t.Cleanup(func() { _ = l.Close(context.Background()) })

	writer := &fakeWSWriter{}
	require.NoError(t, New(l).streamTo(context.Background(), TaskRequest{Task: "t"}, writer))
	require.NotEmpty(t, writer.messages)

	var final TaskResponse
	require.NoError(t, json.Unmarshal(writer.messages[len(writer.messages)-1], &final))
	assert.Equal(t, "fin", final.Result)
}
