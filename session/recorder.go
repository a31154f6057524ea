package session

import (
	"context"
	"sync"

	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/eventbus"
	"github.com/hupe1980/agentlauncher/logging"
)

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Logger logging.Logger
}

// Recorder appends the conversation of session-bound primary agents to a
// store and emits MessagesAdd for every successful append.
type Recorder struct {
	bus    *eventbus.Bus
	store  core.SessionStore
	logger logging.Logger

	mu    sync.Mutex
	bound map[string]string // primary agent id -> session id
}

// NewRecorder subscribes a Recorder for store to bus.
func NewRecorder(bus *eventbus.Bus, store core.SessionStore, optFns ...func(o *RecorderOptions)) *Recorder {
	opts := RecorderOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Recorder{
		bus:    bus,
		store:  store,
		logger: opts.Logger,
		bound:  make(map[string]string),
	}

	eventbus.Subscribe(bus, r.handleTaskCreate)
	eventbus.Subscribe(bus, r.handleLLMResponse)
	eventbus.Subscribe(bus, r.handleToolsExecResults)
	eventbus.Subscribe(bus, r.handleStop)

	return r
}

// SessionOf returns the session bound to a primary agent id.
func (r *Recorder) SessionOf(agentID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bound[agentID]
	return id, ok
}

func (r *Recorder) handleTaskCreate(ctx context.Context, ev core.TaskCreate) error {
	if ev.SessionID == "" {
		return nil
	}
	r.mu.Lock()
	r.bound[ev.AgentID] = ev.SessionID
	r.mu.Unlock()

	r.append(ctx, ev.AgentID, ev.SessionID, core.UserMessage{Content: ev.Task})
	return nil
}

func (r *Recorder) handleLLMResponse(ctx context.Context, ev core.LLMResponse) error {
	sessionID, ok := r.sessionFor(ev.AgentID)
	if !ok {
		return nil
	}
	r.append(ctx, ev.AgentID, sessionID, ev.Response...)
	return nil
}

func (r *Recorder) handleToolsExecResults(ctx context.Context, ev core.ToolsExecResults) error {
	sessionID, ok := r.sessionFor(ev.AgentID)
	if !ok {
		return nil
	}
	msgs := make([]core.Message, 0, len(ev.ToolResults))
	for _, res := range ev.ToolResults {
		msgs = append(msgs, core.ToolResultMessage{
			ToolCallID: res.ToolCallID,
			ToolName:   res.ToolName,
			Result:     res.Result,
		})
	}
	r.append(ctx, ev.AgentID, sessionID, msgs...)
	return nil
}

func (r *Recorder) handleStop(_ context.Context, ev core.Stop) error {
	r.mu.Lock()
	delete(r.bound, ev.AgentID)
	r.mu.Unlock()
	return nil
}

// sessionFor resolves the session of a primary agent. Sub-agent traffic is
// never recorded.
func (r *Recorder) sessionFor(agentID string) (string, bool) {
	if !agentid.IsPrimary(agentID) {
		return "", false
	}
	return r.SessionOf(agentID)
}

func (r *Recorder) append(ctx context.Context, agentID, sessionID string, msgs ...core.Message) {
	if len(msgs) == 0 {
		return
	}
	if err := r.store.Append(ctx, sessionID, msgs...); err != nil {
		r.logger.Error("session.append.failed", "agent_id", agentID, "session_id", sessionID, "error", err.Error())
		return
	}
	r.logger.Debug("session.append", "agent_id", agentID, "session_id", sessionID, "count", len(msgs))
	r.bus.Emit(core.MessagesAdd{AgentID: agentID, SessionID: sessionID, Messages: core.CloneMessages(msgs)})
}
