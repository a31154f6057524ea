package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/eventbus"
	"github.com/hupe1980/agentlauncher/internal/util"
	"github.com/hupe1980/agentlauncher/logging"
)

// Stop reasons emitted by the engine.
const (
	ReasonFinished  = "finished"
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
	ReasonShutdown  = "shutdown"
)

// ToolCatalog supplies the tool schemas handed to every new task.
//
// The tool runtime satisfies this interface. A nil catalog starts tasks
// without tools.
type ToolCatalog interface {
	Schemas() []core.ToolSchema
}

// Options configures an Engine instance using the functional options pattern.
//
// Every field is optional:
//   - Logger defaults to logging.NoOpLogger
//   - SessionStore is nil, which disables history loading for WithSessionID
//   - Tools is nil, which starts tasks with an empty tool catalog
//   - DefaultTimeout of zero means runs wait until finished or cancelled
//
// Example:
//
//	eng := engine.New(bus, func(o *engine.Options) {
//	    o.Tools = toolRuntime
//	    o.SessionStore = session.NewInMemoryStore()
//	    o.DefaultTimeout = 2 * time.Minute
//	})
type Options struct {
	// Logger provides structured logging for debugging and monitoring.
	Logger logging.Logger

	// SessionStore loads prior conversation history for runs bound to a
	// session id.
	SessionStore core.SessionStore

	// Tools is the catalog snapshot attached to each TaskCreate.
	Tools ToolCatalog

	// DefaultTimeout applies to runs that do not set their own timeout.
	DefaultTimeout time.Duration
}

// RunOptions configures a single Run call.
type RunOptions struct {
	// History is prepended to the task as prior conversation. When a session
	// is loaded its messages come first.
	History []core.Message

	// Timeout bounds the run. Zero falls back to Options.DefaultTimeout.
	Timeout time.Duration

	// Hook receives every event of the task, including sub-agent events.
	Hook core.Hook

	// SystemPrompt overrides the primary agent's system prompt.
	SystemPrompt string

	// SessionID binds the run to a stored conversation.
	SessionID string
}

// WithHistory sets RunOptions.History.
func WithHistory(msgs ...core.Message) func(o *RunOptions) {
	return func(o *RunOptions) { o.History = append(o.History, msgs...) }
}

// WithTimeout sets RunOptions.Timeout.
func WithTimeout(d time.Duration) func(o *RunOptions) {
	return func(o *RunOptions) { o.Timeout = d }
}

// WithHook sets RunOptions.Hook.
func WithHook(h core.Hook) func(o *RunOptions) {
	return func(o *RunOptions) { o.Hook = h }
}

// WithSystemPrompt sets RunOptions.SystemPrompt.
func WithSystemPrompt(prompt string) func(o *RunOptions) {
	return func(o *RunOptions) { o.SystemPrompt = prompt }
}

// WithSessionID sets RunOptions.SessionID.
func WithSessionID(id string) func(o *RunOptions) {
	return func(o *RunOptions) { o.SessionID = id }
}

// pendingTask is the bookkeeping entry of one running task.
type pendingTask struct {
	future  *util.Future[string]
	hooked  bool
	started time.Time
}

// Engine is the launcher kernel. It turns a task string into a primary
// agent, waits for the task to finish and enforces timeouts and
// cancellation at the Run boundary.
//
// Core Responsibilities:
//   - Pending Tasks: one single-assignment future per running primary agent
//   - Hooks: per-task event observers registered on the bus for the run
//   - History: optional session history loaded before the task starts
//   - Cancellation: Cancel and Shutdown cascade through bus events
//
// Concurrency Model:
//   - The pending-task table is guarded by its own mutex
//   - No lock is held while emitting events or waiting on a future
//   - Run blocks the caller only; every runtime reacts on its own goroutines
//
// Event Flow:
//  1. Run emits TaskCreate for a fresh primary id
//  2. The agent, LLM and tool runtimes drive the task
//  3. TaskFinish resolves the pending future and the engine emits Stop
//  4. Run removes the pending entry and the hook and returns the result
//
// Example Usage:
//
//	eng := engine.New(bus, func(o *engine.Options) { o.Tools = tools })
//
//	result, ok := eng.Run(ctx, "What is the weather in Oslo?",
//	    engine.WithTimeout(30*time.Second))
//	if !ok {
//	    return errors.New("task timed out or was cancelled")
//	}
type Engine struct {
	bus            *eventbus.Bus
	logger         logging.Logger
	sessions       core.SessionStore
	tools          ToolCatalog
	defaultTimeout time.Duration

	// Pending task tracking - protected by its own mutex
	pending   map[string]*pendingTask
	pendingMu sync.Mutex
}

// New creates an Engine on bus and subscribes it to TaskFinish.
//
// The engine does not take ownership of the bus or the session store.
// Callers remain responsible for closing them.
func New(bus *eventbus.Bus, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Engine{
		bus:            bus,
		logger:         opts.Logger,
		sessions:       opts.SessionStore,
		tools:          opts.Tools,
		defaultTimeout: opts.DefaultTimeout,
		pending:        make(map[string]*pendingTask),
	}

	eventbus.Subscribe(bus, e.handleTaskFinish)

	return e
}

// Run starts a primary agent for task and blocks until it finishes.
//
// Parameters:
//   - ctx: cancelling ctx cancels the task
//   - task: the user's request, appended to the history as a user message
//   - optFns: per-run options (history, timeout, hook, system prompt, session)
//
// Returns the final result and true when the task finished. On timeout,
// context cancellation, Cancel or Shutdown it returns ("", false). A task
// that failed inside the runtimes still finishes; its result then starts
// with "Error: " or "Runtime error: ".
//
// Example:
//
//	result, ok := eng.Run(ctx, "Plan a meetup",
//	    engine.WithSessionID("team-42"),
//	    engine.WithHook(func(_ context.Context, ev core.Event) error {
//	        log.Println(ev.EventName())
//	        return nil
//	    }))
func (e *Engine) Run(ctx context.Context, task string, optFns ...func(o *RunOptions)) (string, bool) {
	ro := RunOptions{Timeout: e.defaultTimeout}
	for _, fn := range optFns {
		fn(&ro)
	}

	id := agentid.New()
	pt := &pendingTask{
		future:  util.NewFuture[string](),
		hooked:  ro.Hook != nil,
		started: time.Now(),
	}

	e.pendingMu.Lock()
	e.pending[id] = pt
	e.pendingMu.Unlock()

	if pt.hooked {
		e.bus.AddHook(id, ro.Hook)
	}

	defer e.release(id, pt)

	waitCtx := ctx
	if ro.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, ro.Timeout)
		defer cancel()
	}

	history := e.loadHistory(waitCtx, id, ro.SessionID)
	history = append(history, core.CloneMessages(ro.History)...)

	var schemas []core.ToolSchema
	if e.tools != nil {
		schemas = e.tools.Schemas()
	}

	e.logger.Info("engine.task.start",
		"agent_id", id,
		"session_id", ro.SessionID,
		"history", len(history),
		"tools", len(schemas),
		"timeout", ro.Timeout.String(),
	)

	e.bus.Emit(core.TaskCreate{
		AgentID:      id,
		Task:         task,
		Conversation: history,
		SystemPrompt: ro.SystemPrompt,
		ToolSchemas:  schemas,
		SessionID:    ro.SessionID,
	})

	result, err := pt.future.Wait(waitCtx)
	if err == nil {
		e.logger.Info("engine.task.finished", "agent_id", id, "duration", time.Since(pt.started).String())
		return result, true
	}

	if errors.Is(err, util.ErrFutureCancelled) {
		e.logger.Info("engine.task.cancelled", "agent_id", id)
		return "", false
	}

	reason := ReasonCancelled
	if errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	e.logger.Warn("engine.task.aborted", "agent_id", id, "reason", reason)
	e.Cancel(id, reason)

	return "", false
}

// loadHistory returns the stored conversation of sessionID. Load errors are
// logged and the task starts without history.
func (e *Engine) loadHistory(ctx context.Context, id, sessionID string) []core.Message {
	if sessionID == "" || e.sessions == nil {
		return nil
	}
	msgs, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		e.logger.Warn("engine.session.load_failed", "agent_id", id, "session_id", sessionID, "error", err.Error())
		return nil
	}
	return msgs
}

func (e *Engine) release(id string, pt *pendingTask) {
	e.pendingMu.Lock()
	if e.pending[id] == pt {
		delete(e.pending, id)
	}
	e.pendingMu.Unlock()

	if pt.hooked {
		e.bus.RemoveHook(id)
	}
}

// Cancel aborts the task with the given primary id.
//
// The pending future (if any) is cancelled so Run returns ("", false), and
// TaskCancel is emitted so every runtime drops the task's agents and pending
// sub-agent waits. Stop is emitted only when the id was still tracked.
// Cancel reports whether the id was tracked.
//
// Calling Cancel for an unknown or already finished id is safe.
func (e *Engine) Cancel(id, reason string) bool {
	if reason == "" {
		reason = ReasonCancelled
	}

	e.pendingMu.Lock()
	pt, tracked := e.pending[id]
	e.pendingMu.Unlock()

	if tracked {
		pt.future.Cancel()
	}

	e.logger.Info("engine.task.cancel", "agent_id", id, "reason", reason, "tracked", tracked)
	e.bus.Emit(core.TaskCancel{AgentID: id, Reason: reason})

	if tracked {
		e.bus.Emit(core.Stop{AgentID: id, Reason: reason})
	}
	return tracked
}

// Shutdown cancels every pending task with ReasonShutdown, so each gets its
// TaskCancel and Stop, then emits one Shutdown event per task. Blocked Run
// calls return ("", false).
func (e *Engine) Shutdown() {
	ids := e.Pending()
	e.logger.Info("engine.shutdown", "pending", len(ids))
	for _, id := range ids {
		e.Cancel(id, ReasonShutdown)
	}
	for _, id := range ids {
		e.bus.Emit(core.Shutdown{AgentID: id})
	}
}

// Pending returns the ids of the tasks currently running.
func (e *Engine) Pending() []string {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	ids := make([]string, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	return ids
}

// handleTaskFinish resolves the pending future of a primary task. Only the
// first TaskFinish for an id wins; Stop is emitted for that one only.
func (e *Engine) handleTaskFinish(_ context.Context, ev core.TaskFinish) error {
	e.pendingMu.Lock()
	pt, ok := e.pending[ev.AgentID]
	e.pendingMu.Unlock()

	if !ok {
		return nil
	}
	if !pt.future.Resolve(ev.Result) {
		return nil
	}

	e.bus.Emit(core.Stop{AgentID: ev.AgentID, Reason: ReasonFinished})
	return nil
}
