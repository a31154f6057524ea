package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/eventbus"
	"github.com/hupe1980/agentlauncher/internal/util"
	"github.com/hupe1980/agentlauncher/logging"
)

// Runtime error messages.
const (
	ErrMsgAgentExists   = "agent with this id already exists"
	ErrMsgAgentNotFound = "agent not found"
)

// Options configures a Runtime.
type Options struct {
	Logger logging.Logger
	// PrimarySystemPrompt is used for TaskCreate events without a system
	// prompt. Defaults to DefaultPrimarySystemPrompt.
	PrimarySystemPrompt string
	// ConversationProcessor runs before every reasoning cycle.
	ConversationProcessor core.ConversationProcessor
}

// Runtime owns the agent table.
type Runtime struct {
	bus           *eventbus.Bus
	logger        logging.Logger
	primaryPrompt string

	mu        sync.Mutex
	agents    map[string]*Agent
	cancelled map[string]struct{}

	procMu   sync.RWMutex
	convProc core.ConversationProcessor
}

// NewRuntime creates a Runtime and subscribes it to bus.
func NewRuntime(bus *eventbus.Bus, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Logger:              logging.NoOpLogger{},
		PrimarySystemPrompt: DefaultPrimarySystemPrompt,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Runtime{
		bus:           bus,
		logger:        opts.Logger,
		primaryPrompt: opts.PrimarySystemPrompt,
		agents:        make(map[string]*Agent),
		cancelled:     make(map[string]struct{}),
		convProc:      opts.ConversationProcessor,
	}

	eventbus.Subscribe(bus, r.handleTaskCreate)
	eventbus.Subscribe(bus, r.handleAgentCreate)
	eventbus.Subscribe(bus, r.handleLLMResponse)
	eventbus.Subscribe(bus, r.handleToolsExecResults)
	eventbus.Subscribe(bus, r.handleAgentFinish)
	eventbus.Subscribe(bus, r.handleAgentRuntimeError)
	eventbus.Subscribe(bus, r.handleTaskCancel)
	eventbus.Subscribe(bus, r.handleShutdown)

	return r
}

// SetConversationProcessor replaces the conversation processor. nil disables it.
func (r *Runtime) SetConversationProcessor(p core.ConversationProcessor) {
	r.procMu.Lock()
	defer r.procMu.Unlock()
	r.convProc = p
}

func (r *Runtime) conversationProcessor() core.ConversationProcessor {
	r.procMu.RLock()
	defer r.procMu.RUnlock()
	return r.convProc
}

// Agent returns a snapshot of the live agent with the given id.
func (r *Runtime) Agent(id string) (Snapshot, bool) {
	a, ok := r.lookup(id)
	if !ok {
		return Snapshot{}, false
	}
	return a.Snapshot(), true
}

// Len returns the number of live agents.
func (r *Runtime) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents)
}

// IsCancelled reports whether id belongs to the cancelled-id set.
func (r *Runtime) IsCancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancelled[id]
	return ok
}

func (r *Runtime) lookup(id string) (*Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	return a, ok
}

func (r *Runtime) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id]; !ok {
		return false
	}
	delete(r.agents, id)
	return true
}

// missing handles an event for an agent that is not in the table.
func (r *Runtime) missing(id, event string) {
	if r.IsCancelled(id) {
		r.logger.Debug("agent.event.dropped", "agent_id", id, "event", event)
		return
	}
	r.logger.Warn("agent.not_found", "agent_id", id, "event", event)
	r.bus.Emit(core.AgentRuntimeError{AgentID: id, Error: ErrMsgAgentNotFound})
}

func (r *Runtime) handleTaskCreate(_ context.Context, ev core.TaskCreate) error {
	prompt := ev.SystemPrompt
	if prompt == "" {
		prompt = r.primaryPrompt
	}
	r.bus.Emit(core.AgentCreate{
		AgentID:      ev.AgentID,
		Task:         ev.Task,
		Conversation: core.CloneMessages(ev.Conversation),
		SystemPrompt: prompt,
		ToolSchemas:  ev.ToolSchemas,
	})
	return nil
}

func (r *Runtime) handleAgentCreate(ctx context.Context, ev core.AgentCreate) error {
	prompt, err := renderSystemPrompt(ev.SystemPrompt, ev.AgentID, ev.ToolSchemas)
	if err != nil {
		r.logger.Warn("agent.prompt.render_failed", "agent_id", ev.AgentID, "error", err.Error())
		prompt = ev.SystemPrompt
	}

	a := &Agent{
		ID:           ev.AgentID,
		Task:         ev.Task,
		SystemPrompt: prompt,
		ToolSchemas:  ev.ToolSchemas,
		conversation: core.CloneMessages(ev.Conversation),
	}

	r.mu.Lock()
	if _, cancelled := r.cancelled[agentid.PrimaryOf(ev.AgentID)]; cancelled {
		r.cancelled[ev.AgentID] = struct{}{}
		r.mu.Unlock()
		r.logger.Debug("agent.event.dropped", "agent_id", ev.AgentID, "event", ev.EventName())
		return nil
	}
	if _, exists := r.agents[ev.AgentID]; exists {
		r.mu.Unlock()
		r.logger.Warn("agent.duplicate", "agent_id", ev.AgentID)
		r.bus.Emit(core.AgentRuntimeError{AgentID: ev.AgentID, Error: ErrMsgAgentExists, Duplicate: true})
		return nil
	}
	r.agents[ev.AgentID] = a
	r.mu.Unlock()

	r.logger.Info("agent.created",
		"agent_id", a.ID,
		"depth", agentid.Parse(a.ID).Depth(),
		"tools", len(a.ToolSchemas),
	)

	r.bus.Emit(core.AgentStart{AgentID: a.ID})

	a.mu.Lock()
	a.conversation = append(a.conversation, core.UserMessage{Content: a.Task})
	msgs, processed, err := r.prepare(ctx, a)
	a.mu.Unlock()

	r.request(a, msgs, processed, err)
	return nil
}

func (r *Runtime) handleLLMResponse(_ context.Context, ev core.LLMResponse) error {
	a, ok := r.lookup(ev.AgentID)
	if !ok {
		r.missing(ev.AgentID, ev.EventName())
		return nil
	}

	a.mu.Lock()
	a.conversation = append(a.conversation, ev.Response...)
	a.mu.Unlock()

	calls := core.ToolCalls(ev.Response)
	if len(calls) == 0 {
		r.bus.Emit(core.AgentFinish{AgentID: a.ID, Result: core.AssistantText(ev.Response)})
		return nil
	}

	r.logger.Debug("agent.tools.requested", "agent_id", a.ID, "count", len(calls))
	r.bus.Emit(core.ToolsExecRequest{AgentID: a.ID, ToolCalls: calls})
	return nil
}

func (r *Runtime) handleToolsExecResults(ctx context.Context, ev core.ToolsExecResults) error {
	a, ok := r.lookup(ev.AgentID)
	if !ok {
		r.missing(ev.AgentID, ev.EventName())
		return nil
	}

	a.mu.Lock()
	for _, res := range ev.ToolResults {
		a.conversation = append(a.conversation, core.ToolResultMessage{
			ToolCallID: res.ToolCallID,
			ToolName:   res.ToolName,
			Result:     res.Result,
		})
	}
	msgs, processed, err := r.prepare(ctx, a)
	a.mu.Unlock()

	r.request(a, msgs, processed, err)
	return nil
}

// prepare builds the request messages, passing [System?] + conversation
// through the conversation processor when one is set. The stored
// conversation is never rewritten. Callers hold a.mu.
func (r *Runtime) prepare(ctx context.Context, a *Agent) ([]core.Message, *core.AgentConversationProcessed, error) {
	msgs := a.messages()
	proc := r.conversationProcessor()
	if proc == nil {
		return msgs, nil, nil
	}

	var processed []core.Message
	err := util.SafeCall(func() error {
		var procErr error
		processed, procErr = proc(ctx, core.CloneMessages(msgs), core.ProcessorContext{AgentID: a.ID, Bus: r.bus})
		return procErr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("conversation processor: %w", err)
	}

	return core.CloneMessages(processed), &core.AgentConversationProcessed{
		AgentID:   a.ID,
		Original:  msgs,
		Processed: core.CloneMessages(processed),
	}, nil
}

// request emits the outcome of prepare.
func (r *Runtime) request(a *Agent, msgs []core.Message, processed *core.AgentConversationProcessed, err error) {
	if err != nil {
		r.logger.Error("agent.conversation.failed", "agent_id", a.ID, "error", err.Error())
		r.bus.Emit(core.AgentRuntimeError{AgentID: a.ID, Error: err.Error()})
		return
	}
	if processed != nil {
		r.bus.Emit(*processed)
	}
	r.bus.Emit(core.LLMRequest{
		AgentID:     a.ID,
		Messages:    msgs,
		ToolSchemas: a.ToolSchemas,
		RetryCount:  0,
	})
}

func (r *Runtime) handleAgentFinish(_ context.Context, ev core.AgentFinish) error {
	if r.remove(ev.AgentID) {
		r.logger.Info("agent.finished", "agent_id", ev.AgentID)
		r.bus.Emit(core.AgentDeleted{AgentID: ev.AgentID})
	}
	if agentid.IsPrimary(ev.AgentID) {
		r.bus.Emit(core.TaskFinish{AgentID: ev.AgentID, Result: ev.Result})
	}
	return nil
}

func (r *Runtime) handleAgentRuntimeError(_ context.Context, ev core.AgentRuntimeError) error {
	if ev.Duplicate {
		return nil
	}
	r.logger.Error("agent.runtime_error", "agent_id", ev.AgentID, "error", ev.Error)
	if r.remove(ev.AgentID) {
		r.bus.Emit(core.AgentDeleted{AgentID: ev.AgentID})
	}
	r.bus.Emit(core.TaskFinish{AgentID: ev.AgentID, Result: "Error: " + ev.Error})
	return nil
}

func (r *Runtime) handleTaskCancel(_ context.Context, ev core.TaskCancel) error {
	primary := agentid.PrimaryOf(ev.AgentID)

	r.mu.Lock()
	var removed []string
	for id := range r.agents {
		if agentid.PrimaryOf(id) == primary {
			delete(r.agents, id)
			r.cancelled[id] = struct{}{}
			removed = append(removed, id)
		}
	}
	r.cancelled[primary] = struct{}{}
	r.mu.Unlock()

	r.logger.Info("agent.task.cancelled", "agent_id", primary, "removed", len(removed), "reason", ev.Reason)
	for _, id := range removed {
		r.bus.Emit(core.AgentDeleted{AgentID: id})
	}
	return nil
}

// handleShutdown removes every agent. Removed ids join the cancelled set so
// responses still in flight are dropped.
func (r *Runtime) handleShutdown(_ context.Context, _ core.Shutdown) error {
	r.mu.Lock()
	removed := make([]string, 0, len(r.agents))
	for id := range r.agents {
		delete(r.agents, id)
		r.cancelled[id] = struct{}{}
		removed = append(removed, id)
	}
	r.mu.Unlock()

	for _, id := range removed {
		r.bus.Emit(core.AgentDeleted{AgentID: id})
	}
	return nil
}
