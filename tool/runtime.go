package tool

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/eventbus"
	"github.com/hupe1980/agentlauncher/internal/util"
	"github.com/hupe1980/agentlauncher/logging"
)

var (
	// ErrDuplicateTool is returned by Register when the name is taken.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrInvalidTool is returned by Register for a tool without name or function.
	ErrInvalidTool = errors.New("invalid tool")
)

// Options configures a Runtime.
type Options struct {
	Logger logging.Logger
	// MaxParallel bounds concurrent calls within one batch. 0 means unbounded.
	MaxParallel int
	// DisableSubAgentTool skips registering create_sub_agent.
	DisableSubAgentTool bool
}

// Runtime owns the tool catalog and the pending sub-agent waits.
type Runtime struct {
	bus         *eventbus.Bus
	logger      logging.Logger
	maxParallel int

	mu    sync.RWMutex
	order []string
	tools map[string]Tool

	pendingMu sync.Mutex
	pending   map[string]*util.Future[string]
	cancelled map[string]struct{} // primary ids
	shutdown  bool
}

// NewRuntime creates a Runtime and subscribes it to bus.
func NewRuntime(bus *eventbus.Bus, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Runtime{
		bus:         bus,
		logger:      opts.Logger,
		maxParallel: opts.MaxParallel,
		tools:       make(map[string]Tool),
		pending:     make(map[string]*util.Future[string]),
		cancelled:   make(map[string]struct{}),
	}

	if !opts.DisableSubAgentTool {
		_ = r.Register(r.subAgentTool())
	}

	eventbus.Subscribe(bus, r.handleToolsExecRequest)
	eventbus.Subscribe(bus, r.handleToolRuntimeError)
	eventbus.Subscribe(bus, r.handleAgentFinish)
	eventbus.Subscribe(bus, r.handleTaskFinish)
	eventbus.Subscribe(bus, r.handleTaskCancel)
	eventbus.Subscribe(bus, r.handleShutdown)

	return r
}

// Register adds t to the catalog.
func (r *Runtime) Register(t Tool) error {
	if t.Name == "" || t.Func == nil {
		return fmt.Errorf("%w: name and function are required", ErrInvalidTool)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get returns the tool registered under name.
func (r *Runtime) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Runtime) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Schemas returns the whole catalog in registration order.
func (r *Runtime) Schemas() []core.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema())
	}
	return out
}

// GetToolSchemas returns the catalog entries named in names, in catalog
// order. Unknown names are ignored.
func (r *Runtime) GetToolSchemas(names []string) []core.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.ToolSchema, 0, len(names))
	for _, name := range r.order {
		if slices.Contains(names, name) {
			out = append(out, r.tools[name].Schema())
		}
	}
	return out
}

// PendingSubAgents returns the number of sub-agent calls currently waiting.
func (r *Runtime) PendingSubAgents() int {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	return len(r.pending)
}

func (r *Runtime) handleToolsExecRequest(ctx context.Context, ev core.ToolsExecRequest) error {
	tools := make([]Tool, len(ev.ToolCalls))
	var missing []string

	r.mu.RLock()
	for i, call := range ev.ToolCalls {
		t, ok := r.tools[call.ToolName]
		if !ok {
			missing = append(missing, call.ToolName)
			continue
		}
		tools[i] = t
	}
	r.mu.RUnlock()

	if len(missing) > 0 {
		r.logger.Warn("tool.batch.missing", "agent_id", ev.AgentID, "tools", missing)
		r.bus.Emit(core.ToolRuntimeError{
			AgentID: ev.AgentID,
			Error:   fmt.Sprintf("tools not found: %s", strings.Join(missing, ", ")),
		})
		return nil
	}

	results := r.executeBatch(ctx, ev.AgentID, ev.ToolCalls, tools)
	r.bus.Emit(core.ToolsExecResults{AgentID: ev.AgentID, ToolResults: results})
	return nil
}

// handleToolRuntimeError keeps the agent loop alive: the agent receives an
// empty result batch and asks the processor again.
func (r *Runtime) handleToolRuntimeError(_ context.Context, ev core.ToolRuntimeError) error {
	if ev.AgentID == "" {
		return nil
	}
	r.bus.Emit(core.ToolsExecResults{AgentID: ev.AgentID, ToolResults: []core.ToolResult{}})
	return nil
}

func (r *Runtime) handleAgentFinish(_ context.Context, ev core.AgentFinish) error {
	r.resolveSubAgent(ev.AgentID, ev.Result)
	return nil
}

// handleTaskFinish resolves sub-agents that ended through a runtime error;
// those never emit AgentFinish.
func (r *Runtime) handleTaskFinish(_ context.Context, ev core.TaskFinish) error {
	if agentid.IsPrimary(ev.AgentID) {
		return nil
	}
	r.resolveSubAgent(ev.AgentID, ev.Result)
	return nil
}

func (r *Runtime) handleTaskCancel(_ context.Context, ev core.TaskCancel) error {
	primary := agentid.PrimaryOf(ev.AgentID)
	r.pendingMu.Lock()
	r.cancelled[primary] = struct{}{}
	r.pendingMu.Unlock()
	for _, fut := range r.pendingWhere(func(id string) bool { return agentid.PrimaryOf(id) == primary }) {
		fut.Cancel()
	}
	return nil
}

func (r *Runtime) handleShutdown(_ context.Context, _ core.Shutdown) error {
	r.pendingMu.Lock()
	r.shutdown = true
	r.pendingMu.Unlock()
	for _, fut := range r.pendingWhere(func(string) bool { return true }) {
		fut.Cancel()
	}
	return nil
}

func (r *Runtime) resolveSubAgent(id, result string) {
	r.pendingMu.Lock()
	fut, ok := r.pending[id]
	r.pendingMu.Unlock()
	if ok && fut.Resolve(result) {
		r.logger.Debug("tool.subagent.resolved", "agent_id", id)
	}
}

func (r *Runtime) pendingWhere(match func(id string) bool) []*util.Future[string] {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	var out []*util.Future[string]
	for id, fut := range r.pending {
		if match(id) {
			out = append(out, fut)
		}
	}
	return out
}
