// Package llm implements the LLM-request runtime. It turns LLMRequest events
// into processor invocations and answers with LLMResponse, retrying failed
// invocations a bounded number of times before falling back to a terminal
// assistant message.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/eventbus"
	"github.com/hupe1980/agentlauncher/internal/util"
	"github.com/hupe1980/agentlauncher/logging"
)

// DefaultMaxRetries is the number of re-dispatches after a failed invocation.
const DefaultMaxRetries = 5

// ErrNoProcessor is reported when no processor is configured for an agent.
var ErrNoProcessor = errors.New("no processor configured")

// Options configures a Runtime.
type Options struct {
	Logger     logging.Logger
	MaxRetries int
}

// Runtime holds the primary and sub-agent processor slots.
type Runtime struct {
	bus        *eventbus.Bus
	logger     logging.Logger
	maxRetries int

	mu      sync.RWMutex
	primary core.Processor
	sub     core.Processor
}

// NewRuntime creates a Runtime and subscribes it to bus.
func NewRuntime(bus *eventbus.Bus, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Logger:     logging.NoOpLogger{},
		MaxRetries: DefaultMaxRetries,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	r := &Runtime{
		bus:        bus,
		logger:     opts.Logger,
		maxRetries: opts.MaxRetries,
	}

	eventbus.Subscribe(bus, r.handleLLMRequest)
	eventbus.Subscribe(bus, r.handleLLMRuntimeError)

	return r
}

// SetPrimaryProcessor sets the processor used for primary agents.
func (r *Runtime) SetPrimaryProcessor(p core.Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = p
}

// SetSubAgentProcessor sets the processor used for sub-agents. Without one,
// sub-agents use the primary processor.
func (r *Runtime) SetSubAgentProcessor(p core.Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sub = p
}

// processorFor selects the slot for agentID.
func (r *Runtime) processorFor(agentID string) core.Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !agentid.IsPrimary(agentID) && r.sub != nil {
		return r.sub
	}
	return r.primary
}

func (r *Runtime) handleLLMRequest(ctx context.Context, ev core.LLMRequest) error {
	proc := r.processorFor(ev.AgentID)
	if proc == nil {
		r.bus.Emit(core.LLMRuntimeError{
			AgentID: ev.AgentID,
			Error:   ErrNoProcessor.Error(),
			Request: ev,
		})
		return nil
	}

	start := time.Now()
	var resp []core.Message
	err := util.SafeCall(func() error {
		var procErr error
		resp, procErr = proc(ctx, core.CloneMessages(ev.Messages), ev.ToolSchemas, core.ProcessorContext{
			AgentID: ev.AgentID,
			Bus:     r.bus,
		})
		return procErr
	})

	if err != nil {
		r.logger.Warn("llm.request.failed",
			"agent_id", ev.AgentID,
			"retry_count", ev.RetryCount,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		r.bus.Emit(core.LLMRuntimeError{AgentID: ev.AgentID, Error: err.Error(), Request: ev})
		return nil
	}

	r.logger.Debug("llm.request.completed",
		"agent_id", ev.AgentID,
		"messages", len(resp),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	r.bus.Emit(core.LLMResponse{AgentID: ev.AgentID, Response: resp, Request: ev})
	return nil
}

// handleLLMRuntimeError re-dispatches the failed request immediately while
// the retry budget lasts, then answers with a terminal assistant message so
// the agent can finish.
func (r *Runtime) handleLLMRuntimeError(_ context.Context, ev core.LLMRuntimeError) error {
	if ev.Request.RetryCount < r.maxRetries {
		retry := ev.Request
		retry.RetryCount++
		r.logger.Info("llm.request.retry", "agent_id", ev.AgentID, "retry_count", retry.RetryCount, "error", ev.Error)
		r.bus.Emit(retry)
		return nil
	}

	r.logger.Error("llm.request.exhausted", "agent_id", ev.AgentID, "retries", ev.Request.RetryCount, "error", ev.Error)
	r.bus.Emit(core.LLMResponse{
		AgentID:  ev.AgentID,
		Response: []core.Message{core.AssistantMessage{Content: fmt.Sprintf("Runtime error: %s", ev.Error)}},
		Request:  ev.Request,
	})
	return nil
}
