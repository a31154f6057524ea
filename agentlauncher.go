// Package agentlauncher provides a high-level façade over the event bus and
// the runtimes that together execute hierarchical agent tasks. Most
// applications interact with this package by:
//  1. Creating a Launcher via New() (optionally overriding defaults)
//  2. Registering tools and installing a processor (the reasoning backend)
//  3. Running tasks with Run, observing them with Subscribe or a per-run hook
//
// The façade delegates orchestration to engine.Engine and the agent, LLM
// and tool runtimes while keeping setup and usage ergonomics concise. All
// defaults are safe for local development and testing; production
// deployments typically supply a durable session store and a structured
// logger.
package agentlauncher

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/agentlauncher/agent"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/engine"
	"github.com/hupe1980/agentlauncher/eventbus"
	"github.com/hupe1980/agentlauncher/llm"
	"github.com/hupe1980/agentlauncher/logging"
	"github.com/hupe1980/agentlauncher/session"
	"github.com/hupe1980/agentlauncher/tool"
)

// Options configures the Launcher instance.
type Options struct {
	// Logger (defaults to NoOp logger)
	Logger logging.Logger
	// Verbosity gates logging of every emitted event.
	Verbosity eventbus.Verbosity

	// Processors for primary agents and sub-agents. The sub-agent slot
	// falls back to the primary one.
	PrimaryProcessor  core.Processor
	SubAgentProcessor core.Processor
	// ConversationProcessor runs before every reasoning cycle.
	ConversationProcessor core.ConversationProcessor

	// SystemPrompt is the default system prompt of primary agents.
	SystemPrompt string
	// MaxRetries bounds processor retries (default llm.DefaultMaxRetries).
	MaxRetries int
	// MaxParallelTools bounds concurrent tool calls per batch (0 = unbounded).
	MaxParallelTools int
	// DisableSubAgentTool skips registering create_sub_agent.
	DisableSubAgentTool bool
	// DefaultTimeout applies to runs without their own timeout (0 = none).
	DefaultTimeout time.Duration

	// SessionStore (defaults to in-memory implementation) holds the
	// conversation of runs started WithSessionID.
	SessionStore core.SessionStore
}

// RunOptions configures a single Run call.
type RunOptions = engine.RunOptions

// WithHistory prepends prior conversation messages to the task.
func WithHistory(msgs ...core.Message) func(o *RunOptions) { return engine.WithHistory(msgs...) }

// WithTimeout bounds the run.
func WithTimeout(d time.Duration) func(o *RunOptions) { return engine.WithTimeout(d) }

// WithHook observes every event of the run, sub-agents included.
func WithHook(h core.Hook) func(o *RunOptions) { return engine.WithHook(h) }

// WithSystemPrompt overrides the primary agent's system prompt.
func WithSystemPrompt(prompt string) func(o *RunOptions) { return engine.WithSystemPrompt(prompt) }

// WithSessionID loads and records the run's conversation under id.
func WithSessionID(id string) func(o *RunOptions) { return engine.WithSessionID(id) }

// Launcher is the high-level façade aggregating the bus, the runtimes and
// the engine.
type Launcher struct {
	opts     Options
	bus      *eventbus.Bus
	agents   *agent.Runtime
	llm      *llm.Runtime
	tools    *tool.Runtime
	engine   *engine.Engine
	sessions core.SessionStore
}

// New creates a new Launcher with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Launcher {
	opts := Options{
		Logger:       logging.NoOpLogger{},
		Verbosity:    eventbus.Silent,
		SystemPrompt: agent.DefaultPrimarySystemPrompt,
		MaxRetries:   llm.DefaultMaxRetries,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	bus := eventbus.New(func(o *eventbus.Options) {
		o.Logger = opts.Logger
		o.Verbosity = opts.Verbosity
	})

	agents := agent.NewRuntime(bus, func(o *agent.Options) {
		o.Logger = opts.Logger
		o.PrimarySystemPrompt = opts.SystemPrompt
		o.ConversationProcessor = opts.ConversationProcessor
	})

	llmRuntime := llm.NewRuntime(bus, func(o *llm.Options) {
		o.Logger = opts.Logger
		o.MaxRetries = opts.MaxRetries
	})
	llmRuntime.SetPrimaryProcessor(opts.PrimaryProcessor)
	llmRuntime.SetSubAgentProcessor(opts.SubAgentProcessor)

	tools := tool.NewRuntime(bus, func(o *tool.Options) {
		o.Logger = opts.Logger
		o.MaxParallel = opts.MaxParallelTools
		o.DisableSubAgentTool = opts.DisableSubAgentTool
	})

	session.NewRecorder(bus, opts.SessionStore, func(o *session.RecorderOptions) {
		o.Logger = opts.Logger
	})

	eng := engine.New(bus, func(o *engine.Options) {
		o.Logger = opts.Logger
		o.SessionStore = opts.SessionStore
		o.Tools = tools
		o.DefaultTimeout = opts.DefaultTimeout
	})

	return &Launcher{
		opts:     opts,
		bus:      bus,
		agents:   agents,
		llm:      llmRuntime,
		tools:    tools,
		engine:   eng,
		sessions: opts.SessionStore,
	}
}

// Run executes task on a fresh primary agent and blocks until it finishes.
// It returns ("", false) on timeout or cancellation.
func (l *Launcher) Run(ctx context.Context, task string, optFns ...func(o *RunOptions)) (string, bool) {
	return l.engine.Run(ctx, task, optFns...)
}

// Cancel aborts the task with the given primary agent id.
func (l *Launcher) Cancel(agentID, reason string) bool {
	return l.engine.Cancel(agentID, reason)
}

// Shutdown cancels every running task.
func (l *Launcher) Shutdown() { l.engine.Shutdown() }

// Close shuts down all tasks, drains the bus until ctx is done and closes
// the session store.
func (l *Launcher) Close(ctx context.Context) error {
	l.Shutdown()
	return errors.Join(l.bus.Close(ctx), l.sessions.Close())
}

// RegisterTool adds t to the tool catalog.
func (l *Launcher) RegisterTool(t tool.Tool) error { return l.tools.Register(t) }

// RegisterTools adds every tool, stopping at the first error.
func (l *Launcher) RegisterTools(tools ...tool.Tool) error {
	for _, t := range tools {
		if err := l.tools.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// SetPrimaryProcessor installs the processor for primary agents.
func (l *Launcher) SetPrimaryProcessor(p core.Processor) { l.llm.SetPrimaryProcessor(p) }

// SetSubAgentProcessor installs the processor for sub-agents.
func (l *Launcher) SetSubAgentProcessor(p core.Processor) { l.llm.SetSubAgentProcessor(p) }

// SetConversationProcessor installs the conversation processor.
func (l *Launcher) SetConversationProcessor(p core.ConversationProcessor) {
	l.agents.SetConversationProcessor(p)
}

// Subscribe registers h for every event of type T emitted by l.
func Subscribe[T core.Event](l *Launcher, h func(ctx context.Context, ev T) error) {
	eventbus.Subscribe(l.bus, h)
}

// SubscribeAny registers h for every event emitted by l.
func (l *Launcher) SubscribeAny(h func(ctx context.Context, ev core.Event) error) {
	eventbus.SubscribeAny(l.bus, h)
}

// Bus returns the underlying event bus.
func (l *Launcher) Bus() *eventbus.Bus { return l.bus }

// Tools returns the tool runtime.
func (l *Launcher) Tools() *tool.Runtime { return l.tools }

// Agents returns the agent runtime.
func (l *Launcher) Agents() *agent.Runtime { return l.agents }

// Sessions returns the session store.
func (l *Launcher) Sessions() core.SessionStore { return l.sessions }
