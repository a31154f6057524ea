package core

import "context"

// Emitter is the publishing half of the event bus. It is declared here so
// that processors and tools can emit events without importing the bus.
type Emitter interface {
	Emit(ev Event)
}

// ProcessorContext identifies the agent a processor is reasoning for and
// exposes the bus for streaming events.
type ProcessorContext struct {
	AgentID string
	Bus     Emitter
}

// Processor is a reasoning backend. Given the conversation and the tool
// catalog available to the agent it returns the next response messages.
// Implementations must be safe for concurrent use and may be called more
// than once for the same request (retries).
type Processor func(ctx context.Context, messages []Message, tools []ToolSchema, pctx ProcessorContext) ([]Message, error)

// ConversationProcessor rewrites a conversation before each reasoning cycle
// (trimming, summarisation, redaction). The returned slice becomes the
// agent's conversation.
type ConversationProcessor func(ctx context.Context, messages []Message, pctx ProcessorContext) ([]Message, error)

// Hook observes every event of one task. Errors are logged and swallowed.
type Hook func(ctx context.Context, ev Event) error

// ToolContext is made available to tools registered with context injection.
type ToolContext struct {
	AgentID    string
	ToolCallID string
	Bus        Emitter
}

type toolContextKey struct{}

// WithToolContext returns a copy of ctx carrying tc.
func WithToolContext(ctx context.Context, tc ToolContext) context.Context {
	return context.WithValue(ctx, toolContextKey{}, tc)
}

// ToolContextFrom extracts the ToolContext injected for the current call.
func ToolContextFrom(ctx context.Context) (ToolContext, bool) {
	tc, ok := ctx.Value(toolContextKey{}).(ToolContext)
	return tc, ok
}

// SessionStore persists conversation history by session id.
type SessionStore interface {
	// Load returns the stored messages of a session in append order. An
	// unknown session yields an empty slice.
	Load(ctx context.Context, sessionID string) ([]Message, error)
	// Append adds messages to the end of a session.
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	Close() error
}
