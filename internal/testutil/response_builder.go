package testutil

import (
	"fmt"

	"github.com/hupe1980/agentlauncher/core"
)

// ResponseBuilder provides a fluent helper for constructing processor
// responses in tests.
// Example:
//
//	resp := NewResponse().Text("let me check").ToolCall("get_weather", map[string]any{"location": "Paris"}).Build()
//
// Tool call ids default to call-1, call-2, ... in insertion order.
type ResponseBuilder struct {
	msgs  []core.Message
	calls int
}

// NewResponse creates an empty builder.
func NewResponse() *ResponseBuilder { return &ResponseBuilder{} }

// Text appends an assistant message (chainable).
func (b *ResponseBuilder) Text(s string) *ResponseBuilder {
	b.msgs = append(b.msgs, core.AssistantMessage{Content: s})
	return b
}

// ToolCall appends a tool call message with a generated id (chainable).
func (b *ResponseBuilder) ToolCall(name string, args map[string]any) *ResponseBuilder {
	b.calls++
	return b.ToolCallWithID(fmt.Sprintf("call-%d", b.calls), name, args)
}

// ToolCallWithID appends a tool call message with an explicit id (chainable).
func (b *ResponseBuilder) ToolCallWithID(id, name string, args map[string]any) *ResponseBuilder {
	if args == nil {
		args = map[string]any{}
	}
	b.msgs = append(b.msgs, core.ToolCallMessage{ToolCallID: id, ToolName: name, Arguments: args})
	return b
}

// Build returns the accumulated messages.
func (b *ResponseBuilder) Build() []core.Message {
	out := make([]core.Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}
