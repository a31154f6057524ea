package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles used in the JSON encoding of messages.
const (
	RoleUser       = "user"
	RoleSystem     = "system"
	RoleAssistant  = "assistant"
	RoleToolCall   = "tool_call"
	RoleToolResult = "tool_result"
)

// Message is one entry of an agent conversation. Concrete message types
// implement the unexported isMessage marker enabling a closed set.
type Message interface {
	Role() string
	isMessage()
}

// UserMessage is text authored by the caller (or by a parent agent for a sub-agent).
type UserMessage struct {
	Content string `json:"content"`
}

// SystemMessage carries the agent's system prompt.
type SystemMessage struct {
	Content string `json:"content"`
}

// AssistantMessage is plain text produced by a processor.
type AssistantMessage struct {
	Content string `json:"content"`
}

// ToolCallMessage is a processor's request to invoke a tool.
type ToolCallMessage struct {
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments"`
}

// ToolResultMessage carries the string result of a tool call back to the processor.
type ToolResultMessage struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Result     string `json:"result"`
}

func (UserMessage) Role() string       { return RoleUser }
func (SystemMessage) Role() string     { return RoleSystem }
func (AssistantMessage) Role() string  { return RoleAssistant }
func (ToolCallMessage) Role() string   { return RoleToolCall }
func (ToolResultMessage) Role() string { return RoleToolResult }

func (UserMessage) isMessage()       {}
func (SystemMessage) isMessage()     {}
func (AssistantMessage) isMessage()  {}
func (ToolCallMessage) isMessage()   {}
func (ToolResultMessage) isMessage() {}

// MarshalJSON adds the role discriminator.
func (m UserMessage) MarshalJSON() ([]byte, error) {
	type alias UserMessage
	return marshalWithRole(m.Role(), alias(m))
}

// MarshalJSON adds the role discriminator.
func (m SystemMessage) MarshalJSON() ([]byte, error) {
	type alias SystemMessage
	return marshalWithRole(m.Role(), alias(m))
}

// MarshalJSON adds the role discriminator.
func (m AssistantMessage) MarshalJSON() ([]byte, error) {
	type alias AssistantMessage
	return marshalWithRole(m.Role(), alias(m))
}

// MarshalJSON adds the role discriminator.
func (m ToolCallMessage) MarshalJSON() ([]byte, error) {
	type alias ToolCallMessage
	return marshalWithRole(m.Role(), alias(m))
}

// MarshalJSON adds the role discriminator.
func (m ToolResultMessage) MarshalJSON() ([]byte, error) {
	type alias ToolResultMessage
	return marshalWithRole(m.Role(), alias(m))
}

func marshalWithRole(role string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["role"], _ = json.Marshal(role)
	return json.Marshal(fields)
}

// UnmarshalMessage decodes a single role-tagged message.
func UnmarshalMessage(data []byte) (Message, error) {
	var head struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	var (
		msg Message
		err error
	)
	switch head.Role {
	case RoleUser:
		var m UserMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case RoleSystem:
		var m SystemMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case RoleAssistant:
		var m AssistantMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case RoleToolCall:
		var m ToolCallMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case RoleToolResult:
		var m ToolResultMessage
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("unknown message role %q", head.Role)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// UnmarshalMessages decodes a JSON array of role-tagged messages.
func UnmarshalMessages(data []byte) ([]Message, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(raws))
	for i, raw := range raws {
		m, err := UnmarshalMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// AssistantText joins the contents of all assistant messages with "\n".
// It returns "" when there are none.
func AssistantText(msgs []Message) string {
	var parts []string
	for _, m := range msgs {
		if am, ok := m.(AssistantMessage); ok {
			parts = append(parts, am.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolCalls extracts the tool call records from msgs in order.
func ToolCalls(msgs []Message) []ToolCall {
	var calls []ToolCall
	for _, m := range msgs {
		if tc, ok := m.(ToolCallMessage); ok {
			calls = append(calls, ToolCall{
				ToolCallID: tc.ToolCallID,
				ToolName:   tc.ToolName,
				Arguments:  tc.Arguments,
			})
		}
	}
	return calls
}

// CloneMessages returns a shallow copy of msgs safe for appending.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
