package core

// Event names. They double as the last token of bridged subjects.
const (
	TaskCreateEventName = "task-create"
	TaskFinishEventName = "task-finish"
	TaskCancelEventName = "task-cancel"

	AgentCreateEventName                = "agent-create"
	AgentStartEventName                 = "agent-start"
	AgentFinishEventName                = "agent-finish"
	AgentRuntimeErrorEventName          = "agent-runtime-error"
	AgentDeletedEventName               = "agent-deleted"
	AgentConversationProcessedEventName = "agent-conversation-processed"

	LLMRequestEventName      = "llm-request"
	LLMResponseEventName     = "llm-response"
	LLMRuntimeErrorEventName = "llm-runtime-error"

	ToolsExecRequestEventName = "tool-exec-request"
	ToolsExecResultsEventName = "tool-exec-results"
	ToolExecStartEventName    = "tool-exec-start"
	ToolExecFinishEventName   = "tool-exec-finish"
	ToolExecErrorEventName    = "tool-exec-error"
	ToolRuntimeErrorEventName = "tool-runtime-error"

	StopEventName     = "launcher-stop"
	ShutdownEventName = "launcher-shutdown"

	MessagesAddEventName = "message-add"

	MessageStartEventName = "message-stream-start"
	MessageDeltaEventName = "message-stream-delta"
	MessageDoneEventName  = "message-stream-done"
	MessageErrorEventName = "message-stream-error"

	ToolCallNameEventName      = "toolcall-stream-name"
	ToolCallArgsStartEventName = "toolcall-stream-args-start"
	ToolCallArgsDeltaEventName = "toolcall-stream-args-delta"
	ToolCallArgsDoneEventName  = "toolcall-stream-args-done"
	ToolCallArgsErrorEventName = "toolcall-stream-args-error"
)

// Event is the unit of communication between runtimes. Concrete events are
// value structs implementing the unexported isEvent marker, so the set is
// closed. Events must be treated as immutable once emitted.
type Event interface {
	GetAgentID() string
	EventName() string
	isEvent()
}

// TaskCreate submits an external task for a primary agent.
type TaskCreate struct {
	AgentID      string       `json:"agent_id"`
	Task         string       `json:"task"`
	Conversation []Message    `json:"conversation,omitempty"`
	SystemPrompt string       `json:"system_prompt,omitempty"`
	ToolSchemas  []ToolSchema `json:"tool_schemas,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
}

// TaskFinish carries the final result of a task.
type TaskFinish struct {
	AgentID string `json:"agent_id"`
	Result  string `json:"result"`
}

// TaskCancel cancels a task and every agent below it.
type TaskCancel struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason,omitempty"`
}

// AgentCreate asks the agent runtime to construct and start an agent.
type AgentCreate struct {
	AgentID      string       `json:"agent_id"`
	Task         string       `json:"task"`
	Conversation []Message    `json:"conversation,omitempty"`
	SystemPrompt string       `json:"system_prompt,omitempty"`
	ToolSchemas  []ToolSchema `json:"tool_schemas,omitempty"`
}

// AgentStart is emitted when an agent begins its first reasoning cycle.
type AgentStart struct {
	AgentID string `json:"agent_id"`
}

// AgentFinish carries an agent's final textual result.
type AgentFinish struct {
	AgentID string `json:"agent_id"`
	Result  string `json:"result"`
}

// AgentRuntimeError reports a structural fault for an agent.
// Duplicate marks a rejected AgentCreate; the live agent with that id is
// left alone.
type AgentRuntimeError struct {
	AgentID   string `json:"agent_id"`
	Error     string `json:"error"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// AgentDeleted is emitted once per agent removed from the agent table.
type AgentDeleted struct {
	AgentID string `json:"agent_id"`
}

// AgentConversationProcessed records the effect of the conversation processor.
type AgentConversationProcessed struct {
	AgentID   string    `json:"agent_id"`
	Original  []Message `json:"original"`
	Processed []Message `json:"processed"`
}

// LLMRequest asks the LLM runtime to run a processor over a conversation.
type LLMRequest struct {
	AgentID     string       `json:"agent_id"`
	Messages    []Message    `json:"messages"`
	ToolSchemas []ToolSchema `json:"tool_schemas,omitempty"`
	RetryCount  int          `json:"retry_count"`
}

// LLMResponse carries processor output plus the request it answers.
type LLMResponse struct {
	AgentID  string     `json:"agent_id"`
	Response []Message  `json:"response"`
	Request  LLMRequest `json:"request"`
}

// LLMRuntimeError reports a failed processor invocation.
type LLMRuntimeError struct {
	AgentID string     `json:"agent_id"`
	Error   string     `json:"error"`
	Request LLMRequest `json:"request"`
}

// ToolsExecRequest asks the tool runtime to execute a batch of calls.
type ToolsExecRequest struct {
	AgentID   string     `json:"agent_id"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ToolsExecResults carries the successful results of a batch.
type ToolsExecResults struct {
	AgentID     string       `json:"agent_id"`
	ToolResults []ToolResult `json:"tool_results"`
}

// ToolExecStart is emitted before a single tool call runs.
type ToolExecStart struct {
	AgentID    string         `json:"agent_id"`
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments,omitempty"`
}

// ToolExecFinish is emitted after a single tool call succeeded.
type ToolExecFinish struct {
	AgentID    string `json:"agent_id"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Result     string `json:"result"`
}

// ToolExecError is emitted after a single tool call failed.
type ToolExecError struct {
	AgentID    string `json:"agent_id"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Error      string `json:"error"`
}

// ToolRuntimeError reports a batch-level fault such as an unknown tool.
type ToolRuntimeError struct {
	AgentID string `json:"agent_id"`
	Error   string `json:"error"`
}

// Stop notifies that a tracked task stopped (finished or cancelled).
type Stop struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason,omitempty"`
}

// Shutdown notifies that the launcher is shutting down a task.
type Shutdown struct {
	AgentID string `json:"agent_id"`
}

// MessagesAdd is emitted when messages are appended to a task's history.
type MessagesAdd struct {
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id,omitempty"`
	Messages  []Message `json:"messages"`
}

// MessageStart opens a streamed assistant message.
type MessageStart struct {
	AgentID string `json:"agent_id"`
}

// MessageDelta carries a streamed text fragment.
type MessageDelta struct {
	AgentID string `json:"agent_id"`
	Delta   string `json:"delta"`
}

// MessageDone closes a streamed assistant message with its full text.
type MessageDone struct {
	AgentID string `json:"agent_id"`
	Message string `json:"message"`
}

// MessageError reports a failed stream.
type MessageError struct {
	AgentID string `json:"agent_id"`
	Error   string `json:"error,omitempty"`
}

// ToolCallName announces the tool name of a streamed tool call.
type ToolCallName struct {
	AgentID    string `json:"agent_id"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
}

// ToolCallArgsStart opens the argument stream of a tool call.
type ToolCallArgsStart struct {
	AgentID    string `json:"agent_id"`
	ToolCallID string `json:"tool_call_id"`
}

// ToolCallArgsDelta carries a fragment of streamed tool arguments.
type ToolCallArgsDelta struct {
	AgentID        string `json:"agent_id"`
	ToolCallID     string `json:"tool_call_id"`
	ArgumentsDelta string `json:"arguments_delta"`
}

// ToolCallArgsDone carries the complete streamed argument payload.
type ToolCallArgsDone struct {
	AgentID    string `json:"agent_id"`
	ToolCallID string `json:"tool_call_id"`
	Arguments  string `json:"arguments"`
}

// ToolCallArgsError reports unparsable streamed arguments.
type ToolCallArgsError struct {
	AgentID    string `json:"agent_id"`
	ToolCallID string `json:"tool_call_id"`
	Error      string `json:"error,omitempty"`
}

func (e TaskCreate) GetAgentID() string                 { return e.AgentID }
func (e TaskFinish) GetAgentID() string                 { return e.AgentID }
func (e TaskCancel) GetAgentID() string                 { return e.AgentID }
func (e AgentCreate) GetAgentID() string                { return e.AgentID }
func (e AgentStart) GetAgentID() string                 { return e.AgentID }
func (e AgentFinish) GetAgentID() string                { return e.AgentID }
func (e AgentRuntimeError) GetAgentID() string          { return e.AgentID }
func (e AgentDeleted) GetAgentID() string               { return e.AgentID }
func (e AgentConversationProcessed) GetAgentID() string { return e.AgentID }
func (e LLMRequest) GetAgentID() string                 { return e.AgentID }
func (e LLMResponse) GetAgentID() string                { return e.AgentID }
func (e LLMRuntimeError) GetAgentID() string            { return e.AgentID }
func (e ToolsExecRequest) GetAgentID() string           { return e.AgentID }
func (e ToolsExecResults) GetAgentID() string           { return e.AgentID }
func (e ToolExecStart) GetAgentID() string              { return e.AgentID }
func (e ToolExecFinish) GetAgentID() string             { return e.AgentID }
func (e ToolExecError) GetAgentID() string              { return e.AgentID }
func (e ToolRuntimeError) GetAgentID() string           { return e.AgentID }
func (e Stop) GetAgentID() string                       { return e.AgentID }
func (e Shutdown) GetAgentID() string                   { return e.AgentID }
func (e MessagesAdd) GetAgentID() string                { return e.AgentID }
func (e MessageStart) GetAgentID() string               { return e.AgentID }
func (e MessageDelta) GetAgentID() string               { return e.AgentID }
func (e MessageDone) GetAgentID() string                { return e.AgentID }
func (e MessageError) GetAgentID() string               { return e.AgentID }
func (e ToolCallName) GetAgentID() string               { return e.AgentID }
func (e ToolCallArgsStart) GetAgentID() string          { return e.AgentID }
func (e ToolCallArgsDelta) GetAgentID() string          { return e.AgentID }
func (e ToolCallArgsDone) GetAgentID() string           { return e.AgentID }
func (e ToolCallArgsError) GetAgentID() string          { return e.AgentID }

func (TaskCreate) EventName() string                 { return TaskCreateEventName }
func (TaskFinish) EventName() string                 { return TaskFinishEventName }
func (TaskCancel) EventName() string                 { return TaskCancelEventName }
func (AgentCreate) EventName() string                { return AgentCreateEventName }
func (AgentStart) EventName() string                 { return AgentStartEventName }
func (AgentFinish) EventName() string                { return AgentFinishEventName }
func (AgentRuntimeError) EventName() string          { return AgentRuntimeErrorEventName }
func (AgentDeleted) EventName() string               { return AgentDeletedEventName }
func (AgentConversationProcessed) EventName() string { return AgentConversationProcessedEventName }
func (LLMRequest) EventName() string                 { return LLMRequestEventName }
func (LLMResponse) EventName() string                { return LLMResponseEventName }
func (LLMRuntimeError) EventName() string            { return LLMRuntimeErrorEventName }
func (ToolsExecRequest) EventName() string           { return ToolsExecRequestEventName }
func (ToolsExecResults) EventName() string           { return ToolsExecResultsEventName }
func (ToolExecStart) EventName() string              { return ToolExecStartEventName }
func (ToolExecFinish) EventName() string             { return ToolExecFinishEventName }
func (ToolExecError) EventName() string              { return ToolExecErrorEventName }
func (ToolRuntimeError) EventName() string           { return ToolRuntimeErrorEventName }
func (Stop) EventName() string                       { return StopEventName }
func (Shutdown) EventName() string                   { return ShutdownEventName }
func (MessagesAdd) EventName() string                { return MessagesAddEventName }
func (MessageStart) EventName() string               { return MessageStartEventName }
func (MessageDelta) EventName() string               { return MessageDeltaEventName }
func (MessageDone) EventName() string                { return MessageDoneEventName }
func (MessageError) EventName() string               { return MessageErrorEventName }
func (ToolCallName) EventName() string               { return ToolCallNameEventName }
func (ToolCallArgsStart) EventName() string          { return ToolCallArgsStartEventName }
func (ToolCallArgsDelta) EventName() string          { return ToolCallArgsDeltaEventName }
func (ToolCallArgsDone) EventName() string           { return ToolCallArgsDoneEventName }
func (ToolCallArgsError) EventName() string          { return ToolCallArgsErrorEventName }

func (TaskCreate) isEvent()                 {}
func (TaskFinish) isEvent()                 {}
func (TaskCancel) isEvent()                 {}
func (AgentCreate) isEvent()                {}
func (AgentStart) isEvent()                 {}
func (AgentFinish) isEvent()                {}
func (AgentRuntimeError) isEvent()          {}
func (AgentDeleted) isEvent()               {}
func (AgentConversationProcessed) isEvent() {}
func (LLMRequest) isEvent()                 {}
func (LLMResponse) isEvent()                {}
func (LLMRuntimeError) isEvent()            {}
func (ToolsExecRequest) isEvent()           {}
func (ToolsExecResults) isEvent()           {}
func (ToolExecStart) isEvent()              {}
func (ToolExecFinish) isEvent()             {}
func (ToolExecError) isEvent()              {}
func (ToolRuntimeError) isEvent()           {}
func (Stop) isEvent()                       {}
func (Shutdown) isEvent()                   {}
func (MessagesAdd) isEvent()                {}
func (MessageStart) isEvent()               {}
func (MessageDelta) isEvent()               {}
func (MessageDone) isEvent()                {}
func (MessageError) isEvent()               {}
func (ToolCallName) isEvent()               {}
func (ToolCallArgsStart) isEvent()          {}
func (ToolCallArgsDelta) isEvent()          {}
func (ToolCallArgsDone) isEvent()           {}
func (ToolCallArgsError) isEvent()          {}
