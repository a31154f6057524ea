// Package agent implements the agent runtime: the table of live agents and
// the state machine that drives each of them through reasoning cycles.
//
// An agent is created by an AgentCreate event (primary agents via
// TaskCreate, sub-agents via the create_sub_agent tool). From then on the
// runtime reacts to events only:
//
//	AgentCreate       -> AgentStart, LLMRequest
//	LLMResponse       -> AgentFinish            (no tool calls)
//	                  -> ToolsExecRequest       (tool calls)
//	ToolsExecResults  -> LLMRequest
//	AgentFinish       -> AgentDeleted, TaskFinish (primary only)
//	AgentRuntimeError -> AgentDeleted, TaskFinish("Error: ...")
//	                     (not for a rejected duplicate id)
//	TaskCancel        -> AgentDeleted for every agent of the task
//
// Design principles:
//   - One mutex guards the agent table and the cancelled-id set
//   - A per-agent mutex serializes mutations of that agent's conversation
//   - No lock is held while emitting
//   - Events for agents of a cancelled task are dropped silently, including
//     AgentCreate for late sub-agents
//   - The conversation processor shapes the request only; the stored
//     conversation keeps every message
package agent
