// Package engine implements the launcher kernel of agentlauncher.
//
// The Engine is the synchronous edge of an otherwise event-driven system.
// Run turns a task string into a TaskCreate event for a fresh primary agent
// id and blocks on a single-assignment future until the matching TaskFinish
// arrives, the run times out, or the task is cancelled.
//
// # Core Responsibilities
//
// Pending Tasks:
//   - One future per primary agent id, resolved exactly once
//   - Stop{Reason: "finished"} only for the TaskFinish that resolved it
//   - Entries and hooks are released when Run returns
//
// Cancellation:
//   - Cancel(id, reason) cancels the future and emits TaskCancel and Stop
//   - Timeouts and context cancellation call Cancel with "timeout" or "cancelled"
//   - Shutdown cancels every pending task and emits Shutdown per task
//
// History:
//   - WithHistory prepends prior messages to the task
//   - WithSessionID loads stored messages through core.SessionStore
//
// # Event Flow
//
//	Run ──TaskCreate──▶ agent runtime ──...──▶ TaskFinish ──▶ handleTaskFinish
//	                                                            │
//	                                          future.Resolve ◀──┘──▶ Stop
//
// # Usage
//
//	bus := eventbus.New()
//	tools := tool.NewRuntime(bus)
//	eng := engine.New(bus, func(o *engine.Options) { o.Tools = tools })
//
//	result, ok := eng.Run(ctx, "Summarize the agenda", engine.WithTimeout(time.Minute))
//
// Most applications use the root agentlauncher package, which wires the
// engine together with the agent, LLM and tool runtimes.
package engine
