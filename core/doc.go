// Package core provides the shared domain types of agentlauncher:
//
//   - Messages (the closed set of conversation entries)
//   - Events (immutable records exchanged over the event bus)
//   - Tool schemas, calls and results
//   - Processor, ConversationProcessor and Hook contracts
//   - The SessionStore contract for conversation history
//   - The JSON envelope used when events leave the process
//
// The package holds no behaviour beyond encoding helpers. Runtimes live in
// the eventbus, agent, tool, llm and engine packages.
package core
