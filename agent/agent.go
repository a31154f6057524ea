package agent

import (
	"sync"

	"github.com/hupe1980/agentlauncher/core"
)

// Agent is one live reasoning unit.
type Agent struct {
	ID           string
	Task         string
	SystemPrompt string
	ToolSchemas  []core.ToolSchema

	mu           sync.Mutex
	conversation []core.Message
}

// Snapshot is a copy of an agent's state.
type Snapshot struct {
	ID           string
	Task         string
	SystemPrompt string
	ToolSchemas  []core.ToolSchema
	Conversation []core.Message
}

// Snapshot copies the agent's current state.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		ID:           a.ID,
		Task:         a.Task,
		SystemPrompt: a.SystemPrompt,
		ToolSchemas:  append([]core.ToolSchema(nil), a.ToolSchemas...),
		Conversation: core.CloneMessages(a.conversation),
	}
}

// messages returns [System?] + conversation. Callers hold a.mu.
func (a *Agent) messages() []core.Message {
	out := make([]core.Message, 0, len(a.conversation)+1)
	if a.SystemPrompt != "" {
		out = append(out, core.SystemMessage{Content: a.SystemPrompt})
	}
	return append(out, a.conversation...)
}
