package agent

import (
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/internal/util"
)

// DefaultSystemPrompt is used for agents created without a system prompt.
const DefaultSystemPrompt = "You are a helpful assistant."

// DefaultPrimarySystemPrompt is used for primary agents when the task does
// not carry its own system prompt. It nudges the model towards delegating
// small self-contained subtasks to sub-agents.
const DefaultPrimarySystemPrompt = `You are a helpful AI assistant with access to various tools.
Always explain your reasoning and provide clear, organized results.
For simple tasks, for example in ~ 5 steps with 1 - 3 tools,
you always create sub-agents to handle them to save time and resources.
You can create no more than 2 sub-agents at the same time.
If sub-agents can be run in parallel, do so to improve efficiency.
Remember that your sub-agents cannot see your task or conversation history,
so you must provide all necessary information and context when creating them.
`

// renderSystemPrompt executes prompt as a template with agent_id and
// tool_names available.
func renderSystemPrompt(prompt, agentID string, tools []core.ToolSchema) (string, error) {
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return util.RenderTemplate(prompt, map[string]any{
		"agent_id":   agentID,
		"tool_names": names,
	})
}
