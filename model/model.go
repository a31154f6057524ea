package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentlauncher/core"
)

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
	Streaming     bool   `json:"streaming"`
}

// Model is the minimal interface every provider adapter implements. Process
// has the core.Processor signature so a model can be installed directly in
// a processor slot.
type Model interface {
	Process(ctx context.Context, messages []core.Message, tools []core.ToolSchema, pctx core.ProcessorContext) ([]core.Message, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Processor adapts m to a core.Processor.
func Processor(m Model) core.Processor {
	return m.Process
}

// ParseArguments decodes the JSON argument string of a tool call. An empty
// string yields an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("parse tool arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// FormatArguments encodes tool call arguments as a JSON object string.
func FormatArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// SplitSystem separates system messages from the rest of the conversation.
// System contents are joined with a blank line.
func SplitSystem(msgs []core.Message) (string, []core.Message) {
	var system []string
	rest := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		if sm, ok := m.(core.SystemMessage); ok {
			if sm.Content != "" {
				system = append(system, sm.Content)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// LastUserContent returns the content of the most recent user message.
func LastUserContent(msgs []core.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if um, ok := msgs[i].(core.UserMessage); ok {
			return um.Content
		}
	}
	return ""
}
