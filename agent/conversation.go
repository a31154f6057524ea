package agent

import (
	"context"

	"github.com/hupe1980/agentlauncher/core"
)

// TrimConversation returns a ConversationProcessor keeping a leading system
// message plus roughly the last limit messages. The window is widened
// backwards so it never starts inside a tool call block, keeping every tool
// result next to its call. limit <= 0 disables trimming.
func TrimConversation(limit int) core.ConversationProcessor {
	return func(_ context.Context, msgs []core.Message, _ core.ProcessorContext) ([]core.Message, error) {
		var head []core.Message
		if len(msgs) > 0 {
			if sys, ok := msgs[0].(core.SystemMessage); ok {
				head = []core.Message{sys}
				msgs = msgs[1:]
			}
		}
		if limit <= 0 || len(msgs) <= limit {
			return append(head, msgs...), nil
		}

		start := len(msgs) - limit
	widen:
		for start > 0 {
			switch msgs[start].(type) {
			case core.ToolResultMessage, core.ToolCallMessage:
				start--
			default:
				break widen
			}
		}
		return append(head, msgs[start:]...), nil
	}
}
