package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/internal/util"
)

// SubAgentToolName is the reserved name of the built-in delegation tool.
const SubAgentToolName = "create_sub_agent"

// ErrSubAgentCancelled is returned by create_sub_agent when the child's
// task was cancelled or the launcher shut down before it finished.
var ErrSubAgentCancelled = errors.New("sub-agent cancelled")

func (r *Runtime) subAgentTool() Tool {
	return Tool{
		Name:        SubAgentToolName,
		Description: "Create a sub-agent to handle a specific task. The sub-agent cannot see your conversation, so the task must contain all necessary context.",
		Parameters: []core.ToolParamSchema{
			{
				Name:        "task",
				Type:        "string",
				Description: "Task for the sub-agent to accomplish",
				Required:    true,
			},
			{
				Name:        "tool_names",
				Type:        "array",
				Description: "List of tool names the sub-agent can use",
				Required:    true,
				Items:       map[string]any{"type": "string"},
			},
		},
		Func:          r.runSubAgent,
		InjectContext: true,
	}
}

// runSubAgent launches a child agent below the calling agent and blocks
// until it finishes, its task is cancelled or ctx is done.
func (r *Runtime) runSubAgent(ctx context.Context, args map[string]any) (string, error) {
	tc, ok := core.ToolContextFrom(ctx)
	if !ok {
		return "", errors.New("create_sub_agent requires a tool context")
	}

	task, _ := args["task"].(string)
	var names []string
	if raw, ok := args["tool_names"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
	}

	childID := agentid.Derive(tc.AgentID)
	fut := util.NewFuture[string]()

	r.pendingMu.Lock()
	_, cancelled := r.cancelled[agentid.PrimaryOf(tc.AgentID)]
	if cancelled || r.shutdown {
		r.pendingMu.Unlock()
		r.logger.Debug("tool.subagent.refused", "parent_id", tc.AgentID)
		return "", ErrSubAgentCancelled
	}
	r.pending[childID] = fut
	r.pendingMu.Unlock()

	defer func() {
		r.pendingMu.Lock()
		delete(r.pending, childID)
		r.pendingMu.Unlock()
	}()

	r.logger.Info("tool.subagent.create", "parent_id", tc.AgentID, "agent_id", childID, "tools", names)

	r.bus.Emit(core.AgentCreate{
		AgentID:     childID,
		Task:        task,
		ToolSchemas: r.GetToolSchemas(names),
	})

	result, err := fut.Wait(ctx)
	if err != nil {
		if errors.Is(err, util.ErrFutureCancelled) {
			return "", ErrSubAgentCancelled
		}
		return "", fmt.Errorf("%w: %w", ErrSubAgentCancelled, err)
	}
	return result, nil
}
