package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/internal/util"
)

// executeBatch runs calls concurrently, bounded by maxParallel, and returns
// the results of the successful calls in request order. Failed calls are
// dropped; their failure is visible as a ToolExecError event.
func (r *Runtime) executeBatch(ctx context.Context, agentID string, calls []core.ToolCall, tools []Tool) []core.ToolResult {
	n := len(calls)
	results := make([]core.ToolResult, 0, n)
	if n == 0 {
		return results
	}

	maxPar := r.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	type outcome struct {
		result core.ToolResult
		ok     bool
	}
	outcomes := make([]outcome, n)

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call core.ToolCall, t Tool) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := r.execute(ctx, agentID, call, t)
			if err != nil {
				return
			}
			outcomes[idx] = outcome{
				result: core.ToolResult{ToolCallID: call.ToolCallID, ToolName: call.ToolName, Result: res},
				ok:     true,
			}
		}(i, calls[i], tools[i])
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.ok {
			results = append(results, o.result)
		}
	}

	r.logger.Debug(
		"tool.batch.complete",
		"agent_id", agentID,
		"count", n,
		"succeeded", len(results),
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return results
}

func (r *Runtime) execute(ctx context.Context, agentID string, call core.ToolCall, t Tool) (string, error) {
	r.bus.Emit(core.ToolExecStart{
		AgentID:    agentID,
		ToolCallID: call.ToolCallID,
		ToolName:   call.ToolName,
		Arguments:  call.Arguments,
	})

	callCtx := ctx
	if t.InjectContext {
		callCtx = core.WithToolContext(ctx, core.ToolContext{
			AgentID:    agentID,
			ToolCallID: call.ToolCallID,
			Bus:        r.bus,
		})
	}

	r.logger.Debug("tool.call.start", "agent_id", agentID, "tool_name", call.ToolName, "tool_call_id", call.ToolCallID)

	start := time.Now()
	var result string
	err := util.SafeCall(func() error {
		var callErr error
		result, callErr = t.Call(callCtx, call.Arguments)
		return callErr
	})

	var perr *util.PanicError
	if errors.As(err, &perr) {
		r.logger.Error("tool.call.panic", "agent_id", agentID, "tool_name", call.ToolName, "recover", fmt.Sprint(perr.Value))
		err = &ToolError{Tool: t.Name, Message: perr.Error(), Code: CodeExecution, Err: perr}
	}

	r.logger.Info(
		"tool.call.executed",
		"agent_id", agentID,
		"tool_name", call.ToolName,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		r.bus.Emit(core.ToolExecError{
			AgentID:    agentID,
			ToolCallID: call.ToolCallID,
			ToolName:   call.ToolName,
			Error:      err.Error(),
		})
		return "", err
	}

	r.bus.Emit(core.ToolExecFinish{
		AgentID:    agentID,
		ToolCallID: call.ToolCallID,
		ToolName:   call.ToolName,
		Result:     result,
	})
	return result, nil
}
