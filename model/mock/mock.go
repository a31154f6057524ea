// Package mock provides deterministic processors for tests, examples and the
// CLI's offline "mock" provider.
//
// A Processor either replays scripted response turns in order (NewScripted),
// delegates to a function (NewFunc), or plays demo scenarios chosen from the
// tools it is offered (NewScenario). Every call is recorded and can be
// inspected with Calls.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/model"
)

// ConcludedMessage is returned once a scripted processor ran out of turns.
const ConcludedMessage = "Mock conversation already concluded. Let me know if you need to start over."

// Call records one processor invocation.
type Call struct {
	AgentID  string
	Messages []core.Message
	Tools    []core.ToolSchema
}

// RespondFunc computes the response for one call.
type RespondFunc func(ctx context.Context, call Call) ([]core.Message, error)

// Options configures a Processor.
type Options struct {
	// Name is reported by Info. Defaults to "mock".
	Name string
	// Stream publishes each response as streaming events.
	Stream bool
	// Delay is slept (honouring ctx) before responding.
	Delay time.Duration
}

// Processor is a scripted model.Model.
type Processor struct {
	opts    Options
	respond RespondFunc

	mu    sync.Mutex
	calls []Call
}

// NewFunc returns a Processor delegating to fn.
func NewFunc(fn RespondFunc, optFns ...func(o *Options)) *Processor {
	opts := Options{Name: "mock"}
	for _, f := range optFns {
		f(&opts)
	}
	return &Processor{opts: opts, respond: fn}
}

// NewScripted returns a Processor replaying turns in order, one per call
// and shared across agents. Once exhausted it answers with ConcludedMessage.
func NewScripted(turns [][]core.Message, optFns ...func(o *Options)) *Processor {
	var (
		mu   sync.Mutex
		next int
	)
	return NewFunc(func(context.Context, Call) ([]core.Message, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(turns) {
			return []core.Message{core.AssistantMessage{Content: ConcludedMessage}}, nil
		}
		turn := core.CloneMessages(turns[next])
		next++
		return turn, nil
	}, optFns...)
}

// Process implements core.Processor.
func (p *Processor) Process(
	ctx context.Context,
	messages []core.Message,
	tools []core.ToolSchema,
	pctx core.ProcessorContext,
) ([]core.Message, error) {
	call := Call{
		AgentID:  pctx.AgentID,
		Messages: core.CloneMessages(messages),
		Tools:    append([]core.ToolSchema(nil), tools...),
	}

	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()

	if p.opts.Delay > 0 {
		timer := time.NewTimer(p.opts.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	out, err := p.respond(ctx, call)
	if err != nil {
		if p.opts.Stream {
			model.NewStreamEmitter(pctx).MessageError(err)
		}
		return nil, err
	}
	if p.opts.Stream {
		model.NewStreamEmitter(pctx).EmitResponse(out)
	}
	return out, nil
}

// Calls returns the recorded invocations in call order.
func (p *Processor) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// Info implements model.Model.
func (p *Processor) Info() model.Info {
	return model.Info{
		Name:          p.opts.Name,
		Provider:      "mock",
		SupportsTools: true,
		Streaming:     p.opts.Stream,
	}
}

var _ model.Model = (*Processor)(nil)
