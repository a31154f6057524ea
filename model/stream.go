package model

import (
	"sort"
	"strings"

	"github.com/hupe1980/agentlauncher/core"
)

// StreamEmitter publishes streaming events for one processor call. All
// methods are no-ops when the processor context carries no bus.
type StreamEmitter struct {
	agentID string
	bus     core.Emitter
}

// NewStreamEmitter returns an emitter for pctx.
func NewStreamEmitter(pctx core.ProcessorContext) *StreamEmitter {
	return &StreamEmitter{agentID: pctx.AgentID, bus: pctx.Bus}
}

func (s *StreamEmitter) emit(ev core.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(ev)
}

func (s *StreamEmitter) MessageStart() { s.emit(core.MessageStart{AgentID: s.agentID}) }

func (s *StreamEmitter) MessageDelta(delta string) {
	s.emit(core.MessageDelta{AgentID: s.agentID, Delta: delta})
}

func (s *StreamEmitter) MessageDone(message string) {
	s.emit(core.MessageDone{AgentID: s.agentID, Message: message})
}

func (s *StreamEmitter) MessageError(err error) {
	s.emit(core.MessageError{AgentID: s.agentID, Error: err.Error()})
}

func (s *StreamEmitter) ToolCallName(id, name string) {
	s.emit(core.ToolCallName{AgentID: s.agentID, ToolCallID: id, ToolName: name})
}

func (s *StreamEmitter) ToolCallArgsStart(id string) {
	s.emit(core.ToolCallArgsStart{AgentID: s.agentID, ToolCallID: id})
}

func (s *StreamEmitter) ToolCallArgsDelta(id, delta string) {
	s.emit(core.ToolCallArgsDelta{AgentID: s.agentID, ToolCallID: id, ArgumentsDelta: delta})
}

func (s *StreamEmitter) ToolCallArgsDone(id, args string) {
	s.emit(core.ToolCallArgsDone{AgentID: s.agentID, ToolCallID: id, Arguments: args})
}

func (s *StreamEmitter) ToolCallArgsError(id string, err error) {
	s.emit(core.ToolCallArgsError{AgentID: s.agentID, ToolCallID: id, Error: err.Error()})
}

// EmitMessage publishes a complete message as a stream of one delta.
func (s *StreamEmitter) EmitMessage(content string) {
	s.MessageStart()
	if content != "" {
		s.MessageDelta(content)
	}
	s.MessageDone(content)
}

// EmitToolCall publishes a complete tool call as name, start, one delta and done.
func (s *StreamEmitter) EmitToolCall(tc core.ToolCallMessage) {
	args := FormatArguments(tc.Arguments)
	s.ToolCallName(tc.ToolCallID, tc.ToolName)
	s.ToolCallArgsStart(tc.ToolCallID)
	s.ToolCallArgsDelta(tc.ToolCallID, args)
	s.ToolCallArgsDone(tc.ToolCallID, args)
}

// EmitResponse streams every assistant and tool-call message of a response.
func (s *StreamEmitter) EmitResponse(msgs []core.Message) {
	for _, m := range msgs {
		switch msg := m.(type) {
		case core.AssistantMessage:
			s.EmitMessage(msg.Content)
		case core.ToolCallMessage:
			s.EmitToolCall(msg)
		}
	}
}

type aggCall struct {
	id, name string
	args     strings.Builder
	started  bool
}

// ToolCallAccumulator aggregates partial tool call deltas keyed by the
// provider's stream index and publishes the matching streaming events.
type ToolCallAccumulator struct {
	stream *StreamEmitter
	calls  map[int64]*aggCall
}

// NewToolCallAccumulator returns an accumulator publishing through stream.
// stream may be nil.
func NewToolCallAccumulator(stream *StreamEmitter) *ToolCallAccumulator {
	return &ToolCallAccumulator{stream: stream, calls: map[int64]*aggCall{}}
}

// Add merges one delta. id and name are usually present on the first delta
// of an index only.
func (a *ToolCallAccumulator) Add(index int64, id, name, argsDelta string) {
	ac, ok := a.calls[index]
	if !ok {
		ac = &aggCall{}
		a.calls[index] = ac
	}
	if id != "" {
		ac.id = id
	}
	if name != "" && ac.name == "" {
		ac.name = name
		if a.stream != nil {
			a.stream.ToolCallName(ac.id, ac.name)
		}
	}
	if argsDelta == "" {
		return
	}
	if !ac.started {
		ac.started = true
		if a.stream != nil {
			a.stream.ToolCallArgsStart(ac.id)
		}
	}
	ac.args.WriteString(argsDelta)
	if a.stream != nil {
		a.stream.ToolCallArgsDelta(ac.id, argsDelta)
	}
}

// Len returns the number of tool calls seen so far.
func (a *ToolCallAccumulator) Len() int { return len(a.calls) }

// Messages finalizes the accumulated calls in index order. A call whose
// arguments do not parse emits ToolCallArgsError and is returned with empty
// arguments so the tool layer can report the validation failure.
func (a *ToolCallAccumulator) Messages() []core.Message {
	indexes := make([]int64, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	out := make([]core.Message, 0, len(indexes))
	for _, idx := range indexes {
		ac := a.calls[idx]
		raw := ac.args.String()
		args, err := ParseArguments(raw)
		if err != nil {
			if a.stream != nil {
				a.stream.ToolCallArgsError(ac.id, err)
			}
			args = map[string]any{}
		} else if a.stream != nil {
			a.stream.ToolCallArgsDone(ac.id, raw)
		}
		out = append(out, core.ToolCallMessage{ToolCallID: ac.id, ToolName: ac.name, Arguments: args})
	}
	return out
}
