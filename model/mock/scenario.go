package mock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/model"
)

// scenario builds the response turns of one mock conversation.
type scenario struct {
	requires []string
	build    func(s *scenarioPlayer, topic string) [][]core.Message
}

var scenarios = []scenario{
	{
		requires: []string{"find_dates", "suggest_speakers", "draft_agenda", "list_platforms", "estimate_budget", "draft_email"},
		build:    (*scenarioPlayer).conference,
	},
	{requires: []string{"get_weather", "convert_temperature"}, build: (*scenarioPlayer).weather},
	{requires: []string{"search_web", "text_analysis", "generate_random_number"}, build: (*scenarioPlayer).research},
	{requires: []string{"calculate"}, build: (*scenarioPlayer).calculation},
}

// scenarioPlayer keeps one running scenario per agent.
type scenarioPlayer struct {
	rng   *rand.Rand
	rngMu sync.Mutex
	seq   atomic.Int64

	mu       sync.Mutex
	sessions map[string][][]core.Message
	tools    map[string]core.ToolSchema
}

// NewScenario returns a Processor that plays a demo conversation per agent.
// The scenario is picked from those whose tools are all offered; without a
// match it calls a random offered tool once, or answers in plain text when
// no tools are offered. seed makes the choice reproducible.
func NewScenario(seed uint64, optFns ...func(o *Options)) *Processor {
	p := &scenarioPlayer{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		sessions: make(map[string][][]core.Message),
	}
	return NewFunc(p.respond, optFns...)
}

func (p *scenarioPlayer) intN(n int) int {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.IntN(n)
}

func (p *scenarioPlayer) respond(_ context.Context, call Call) ([]core.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	turns, ok := p.sessions[call.AgentID]
	if !ok || len(turns) == 0 {
		topic := model.LastUserContent(call.Messages)
		if topic == "" {
			topic = "your request"
		}
		turns = p.choose(call.Tools, topic)
	}

	next := turns[0]
	if rest := turns[1:]; len(rest) > 0 {
		p.sessions[call.AgentID] = rest
	} else {
		delete(p.sessions, call.AgentID)
	}
	return next, nil
}

func (p *scenarioPlayer) choose(tools []core.ToolSchema, topic string) [][]core.Message {
	p.tools = make(map[string]core.ToolSchema, len(tools))
	for _, t := range tools {
		p.tools[t.Name] = t
	}

	var candidates []scenario
	for _, sc := range scenarios {
		if p.offers(sc.requires...) {
			candidates = append(candidates, sc)
		}
	}
	if len(candidates) > 0 {
		return candidates[p.intN(len(candidates))].build(p, topic)
	}
	return p.generic(tools, topic)
}

func (p *scenarioPlayer) offers(names ...string) bool {
	for _, n := range names {
		if _, ok := p.tools[n]; !ok {
			return false
		}
	}
	return true
}

func (p *scenarioPlayer) call(name string, args map[string]any) core.ToolCallMessage {
	return core.ToolCallMessage{
		ToolCallID: fmt.Sprintf("mock-tool-%d", p.seq.Add(1)),
		ToolName:   name,
		Arguments:  args,
	}
}

func text(s string) core.AssistantMessage { return core.AssistantMessage{Content: s} }

func truncate(topic string, limit int) string {
	topic = strings.TrimSpace(topic)
	if len(topic) <= limit {
		return topic
	}
	return topic[:limit-3] + "..."
}

func (p *scenarioPlayer) conference(topic string) [][]core.Message {
	month := fmt.Sprintf("2025-%02d", p.intN(12)+1)
	speakers := p.intN(2) + 2
	marketing := []int{1200, 1500, 1800}[p.intN(3)]
	sessions := p.intN(3) + 4
	platform := []string{"Zoom", "Microsoft Teams", "Hopin"}[p.intN(3)]

	return [][]core.Message{
		{p.call("find_dates", map[string]any{"month": month})},
		{p.call("suggest_speakers", map[string]any{"topic": topic})},
		{
			p.call("draft_agenda", map[string]any{"sessions": sessions}),
			p.call("list_platforms", map[string]any{}),
		},
		{p.call("estimate_budget", map[string]any{"speakers": speakers, "platform": platform, "marketing": marketing})},
		{p.call("draft_email", map[string]any{"event_name": truncate(topic, 20) + " Summit"})},
		{text(fmt.Sprintf("Conference plan ready! I've scheduled tentative dates in %s, requested speaker suggestions, "+
			"drafted an agenda with %d sessions, and estimated costs using %s. Check the tool results for details.",
			month, sessions, platform))},
	}
}

func (p *scenarioPlayer) weather(topic string) [][]core.Message {
	location := []string{"Seattle", "Austin", "Berlin", "Tokyo"}[p.intN(4)]
	if i := strings.LastIndex(topic, " in "); i >= 0 {
		location = strings.TrimSpace(strings.TrimRight(topic[i+4:], "?!."))
	}
	fahrenheit := float64(p.intN(31) + 60)

	return [][]core.Message{
		{p.call("get_weather", map[string]any{"location": location})},
		{
			p.call("convert_temperature", map[string]any{"fahrenheit": fahrenheit}),
			text("Converting that forecast into Celsius for clarity."),
		},
		{text(fmt.Sprintf("Here's the weather outlook for %s. I've also provided the Celsius conversion "+
			"so you can compare easily.", location))},
	}
}

func (p *scenarioPlayer) research(topic string) [][]core.Message {
	return [][]core.Message{
		{p.call("search_web", map[string]any{"query": "Key facts about " + topic})},
		{p.call("text_analysis", map[string]any{"text": "Summary request: " + topic})},
		{p.call("generate_random_number", map[string]any{"min": 100, "max": 999})},
		{text("Research complete. I gathered highlights, analyzed the text, and tagged the findings " +
			"with a reference code from the random number generator.")},
	}
}

func (p *scenarioPlayer) calculation(string) [][]core.Message {
	a, b, c := p.intN(8)+2, p.intN(8)+2, p.intN(5)+1
	return [][]core.Message{
		{p.call("calculate", map[string]any{"a": a, "b": b, "c": c})},
		{text(fmt.Sprintf("The calculation %d * %d + %d is complete. Check the tool result for the numeric value, "+
			"and let me know if you'd like me to apply it elsewhere.", a, b, c))},
	}
}

func (p *scenarioPlayer) generic(tools []core.ToolSchema, topic string) [][]core.Message {
	if len(tools) > 0 {
		tool := tools[p.intN(len(tools))]
		return [][]core.Message{
			{p.call(tool.Name, p.mockArguments(tool))},
			{text(fmt.Sprintf("I invoked %s using mock inputs to progress on %s. Review the tool output for details.",
				tool.Name, topic))},
		}
	}
	return [][]core.Message{
		{text(fmt.Sprintf("Starting a mock reasoning pass about %s. I'll keep this conversation short and sweet.", topic))},
		{text("All set! Nothing else is required on my side, but feel free to ask for another mock run.")},
	}
}

func (p *scenarioPlayer) mockArguments(tool core.ToolSchema) map[string]any {
	args := make(map[string]any, len(tool.Parameters))
	for _, param := range tool.Parameters {
		switch param.Type {
		case "integer", "number":
			args[param.Name] = p.intN(100) + 1
		case "boolean":
			args[param.Name] = p.intN(2) == 1
		case "array":
			args[param.Name] = []any{"mock-item-for-" + param.Name}
		case "object":
			args[param.Name] = map[string]any{"example": "mock-" + param.Name + "-value"}
		default:
			args[param.Name] = "mock-" + param.Name
		}
	}
	return args
}
