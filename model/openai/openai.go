// Package openai provides a processor backed by the OpenAI Chat Completions
// API (including streaming + function/tool calling). It adapts the
// launcher's message list into the SDK's message format and back.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/model"
)

// Options configure the OpenAI model adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// Stream switches to the streaming API and publishes streaming events
	// through the processor context's bus.
	Stream bool
	// APIKey and BaseURL override the client's environment defaults.
	APIKey  string
	BaseURL string
}

// Model wraps the OpenAI Chat Completions API behind model.Model.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Process implements core.Processor.
func (m *Model) Process(
	ctx context.Context,
	messages []core.Message,
	tools []core.ToolSchema,
	pctx core.ProcessorContext,
) ([]core.Message, error) {
	params := m.buildParams(messages, tools)
	if m.opts.Stream {
		return m.processStreaming(ctx, params, model.NewStreamEmitter(pctx))
	}
	return m.processNonStreaming(ctx, params)
}

// buildMessages converts the conversation into OpenAI chat messages.
// Consecutive tool calls are grouped into one assistant message so the
// following tool results line up with it.
func buildMessages(msgs []core.Message) []openai.ChatCompletionMessageParamUnion {
	var (
		messages []openai.ChatCompletionMessageParamUnion
		pending  []openai.ChatCompletionMessageToolCallParam
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: pending,
			},
		})
		pending = nil
	}

	for _, m := range msgs {
		if tc, ok := m.(core.ToolCallMessage); ok {
			pending = append(pending, openai.ChatCompletionMessageToolCallParam{
				ID:   tc.ToolCallID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.ToolName,
					Arguments: model.FormatArguments(tc.Arguments),
				},
			})
			continue
		}
		flush()

		switch msg := m.(type) {
		case core.SystemMessage:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case core.UserMessage:
			messages = append(messages, openai.UserMessage(msg.Content))
		case core.AssistantMessage:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case core.ToolResultMessage:
			messages = append(messages, openai.ToolMessage(msg.Result, msg.ToolCallID))
		}
	}
	flush()

	return messages
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (m *Model) buildParams(msgs []core.Message, schemas []core.ToolSchema) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(msgs),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(schemas) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(schemas))
	for i, s := range schemas {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters:  s.JSONSchema(),
			},
		}
	}
	params.Tools = tools
	return params
}

// processStreaming consumes the chunk stream, publishing text and tool-call
// deltas as they arrive.
func (m *Model) processStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	stream *model.StreamEmitter,
) ([]core.Message, error) {
	chunks := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer chunks.Close()

	var (
		text    strings.Builder
		started bool
	)
	calls := model.NewToolCallAccumulator(stream)

	for chunks.Next() {
		ck := chunks.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				if !started {
					started = true
					stream.MessageStart()
				}
				text.WriteString(ch.Delta.Content)
				stream.MessageDelta(ch.Delta.Content)
			}
			for _, tc := range ch.Delta.ToolCalls {
				calls.Add(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
			}
		}
	}
	if err := chunks.Err(); err != nil {
		stream.MessageError(err)
		return nil, fmt.Errorf("openai streaming error: %w", err)
	}

	out := make([]core.Message, 0, calls.Len()+1)
	if started {
		stream.MessageDone(text.String())
		out = append(out, core.AssistantMessage{Content: text.String()})
	}
	return append(out, calls.Messages()...), nil
}

// processNonStreaming processes a normal (non-streaming) completion.
func (m *Model) processNonStreaming(ctx context.Context, params openai.ChatCompletionNewParams) ([]core.Message, error) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: no choices returned")
	}

	ch0 := resp.Choices[0]
	out := make([]core.Message, 0, len(ch0.Message.ToolCalls)+1)
	if ch0.Message.Content != "" {
		out = append(out, core.AssistantMessage{Content: ch0.Message.Content})
	}
	for _, tc := range ch0.Message.ToolCalls {
		args, err := model.ParseArguments(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("openai tool call %s: %w", tc.ID, err)
		}
		out = append(out, core.ToolCallMessage{
			ToolCallID: tc.ID,
			ToolName:   tc.Function.Name,
			Arguments:  args,
		})
	}
	return out, nil
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
		Streaming:     m.opts.Stream,
	}
}

var _ model.Model = (*Model)(nil)
