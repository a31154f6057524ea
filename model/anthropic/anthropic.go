// Package anthropic provides a processor backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	// Stream publishes the completed response as streaming events through
	// the processor context's bus.
	Stream bool
}

// Model wraps the Anthropic Messages API behind model.Model.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client
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

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Process implements core.Processor.
func (m *Model) Process(
	ctx context.Context,
	messages []core.Message,
	tools []core.ToolSchema,
	pctx core.ProcessorContext,
) ([]core.Message, error) {
	system, rest := model.SplitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(rest),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		if m.opts.Stream {
			model.NewStreamEmitter(pctx).MessageError(err)
		}
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var out []core.Message
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if text := block.AsText().Text; text != "" {
				out = append(out, core.AssistantMessage{Content: text})
			}
		case "tool_use":
			toolBlock := block.AsToolUse()
			raw, err := json.Marshal(toolBlock.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic tool call %s: %w", toolBlock.ID, err)
			}
			args, err := model.ParseArguments(string(raw))
			if err != nil {
				return nil, fmt.Errorf("anthropic tool call %s: %w", toolBlock.ID, err)
			}
			out = append(out, core.ToolCallMessage{
				ToolCallID: toolBlock.ID,
				ToolName:   toolBlock.Name,
				Arguments:  args,
			})
		}
	}

	if m.opts.Stream {
		model.NewStreamEmitter(pctx).EmitResponse(out)
	}
	return out, nil
}

// turn is one Anthropic message under construction.
type turn struct {
	assistant bool
	blocks    []anthropic.ContentBlockParamUnion
}

// buildMessages converts the conversation to Anthropic's alternating
// user/assistant format. Tool calls become tool_use blocks on the assistant
// side, tool results become tool_result blocks on the user side, and
// adjacent blocks of the same side are merged into one message.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var turns []turn
	add := func(assistant bool, block anthropic.ContentBlockParamUnion) {
		if n := len(turns); n > 0 && turns[n-1].assistant == assistant {
			turns[n-1].blocks = append(turns[n-1].blocks, block)
			return
		}
		turns = append(turns, turn{assistant: assistant, blocks: []anthropic.ContentBlockParamUnion{block}})
	}

	for _, m := range msgs {
		switch msg := m.(type) {
		case core.UserMessage:
			if msg.Content != "" {
				add(false, anthropic.NewTextBlock(msg.Content))
			}
		case core.AssistantMessage:
			if msg.Content != "" {
				add(true, anthropic.NewTextBlock(msg.Content))
			}
		case core.ToolCallMessage:
			args := msg.Arguments
			if args == nil {
				args = map[string]any{}
			}
			add(true, anthropic.NewToolUseBlock(msg.ToolCallID, args, msg.ToolName))
		case core.ToolResultMessage:
			add(false, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Result, false))
		}
	}

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		if t.assistant {
			messages = append(messages, anthropic.NewAssistantMessage(t.blocks...))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(t.blocks...))
	}
	return messages
}

// buildTools converts tool schemas to Anthropic tool definitions.
func buildTools(schemas []core.ToolSchema) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(schemas))
	for i, s := range schemas {
		js := s.JSONSchema()
		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: js["properties"],
		}
		if required, ok := js["required"].([]string); ok && len(required) > 0 {
			inputSchema.Required = required
		}
		tool := anthropic.ToolUnionParamOfTool(inputSchema, s.Name)
		if tool.OfTool != nil && s.Description != "" {
			tool.OfTool.Description = anthropic.String(s.Description)
		}
		tools[i] = tool
	}
	return tools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
		Streaming:     m.opts.Stream,
	}
}

var _ model.Model = (*Model)(nil)
