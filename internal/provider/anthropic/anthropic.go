// Package anthropic adapts the Anthropic Messages API to the provider
// contract. Tool-call arguments arrive as input-JSON deltas between content
// block boundaries; the SDK accumulator reassembles complete blocks, which
// are parsed once when the stream ends.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"quill/internal/message"
	"quill/internal/provider"
)

// Options configure the adapter.
type Options struct {
	Model     string
	APIKey    string
	MaxTokens int64
}

// Client wraps the Anthropic SDK behind provider.Provider.
type Client struct {
	client anthropic.Client
	opts   Options
}

// New constructs the adapter. An empty APIKey falls back to the SDK's
// environment lookup.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:     string(anthropic.ModelClaudeSonnet4_20250514),
		MaxTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	return &Client{client: anthropic.NewClient(clientOpts...), opts: opts}
}

// Name implements provider.Provider.
func (c *Client) Name() string { return "anthropic" }

// Stream implements provider.Provider.
func (c *Client) Stream(
	ctx context.Context,
	messages []message.Message,
	tools []provider.ToolDefinition,
	system string,
) (<-chan provider.StreamEvent, <-chan error) {
	out := make(chan provider.StreamEvent, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(c.opts.Model),
			MaxTokens: c.opts.MaxTokens,
			Messages:  buildMessages(messages),
		}
		if system != "" {
			params.System = []anthropic.TextBlockParam{{Text: system}}
		}
		if len(tools) > 0 {
			params.Tools = buildTools(tools)
		}

		stream := c.client.Messages.NewStreaming(ctx, params)

		acc := anthropic.Message{}
		started := false

		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				errCh <- fmt.Errorf("anthropic accumulate: %w", err)
				return
			}

			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if ev.ContentBlock.Type == "tool_use" && !started {
					started = true
					out <- provider.StreamEvent{ToolUseStarted: true}
				}
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
					out <- provider.StreamEvent{Text: delta.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("anthropic stream: %w", err)
			return
		}

		out <- provider.StreamEvent{
			ToolCalls:  collectCalls(acc),
			StopReason: string(acc.StopReason),
			Usage: &provider.Usage{
				InputTokens:  int(acc.Usage.InputTokens),
				OutputTokens: int(acc.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

// collectCalls extracts the accumulated tool-use blocks in content order.
// Each block's input is parsed exactly once; malformed input degrades to an
// empty argument map.
func collectCalls(msg anthropic.Message) []message.ToolCall {
	var calls []message.ToolCall
	for _, block := range msg.Content {
		tu, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		args := map[string]any{}
		if len(tu.Input) > 0 {
			if err := json.Unmarshal(tu.Input, &args); err != nil {
				args = map[string]any{}
			}
		}
		calls = append(calls, message.ToolCall{ID: tu.ID, Name: tu.Name, Args: args})
	}
	return calls
}

// buildMessages converts the canonical log to Anthropic message params.
// Tool results ride on user messages as tool_result blocks, matching the
// synthesized user-role result messages of the canonical model.
func buildMessages(messages []message.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		var blocks []anthropic.ContentBlockParamUnion

		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Args, tc.Name))
		}
		for _, tr := range msg.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		if len(blocks) == 0 {
			continue
		}

		if msg.Role == message.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func buildTools(tools []provider.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, def := range tools {
		schema := def.Parameters.Map()
		var required []string
		if def.Parameters != nil {
			required = def.Parameters.Required
		}
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   required,
				},
			},
		}
	}
	return out
}
