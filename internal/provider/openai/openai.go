// Package openai adapts the OpenAI Chat Completions API (and any
// OpenAI-compatible server such as vLLM, LocalAI, llama.cpp or Ollama) to
// the provider contract. Tool-call arguments arrive as incremental text
// deltas keyed by a per-call index; they are concatenated per index and
// parsed once, when the stream ends.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"quill/internal/message"
	"quill/internal/provider"
)

// aggCall collects the streamed fragments of one tool call.
type aggCall struct {
	id   string
	name string
	args string
}

// Options configure the adapter.
type Options struct {
	Model     string
	APIKey    string
	BaseURL   string // server URL including /v1, empty for the hosted API
	MaxTokens int64
}

// Client wraps the OpenAI SDK behind provider.Provider.
type Client struct {
	client openai.Client
	opts   Options
}

// New constructs the adapter. BaseURL selects a compatible server; an empty
// APIKey is replaced with "EMPTY" for servers that run without auth.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:     openai.ChatModelGPT4oMini,
		MaxTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
		if opts.APIKey == "" {
			opts.APIKey = "EMPTY"
		}
	}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	return &Client{client: openai.NewClient(clientOpts...), opts: opts}
}

// Name implements provider.Provider.
func (c *Client) Name() string { return "openai" }

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

		params := openai.ChatCompletionNewParams{
			Model:               c.opts.Model,
			Messages:            buildMessages(messages, system),
			MaxCompletionTokens: openai.Int(c.opts.MaxTokens),
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}
		if len(tools) > 0 {
			params.Tools = buildTools(tools)
		}

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)

		agg := map[int64]*aggCall{}
		var usage *provider.Usage
		var finishReason string
		started := false

		for stream.Next() {
			chunk := stream.Current()

			if chunk.Usage.TotalTokens > 0 {
				usage = &provider.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				out <- provider.StreamEvent{Text: choice.Delta.Content}
			}

			for _, tc := range choice.Delta.ToolCalls {
				if !started {
					started = true
					out <- provider.StreamEvent{ToolUseStarted: true}
				}
				ac, ok := agg[tc.Index]
				if !ok {
					ac = &aggCall{}
					agg[tc.Index] = ac
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args += tc.Function.Arguments
			}

			// Usage arrives in a trailing choiceless chunk, so the terminal
			// event waits for the end of the stream.
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai stream: %w", err)
			return
		}

		out <- provider.StreamEvent{
			ToolCalls:  collectCalls(agg),
			StopReason: mapFinishReason(finishReason),
			Usage:      usage,
		}
	}()

	return out, errCh
}

// collectCalls finalizes aggregated calls in index order, parsing each
// call's concatenated argument text exactly once. Malformed arguments
// degrade to an empty map rather than aborting the stream.
func collectCalls(agg map[int64]*aggCall) []message.ToolCall {
	if len(agg) == 0 {
		return nil
	}
	indexes := make([]int64, 0, len(agg))
	for idx := range agg {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	calls := make([]message.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		ac := agg[idx]
		args := map[string]any{}
		if ac.args != "" {
			if err := json.Unmarshal([]byte(ac.args), &args); err != nil {
				args = map[string]any{}
			}
		}
		calls = append(calls, message.ToolCall{ID: ac.id, Name: ac.name, Args: args})
	}
	return calls
}

func mapFinishReason(reason string) string {
	if reason == "tool_calls" {
		return provider.StopToolUse
	}
	return provider.StopEndTurn
}

// buildMessages converts the canonical log to chat-completion messages.
// Assistant text and tool calls become separate entries; tool results map
// to role "tool" messages keyed by call ID.
func buildMessages(messages []message.Message, system string) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}

	for _, msg := range messages {
		switch msg.Role {
		case message.RoleAssistant:
			if msg.Content != "" {
				out = append(out, openai.AssistantMessage(msg.Content))
			}
			if len(msg.ToolCalls) > 0 {
				out = append(out, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						ToolCalls: buildToolCalls(msg.ToolCalls),
					},
				})
			}
		default:
			if msg.Content != "" {
				out = append(out, openai.UserMessage(msg.Content))
			}
			for _, tr := range msg.ToolResults {
				out = append(out, openai.ToolMessage(tr.Content, tr.ToolCallID))
			}
		}
	}
	return out
}

func buildToolCalls(calls []message.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	out := make([]openai.ChatCompletionMessageToolCallParam, 0, len(calls))
	for _, tc := range calls {
		args, err := json.Marshal(tc.Args)
		if err != nil {
			args = []byte("{}")
		}
		out = append(out, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: string(args),
			},
		})
	}
	return out
}

func buildTools(tools []provider.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, def := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  def.Parameters.Map(),
			},
		}
	}
	return out
}
