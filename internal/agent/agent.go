// Package agent drives the turn loop: stream the provider, accumulate the
// assistant message, dispatch tool calls through the permission engine,
// feed the results back, repeat until the model stops asking for tools.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/message"
	"quill/internal/permission"
	"quill/internal/provider"
	"quill/internal/tool"
)

// SystemPrompt is the base instruction sent with every provider request.
const SystemPrompt = `You are Quill, a helpful coding assistant.

You have access to tools for reading files, writing files, and executing shell commands.
Use these tools to help the user with their tasks.

Be concise and direct in your responses. When you need to perform actions, use the appropriate tools.`

// Display is the output side of the session boundary. Implementations
// render streamed text and tool activity; they never touch conversation or
// permission state.
type Display interface {
	// StreamStart signals that a provider request was issued. A display may
	// arm a delayed thinking indicator here.
	StreamStart()

	// StreamText renders one streamed fragment in generation order.
	StreamText(text string)

	// ToolUseStarted signals that tool arguments are about to stream, so
	// the display can switch state before any argument fragment arrives.
	ToolUseStarted()

	// StreamEnd closes the streamed region. hadText reports whether any
	// fragment was rendered.
	StreamEnd(hadText bool)

	// ToolCall announces a tool execution about to run.
	ToolCall(name string, args map[string]any)

	// ToolResult renders one tool result.
	ToolResult(content string, isError bool)

	// Notice renders session-level information such as the turn limit.
	Notice(text string)
}

// Outcome is the terminal state of one Chat invocation.
type Outcome int

const (
	// OutcomeCompleted means the model finished without further tool calls.
	OutcomeCompleted Outcome = iota
	// OutcomeTurnLimit means the configured turn limit stopped the loop.
	// It is a bounded stop, not a fault.
	OutcomeTurnLimit
)

// Options configure an Agent.
type Options struct {
	Provider    provider.Provider
	Registry    *tool.Registry
	Permissions *permission.Manager
	Display     Display
	Logger      *slog.Logger

	// System is appended to SystemPrompt, e.g. workspace context.
	System string

	// MaxTurns bounds provider calls per Chat invocation; 0 is unlimited.
	MaxTurns int
}

// Agent owns the conversation state for one session. Not safe for
// concurrent use; one control flow drives one conversation.
type Agent struct {
	provider    provider.Provider
	registry    *tool.Registry
	permissions *permission.Manager
	display     Display
	logger      *slog.Logger
	system      string
	maxTurns    int

	messages []message.Message
}

// New constructs an agent with an empty conversation log.
func New(opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	system := SystemPrompt
	if opts.System != "" {
		system += "\n\n" + opts.System
	}
	return &Agent{
		provider:    opts.Provider,
		registry:    opts.Registry,
		permissions: opts.Permissions,
		display:     opts.Display,
		logger:      logger,
		system:      system,
		maxTurns:    opts.MaxTurns,
	}
}

// Messages returns a copy of the conversation log.
func (a *Agent) Messages() []message.Message {
	out := make([]message.Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// Chat processes one user input: it appends the user message, then
// alternates provider turns and tool execution until the model stops
// requesting tools or the turn limit is reached. Provider transport
// failures and prompt I/O failures end the run as errors; tool failures
// never do.
func (a *Agent) Chat(ctx context.Context, input string) (Outcome, error) {
	a.messages = append(a.messages, message.User(input))

	turns := 0
	for {
		if a.maxTurns > 0 && turns >= a.maxTurns {
			a.display.Notice(fmt.Sprintf("turn limit (%d) reached", a.maxTurns))
			a.logger.Info("turn limit reached", "max_turns", a.maxTurns)
			return OutcomeTurnLimit, nil
		}
		turns++

		calls, err := a.streamTurn(ctx)
		if err != nil {
			return OutcomeCompleted, err
		}
		if len(calls) == 0 {
			return OutcomeCompleted, nil
		}

		// Sequential, in call order. One result per call, errors included;
		// a failing call never aborts the batch.
		results := make([]message.ToolResult, 0, len(calls))
		for _, call := range calls {
			result, err := a.dispatch(ctx, call)
			if err != nil {
				return OutcomeCompleted, err
			}
			results = append(results, result)
		}
		a.messages = append(a.messages, message.ToolResults(results))
	}
}

// streamTurn issues one provider request, renders fragments as they
// arrive and appends the accumulated assistant message, even when the
// model produced no text at all.
func (a *Agent) streamTurn(ctx context.Context) ([]message.ToolCall, error) {
	events, errs := a.provider.Stream(ctx, a.messages, a.registry.Definitions(), a.system)

	a.display.StreamStart()

	var text strings.Builder
	var calls []message.ToolCall
	var stopReason string
	var usage *provider.Usage

	for ev := range events {
		if ev.Text != "" {
			text.WriteString(ev.Text)
			a.display.StreamText(ev.Text)
		}
		if ev.ToolUseStarted {
			a.display.ToolUseStarted()
		}
		if len(ev.ToolCalls) > 0 {
			calls = ev.ToolCalls
		}
		if ev.StopReason != "" {
			stopReason = ev.StopReason
		}
		if ev.Usage != nil {
			usage = ev.Usage
		}
	}
	if err := <-errs; err != nil {
		a.display.StreamEnd(text.Len() > 0)
		return nil, fmt.Errorf("provider %s: %w", a.provider.Name(), err)
	}

	a.display.StreamEnd(text.Len() > 0)
	a.messages = append(a.messages, message.Assistant(text.String(), calls))

	logAttrs := []any{"stop_reason", stopReason, "tool_calls", len(calls)}
	if usage != nil {
		logAttrs = append(logAttrs, "input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)
	}
	a.logger.Debug("turn streamed", logAttrs...)

	return calls, nil
}

// dispatch runs one tool call. Unknown tools and permission denials come
// back as error-flagged results; tool-internal failures come back as plain
// text. Only prompt I/O failure returns an error.
func (a *Agent) dispatch(ctx context.Context, call message.ToolCall) (message.ToolResult, error) {
	t, ok := a.registry.Get(call.Name)
	if !ok {
		a.logger.Warn("unknown tool requested", "tool", call.Name)
		return message.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("[error: unknown tool '%s']", call.Name),
			IsError:    true,
		}, nil
	}

	allowed, err := a.permissions.Check(ctx, t, call)
	if err != nil {
		return message.ToolResult{}, err
	}
	if !allowed {
		a.logger.Info("tool call denied", "tool", call.Name)
		return message.ToolResult{
			ToolCallID: call.ID,
			Content:    "[permission denied by user]",
			IsError:    true,
		}, nil
	}

	a.display.ToolCall(call.Name, call.Args)
	content := t.Execute(ctx, call.Args)
	a.display.ToolResult(content, false)

	return message.ToolResult{ToolCallID: call.ID, Content: content}, nil
}
