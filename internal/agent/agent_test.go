package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/message"
	"quill/internal/permission"
	"quill/internal/provider"
	"quill/internal/tool"
)

// scriptedProvider replays one event sequence per Stream call. The last
// script repeats if the agent keeps asking.
type scriptedProvider struct {
	scripts [][]provider.StreamEvent
	fault   error
	calls   int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Stream(
	_ context.Context,
	_ []message.Message,
	_ []provider.ToolDefinition,
	_ string,
) (<-chan provider.StreamEvent, <-chan error) {
	idx := p.calls
	if idx >= len(p.scripts) {
		idx = len(p.scripts) - 1
	}
	p.calls++

	events := make(chan provider.StreamEvent, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		if p.fault != nil {
			errs <- p.fault
			return
		}
		for _, ev := range p.scripts[idx] {
			events <- ev
		}
	}()
	return events, errs
}

func textTurn(text string) []provider.StreamEvent {
	return []provider.StreamEvent{
		{Text: text},
		{StopReason: provider.StopEndTurn},
	}
}

func toolTurn(calls ...message.ToolCall) []provider.StreamEvent {
	return []provider.StreamEvent{
		{ToolUseStarted: true},
		{ToolCalls: calls, StopReason: provider.StopToolUse},
	}
}

// fakeTool records executions and returns a fixed result.
type fakeTool struct {
	name     string
	requires bool
	result   string
	executed []map[string]any
}

func (t *fakeTool) Name() string                          { return t.name }
func (t *fakeTool) Description() string                   { return t.name }
func (t *fakeTool) Parameters() *provider.ParameterSchema { return nil }
func (t *fakeTool) RequiresPermission() bool              { return t.requires }

func (t *fakeTool) Execute(_ context.Context, args map[string]any) string {
	t.executed = append(t.executed, args)
	return t.result
}

type nopDisplay struct{}

func (nopDisplay) StreamStart()                {}
func (nopDisplay) StreamText(string)           {}
func (nopDisplay) ToolUseStarted()             {}
func (nopDisplay) StreamEnd(bool)              {}
func (nopDisplay) ToolCall(string, map[string]any) {}
func (nopDisplay) ToolResult(string, bool)     {}
func (nopDisplay) Notice(string)               {}

type prompterFunc func(ctx context.Context, toolName string, args map[string]any) (permission.Decision, error)

func (f prompterFunc) PromptPermission(ctx context.Context, toolName string, args map[string]any) (permission.Decision, error) {
	return f(ctx, toolName, args)
}

func answer(d permission.Decision) prompterFunc {
	return func(context.Context, string, map[string]any) (permission.Decision, error) {
		return d, nil
	}
}

func newAgent(t *testing.T, prov provider.Provider, decision permission.Decision, maxTurns int, tools ...tool.Tool) *Agent {
	t.Helper()
	perms := permission.NewManager(permission.NewConfig(), answer(decision), t.TempDir(), nil)
	return New(Options{
		Provider:    prov,
		Registry:    tool.NewRegistry(tools...),
		Permissions: perms,
		Display:     nopDisplay{},
		MaxTurns:    maxTurns,
	})
}

func TestChatTextOnlyTurn(t *testing.T) {
	prov := &scriptedProvider{scripts: [][]provider.StreamEvent{textTurn("hello there")}}
	ag := newAgent(t, prov, permission.DecisionAllow, 0)

	outcome, err := ag.Chat(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, 1, prov.calls)

	log := ag.Messages()
	require.Len(t, log, 2)
	assert.Equal(t, message.RoleUser, log[0].Role)
	assert.Equal(t, "hi", log[0].Content)
	assert.Equal(t, message.RoleAssistant, log[1].Role)
	assert.Equal(t, "hello there", log[1].Content)
	assert.Empty(t, log[1].ToolCalls)
}

func TestChatOneResultPerCallInOrder(t *testing.T) {
	echo := &fakeTool{name: "echo", result: "ok"}
	prov := &scriptedProvider{scripts: [][]provider.StreamEvent{
		toolTurn(
			message.ToolCall{ID: "c1", Name: "echo", Args: map[string]any{"n": 1}},
			message.ToolCall{ID: "c2", Name: "missing", Args: map[string]any{}},
			message.ToolCall{ID: "c3", Name: "echo", Args: map[string]any{"n": 3}},
		),
		textTurn("done"),
	}}
	ag := newAgent(t, prov, permission.DecisionAllow, 0, echo)

	outcome, err := ag.Chat(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	log := ag.Messages()
	require.Len(t, log, 4) // user, assistant(calls), results, assistant(text)

	results := log[2].ToolResults
	require.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].ToolCallID)
	assert.Equal(t, "c2", results[1].ToolCallID)
	assert.Equal(t, "c3", results[2].ToolCallID)

	assert.False(t, results[0].IsError)
	assert.True(t, results[1].IsError)
	assert.Contains(t, results[1].Content, "unknown tool 'missing'")
	assert.False(t, results[2].IsError)

	// The unknown tool produced no execution; the batch continued past it.
	assert.Len(t, echo.executed, 2)
}

func TestChatAssistantMessageKeptWhenContentEmpty(t *testing.T) {
	echo := &fakeTool{name: "echo", result: "ok"}
	prov := &scriptedProvider{scripts: [][]provider.StreamEvent{
		toolTurn(message.ToolCall{ID: "c1", Name: "echo", Args: map[string]any{}}),
		textTurn("done"),
	}}
	ag := newAgent(t, prov, permission.DecisionAllow, 0, echo)

	_, err := ag.Chat(context.Background(), "go")
	require.NoError(t, err)

	log := ag.Messages()
	assert.Equal(t, message.RoleAssistant, log[1].Role)
	assert.Empty(t, log[1].Content)
	require.Len(t, log[1].ToolCalls, 1)
	assert.Equal(t, "c1", log[1].ToolCalls[0].ID)
}

func TestChatPermissionDeniedContinuesBatch(t *testing.T) {
	gated := &fakeTool{name: "gated", requires: true, result: "secret"}
	open := &fakeTool{name: "open", result: "fine"}
	prov := &scriptedProvider{scripts: [][]provider.StreamEvent{
		toolTurn(
			message.ToolCall{ID: "c1", Name: "gated", Args: map[string]any{}},
			message.ToolCall{ID: "c2", Name: "open", Args: map[string]any{}},
		),
		textTurn("done"),
	}}
	ag := newAgent(t, prov, permission.DecisionDeny, 0, gated, open)

	_, err := ag.Chat(context.Background(), "go")
	require.NoError(t, err)

	results := ag.Messages()[2].ToolResults
	require.Len(t, results, 2)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].Content, "permission denied")
	assert.Empty(t, gated.executed)
	assert.False(t, results[1].IsError)
	assert.Len(t, open.executed, 1)
}

func TestChatToolFailureTextIsNotErrorFlagged(t *testing.T) {
	// A tool reporting a missing file does so as plain text; the loop
	// proceeds to the next provider turn instead of halting.
	reader := &fakeTool{name: "read_file", result: "[error: file not found: nope.txt]"}
	prov := &scriptedProvider{scripts: [][]provider.StreamEvent{
		toolTurn(message.ToolCall{ID: "c1", Name: "read_file", Args: map[string]any{"path": "nope.txt"}}),
		textTurn("that file does not exist"),
	}}
	ag := newAgent(t, prov, permission.DecisionAllow, 0, reader)

	outcome, err := ag.Chat(context.Background(), "read it")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, 2, prov.calls)

	results := ag.Messages()[2].ToolResults
	require.Len(t, results, 1)
	assert.False(t, results[0].IsError)
	assert.Contains(t, results[0].Content, "file not found")
}

func TestChatTurnLimitBoundsProviderCalls(t *testing.T) {
	// Every response asks for another tool call; the limit must stop the
	// loop after exactly that many provider calls.
	echo := &fakeTool{name: "echo", result: "ok"}
	prov := &scriptedProvider{scripts: [][]provider.StreamEvent{
		toolTurn(message.ToolCall{ID: "c1", Name: "echo", Args: map[string]any{}}),
	}}
	ag := newAgent(t, prov, permission.DecisionAllow, 3, echo)

	outcome, err := ag.Chat(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTurnLimit, outcome)
	assert.Equal(t, 3, prov.calls)
}

func TestChatProviderFaultEndsRun(t *testing.T) {
	prov := &scriptedProvider{
		scripts: [][]provider.StreamEvent{textTurn("unused")},
		fault:   errors.New("connection reset"),
	}
	ag := newAgent(t, prov, permission.DecisionAllow, 0)

	_, err := ag.Chat(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestChatToolCallIDsStayAssociatedAcrossTurns(t *testing.T) {
	echo := &fakeTool{name: "echo", result: "ok"}
	scripts := [][]provider.StreamEvent{}
	for i := 1; i <= 2; i++ {
		scripts = append(scripts, toolTurn(message.ToolCall{
			ID:   fmt.Sprintf("turn%d-call", i),
			Name: "echo",
			Args: map[string]any{},
		}))
	}
	scripts = append(scripts, textTurn("done"))
	ag := newAgent(t, &scriptedProvider{scripts: scripts}, permission.DecisionAllow, 0, echo)

	_, err := ag.Chat(context.Background(), "go")
	require.NoError(t, err)

	log := ag.Messages()
	assert.Equal(t, "turn1-call", log[1].ToolCalls[0].ID)
	assert.Equal(t, "turn1-call", log[2].ToolResults[0].ToolCallID)
	assert.Equal(t, "turn2-call", log[3].ToolCalls[0].ID)
	assert.Equal(t, "turn2-call", log[4].ToolResults[0].ToolCallID)
}
