package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/message"
	"quill/internal/provider"
)

func TestBuildMessagesMapsRolesAndBlocks(t *testing.T) {
	log := []message.Message{
		message.User("run ls"),
		{
			Role:    message.RoleAssistant,
			Content: "running it",
			ToolCalls: []message.ToolCall{
				{ID: "call-1", Name: "bash", Args: map[string]any{"command": "ls"}},
			},
		},
		message.ToolResults([]message.ToolResult{
			{ToolCallID: "call-1", Content: "a.txt\n", IsError: false},
			{ToolCallID: "call-2", Content: "[permission denied by user]", IsError: true},
		}),
	}

	out := buildMessages(log)
	require.Len(t, out, 3)

	assert.Equal(t, anthropic.MessageParamRoleUser, out[0].Role)
	require.Len(t, out[0].Content, 1)
	assert.Equal(t, "run ls", out[0].Content[0].OfText.Text)

	assert.Equal(t, anthropic.MessageParamRoleAssistant, out[1].Role)
	require.Len(t, out[1].Content, 2)
	assert.Equal(t, "running it", out[1].Content[0].OfText.Text)
	tu := out[1].Content[1].OfToolUse
	require.NotNil(t, tu)
	assert.Equal(t, "call-1", tu.ID)
	assert.Equal(t, "bash", tu.Name)

	// Results ride on a user message as tool_result blocks.
	assert.Equal(t, anthropic.MessageParamRoleUser, out[2].Role)
	require.Len(t, out[2].Content, 2)
	first := out[2].Content[0].OfToolResult
	require.NotNil(t, first)
	assert.Equal(t, "call-1", first.ToolUseID)
	assert.False(t, first.IsError.Value)
	second := out[2].Content[1].OfToolResult
	require.NotNil(t, second)
	assert.Equal(t, "call-2", second.ToolUseID)
	assert.True(t, second.IsError.Value)
}

func TestBuildMessagesSkipsEmptyMessages(t *testing.T) {
	out := buildMessages([]message.Message{{Role: message.RoleAssistant}})
	assert.Empty(t, out)
}

func TestCollectCallsFromAccumulatedMessage(t *testing.T) {
	raw := `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-20250514",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "let me check"},
			{"type": "tool_use", "id": "tu_1", "name": "bash", "input": {"command": "ls"}},
			{"type": "tool_use", "id": "tu_2", "name": "grep", "input": {"pattern": "x"}}
		],
		"usage": {"input_tokens": 10, "output_tokens": 20}
	}`
	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	calls := collectCalls(msg)
	require.Len(t, calls, 2)
	assert.Equal(t, "tu_1", calls[0].ID)
	assert.Equal(t, "bash", calls[0].Name)
	assert.Equal(t, map[string]any{"command": "ls"}, calls[0].Args)
	assert.Equal(t, "tu_2", calls[1].ID)
	assert.Equal(t, "grep", calls[1].Name)
}

func TestCollectCallsMalformedInputDegradesToEmptyMap(t *testing.T) {
	raw := `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-20250514",
		"stop_reason": "tool_use",
		"content": [
			{"type": "tool_use", "id": "tu_1", "name": "bash", "input": "not an object"}
		],
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`
	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	calls := collectCalls(msg)
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{}, calls[0].Args)
}

func TestBuildToolsHandlesNilParameters(t *testing.T) {
	out := buildTools([]provider.ToolDefinition{
		{Name: "ping", Description: "no arguments"},
		{Name: "bash", Description: "run", Parameters: &provider.ParameterSchema{
			Type: "object",
			Properties: map[string]provider.PropertySchema{
				"command": {Type: "string"},
			},
			Required: []string{"command"},
		}},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "ping", out[0].OfTool.Name)
	assert.Empty(t, out[0].OfTool.InputSchema.Required)
	assert.Equal(t, "bash", out[1].OfTool.Name)
	assert.Equal(t, []string{"command"}, out[1].OfTool.InputSchema.Required)
}
