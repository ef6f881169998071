// Package message defines the canonical conversation types shared by every
// provider backend. The orchestrator appends to a log of these and never
// mutates an entry after it has been appended.
package message

// Role identifies who produced a message. Tool results are carried on
// synthesized user-role messages, mirroring how every backend wire format
// feeds results back to the model.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall is a request from the model to execute a tool. IDs are unique
// within the turn that produced them and are never reused by later turns.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the outcome of one tool call. ToolCallID references an ID
// from the immediately preceding assistant turn. IsError marks failures
// detected by the dispatcher (unknown tool, permission denied); failures
// inside a tool come back as plain text content with IsError false.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is a single entry in the conversation log. A message never
// carries both tool calls and tool results.
type Message struct {
	Role        Role
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// User builds a plain user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant message with the accumulated text and any
// tool calls the turn produced. Content may be empty when the model went
// straight to tool use.
func Assistant(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResults builds the synthesized user-role message that bundles the
// results for one turn, in call order.
func ToolResults(results []ToolResult) Message {
	return Message{Role: RoleUser, ToolResults: results}
}
