// Package provider defines the backend-agnostic streaming contract. Each
// backend adapter normalizes its vendor wire format into StreamEvent values
// so the orchestrator never branches on the provider in use.
package provider

import (
	"context"

	"quill/internal/message"
)

// StreamEvent is one normalized event from a streaming response. Events are
// transient and never persisted. Text fragments arrive in generation order.
// Exactly one terminal event per turn carries StopReason together with the
// complete, argument-parsed ToolCalls and optional Usage. ToolUseStarted
// fires at most once per turn, before the first argument fragment of any
// call, so callers can switch UI state before arguments stream in.
type StreamEvent struct {
	Text           string
	ToolCalls      []message.ToolCall
	StopReason     string
	ToolUseStarted bool
	Usage          *Usage
}

// Stop reasons shared across backends.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// Usage carries token counts reported by the backend, when available.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ToolDefinition describes one catalog entry sent to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *ParameterSchema
}

// ParameterSchema is the JSON-Schema subset the catalog uses: an object
// with named properties and a required list.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema describes a single named parameter.
type PropertySchema struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Default     any             `json:"default,omitempty"`
	Items       *PropertySchema `json:"items,omitempty"`
}

// Map renders the schema as a generic JSON-Schema map for SDKs that take
// untyped schemas.
func (s *ParameterSchema) Map() map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = p.asMap()
	}
	out := map[string]any{
		"type":       s.Type,
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

func (p PropertySchema) asMap() map[string]any {
	m := map[string]any{"type": p.Type}
	if p.Description != "" {
		m["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		m["enum"] = p.Enum
	}
	if p.Default != nil {
		m["default"] = p.Default
	}
	if p.Items != nil {
		m["items"] = p.Items.asMap()
	}
	return m
}

// Provider streams model responses for the full message log, the tool
// catalog and a system instruction. Implementations send events on the
// first channel and at most one fault on the second, then close both.
// Transport and authentication failures propagate as faults; adapters
// perform no retry.
type Provider interface {
	// Name returns the backend identifier, e.g. "anthropic".
	Name() string

	Stream(
		ctx context.Context,
		messages []message.Message,
		tools []ToolDefinition,
		system string,
	) (<-chan StreamEvent, <-chan error)
}
