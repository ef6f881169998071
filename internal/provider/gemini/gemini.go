// Package gemini adapts the Google Gemini API to the provider contract.
// Function calls arrive complete inside candidate parts rather than as
// argument deltas, and carry no per-call IDs, so IDs are synthesized here
// to keep result association uniform across backends.
package gemini

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"quill/internal/message"
	"quill/internal/provider"
)

// Options configure the adapter. APIKey selects the Google AI API; Project
// (plus Location) selects Vertex AI instead.
type Options struct {
	Model    string
	APIKey   string
	Project  string
	Location string
}

// Client wraps the genai SDK behind provider.Provider.
type Client struct {
	client *genai.Client
	opts   Options
}

// New constructs the adapter, choosing the backend from the supplied
// credentials.
func New(ctx context.Context, optFns ...func(o *Options)) (*Client, error) {
	opts := Options{
		Model:    "gemini-2.5-flash",
		Location: "us-central1",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var cfg *genai.ClientConfig
	switch {
	case opts.APIKey != "":
		cfg = &genai.ClientConfig{APIKey: opts.APIKey}
	case opts.Project != "":
		cfg = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  opts.Project,
			Location: opts.Location,
		}
	default:
		return nil, fmt.Errorf("gemini: either an API key or a cloud project is required")
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{client: client, opts: opts}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return "gemini" }

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

		config := &genai.GenerateContentConfig{}
		if system != "" {
			config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
		}
		if len(tools) > 0 {
			config.Tools = buildTools(tools)
		}

		contents := buildContents(messages)

		var calls []message.ToolCall
		var usage *provider.Usage
		started := false

		for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.opts.Model, contents, config) {
			if err != nil {
				errCh <- fmt.Errorf("gemini stream: %w", err)
				return
			}
			if chunk.UsageMetadata != nil {
				usage = &provider.Usage{
					InputTokens:  int(chunk.UsageMetadata.PromptTokenCount),
					OutputTokens: int(chunk.UsageMetadata.CandidatesTokenCount),
				}
			}
			for _, cand := range chunk.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						out <- provider.StreamEvent{Text: part.Text}
					}
					if part.FunctionCall != nil {
						if !started {
							started = true
							out <- provider.StreamEvent{ToolUseStarted: true}
						}
						calls = append(calls, toCall(part.FunctionCall))
					}
				}
			}
		}

		stopReason := provider.StopEndTurn
		if len(calls) > 0 {
			stopReason = provider.StopToolUse
		}
		out <- provider.StreamEvent{ToolCalls: calls, StopReason: stopReason, Usage: usage}
	}()

	return out, errCh
}

// toCall converts a function call part, synthesizing an ID when the API
// omits one.
func toCall(fc *genai.FunctionCall) message.ToolCall {
	id := fc.ID
	if id == "" {
		id = uuid.NewString()
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	return message.ToolCall{ID: id, Name: fc.Name, Args: args}
}

// buildContents converts the canonical log to Gemini contents. Function
// responses need the function name, which only the originating call knows,
// so call IDs are resolved against the calls seen earlier in the log.
func buildContents(messages []message.Message) []*genai.Content {
	callNames := make(map[string]string)
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		var parts []*genai.Part

		if msg.Content != "" {
			parts = append(parts, genai.NewPartFromText(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			callNames[tc.ID] = tc.Name
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: tc.Args},
			})
		}
		for _, tr := range msg.ToolResults {
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name: callNames[tr.ToolCallID],
					Response: map[string]any{
						"content": tr.Content,
						"error":   tr.IsError,
					},
				},
			})
		}
		if len(parts) == 0 {
			continue
		}

		role := string(genai.RoleUser)
		if msg.Role == message.RoleAssistant {
			role = string(genai.RoleModel)
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

func buildTools(tools []provider.ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, def := range tools {
		fd := &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
		}
		if def.Parameters != nil {
			fd.Parameters = toSchema(def.Parameters)
		}
		decls = append(decls, fd)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toSchema(params *provider.ParameterSchema) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeObject}
	if params.Properties != nil {
		schema.Properties = make(map[string]*genai.Schema, len(params.Properties))
		for name, prop := range params.Properties {
			s := &genai.Schema{
				Type:        toType(prop.Type),
				Description: prop.Description,
			}
			if len(prop.Enum) > 0 {
				s.Enum = prop.Enum
			}
			if prop.Items != nil {
				s.Items = &genai.Schema{Type: toType(prop.Items.Type)}
			}
			schema.Properties[name] = s
		}
	}
	if len(params.Required) > 0 {
		schema.Required = params.Required
	}
	return schema
}

func toType(typ string) genai.Type {
	switch typ {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
