package models

import (
	"context"

	"github.com/prathamdby/pi-mono/pkg/store"
)

// DefaultContextWindow is assumed when a model's context window is unknown.
const DefaultContextWindow = 128000

// Model describes an LLM known to the system.
type Model struct {
	// Provider is the AI provider name (e.g. "gemini").
	Provider string
	// ID is the provider-specific model name.
	ID string
	// ContextWindow is the maximum input token count, 0 if unknown.
	ContextWindow int
	// MaxOutput is the maximum response token count, 0 if unknown.
	MaxOutput int
}

// Window returns the model's context window, falling back to
// DefaultContextWindow when unknown.
func (m Model) Window() int {
	if m.ContextWindow > 0 {
		return m.ContextWindow
	}
	return DefaultContextWindow
}

// Message represents a message in the agent's context.
// It mirrors store.MessageEntry but is specific to the active agent loop.
type Message struct {
	// Role indicates the sender of the message (e.g., user, assistant).
	Role store.MessageRole
	// Content holds the content parts of the message.
	Content []store.Content
}

// StopReason indicates how a completion call finished.
type StopReason string

const (
	StopOK      StopReason = "ok"
	StopAborted StopReason = "aborted"
	StopError   StopReason = "error"
)

// Completion is the result of a single completion call. Content carries the
// response as content blocks so tool calls survive the round trip.
type Completion struct {
	StopReason   StopReason
	Content      []store.Content
	ErrorMessage string
}

// Text flattens the completion's text blocks into a single string. Non-text
// blocks are skipped.
func (c *Completion) Text() string {
	return store.Message{Content: c.Content}.Text()
}

// ToolDefinition declares a callable tool to the provider.
type ToolDefinition struct {
	Name        string
	Description string
	// InputSchema is a JSON-schema-shaped description of the input object.
	InputSchema map[string]any
}

// CompleteOptions configures a completion call.
type CompleteOptions struct {
	// APIKey is the provider credential.
	APIKey string
	// MaxTokens bounds the response size, 0 for the provider default.
	MaxTokens int
	// Tools declares the tools the model may call, empty for none.
	Tools []ToolDefinition
}

// CompleteFunc performs a single non-streaming completion call. Cancellation
// is signalled through ctx; implementations report it as StopAborted rather
// than returning an error.
type CompleteFunc func(ctx context.Context, model Model, messages []Message, opts CompleteOptions) (*Completion, error)

// Estimator approximates the token cost of a message.
type Estimator func(msg store.Message) int

// EstimateByLength is the default token estimator: roughly four characters per
// token, counting text blocks plus a flat charge per non-text block.
func EstimateByLength(msg store.Message) int {
	chars := 0
	for _, c := range msg.Content {
		switch {
		case c.Type == store.ContentTypeText && c.Text != nil:
			chars += len(c.Text.Content)
		case c.Type == store.ContentTypeToolUse && c.ToolUse != nil:
			chars += len(c.ToolUse.Name)
			for k, v := range c.ToolUse.Input {
				chars += len(k)
				if s, ok := v.(string); ok {
					chars += len(s)
				} else {
					chars += 8
				}
			}
		case c.Type == store.ContentTypeToolResult && c.ToolResult != nil:
			chars += len(c.ToolResult.Content)
		default:
			chars += 1024
		}
	}
	return chars / 4
}

// Registry holds the models known to the system, in registration order.
type Registry struct {
	models []Model
}

// NewRegistry creates a registry pre-populated with the given models.
func NewRegistry(models ...Model) *Registry {
	return &Registry{models: models}
}

// Register adds a model to the registry.
func (r *Registry) Register(m Model) {
	r.models = append(r.models, m)
}

// Find returns the model with the given provider and ID.
func (r *Registry) Find(provider, id string) (Model, bool) {
	for _, m := range r.models {
		if m.Provider == provider && m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// List returns all registered models.
func (r *Registry) List() []Model {
	out := make([]Model, len(r.models))
	copy(out, r.models)
	return out
}
