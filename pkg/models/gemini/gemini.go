package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/store"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	// LevelTrace is a custom log level for detailed HTTP traffic.
	LevelTrace = slog.Level(-8)
)

// Client implements completion and model listing against the Google Gemini API.
type Client struct {
	client *genai.Client
}

// New creates a new Client.
func New(ctx context.Context, apiKey string) (*Client, error) {
	httpClient := &http.Client{
		Transport: &loggingTransport{
			base:   http.DefaultTransport,
			apiKey: apiKey,
		},
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Client{client: client}, nil
}

type loggingTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// If API key is provided and not already in headers/query, add it.
	// Passing a custom http.Client often bypasses the library's automatic
	// API key injection.
	if t.apiKey != "" && req.Header.Get("x-goog-api-key") == "" && req.URL.Query().Get("key") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("x-goog-api-key", t.apiKey)
	}

	if !slog.Default().Enabled(req.Context(), LevelTrace) {
		return t.base.RoundTrip(req)
	}

	reqDump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		slog.Debug("Failed to dump Gemini request", "error", err)
	} else {
		slog.Debug("Gemini REST Request", "url", req.URL.String(), "dump", string(reqDump))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// For streaming, don't dump body to avoid consuming it/blocking.
	isStream := strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") ||
		strings.Contains(req.URL.Query().Get("alt"), "sse")

	respDump, err := httputil.DumpResponse(resp, !isStream)
	if err != nil {
		slog.Debug("Failed to dump Gemini response", "error", err)
	} else {
		slog.Debug("Gemini REST Response", "isStream", isStream, "dump", string(respDump))
	}

	return resp, nil
}

// Close releases resources.
func (c *Client) Close() {
	c.client.Close()
}

// List returns available model names.
func (c *Client) List(ctx context.Context) ([]string, error) {
	iter := c.client.ListModels(ctx)
	var names []string
	for {
		model, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		slog.Debug("Found Gemini model", "name", model.Name)
		names = append(names, model.Name)
	}
	return names, nil
}

// Complete performs a single non-streaming completion call. Context
// cancellation is reported as StopAborted; provider failures as StopError.
// It satisfies models.CompleteFunc.
func (c *Client) Complete(ctx context.Context, model models.Model, messages []models.Message, opts models.CompleteOptions) (*models.Completion, error) {
	slog.Debug("Gemini.Complete: Request Parameters", "model", model.ID, "messageCount", len(messages))
	if len(messages) == 0 {
		return &models.Completion{StopReason: models.StopError, ErrorMessage: "no messages"}, nil
	}

	gm := c.client.GenerativeModel(model.ID)
	if opts.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(opts.MaxTokens))
	}
	if len(opts.Tools) > 0 {
		gm.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(opts.Tools)}}
	}

	var history []*genai.Content
	for _, msg := range messages {
		parts := toParts(msg.Content)
		if len(parts) == 0 {
			continue
		}
		role := "user"
		if msg.Role == store.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: parts})
	}
	if len(history) == 0 {
		return &models.Completion{StopReason: models.StopError, ErrorMessage: "no content"}, nil
	}

	cs := gm.StartChat()
	cs.History = history[:len(history)-1]

	resp, err := cs.SendMessage(ctx, history[len(history)-1].Parts...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return &models.Completion{StopReason: models.StopAborted}, nil
		}
		return &models.Completion{StopReason: models.StopError, ErrorMessage: err.Error()}, nil
	}

	var content []store.Content
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				content = append(content, store.Content{
					Type: store.ContentTypeText,
					Text: &store.TextContent{Content: string(p)},
				})
			case genai.FunctionCall:
				// Gemini function calls carry no call id; mint one so the
				// matching tool result can reference it.
				content = append(content, store.Content{
					Type: store.ContentTypeToolUse,
					ToolUse: &store.ToolUseContent{
						ID:    uuid.NewString(),
						Name:  p.Name,
						Input: p.Args,
					},
				})
			}
		}
	}

	return &models.Completion{StopReason: models.StopOK, Content: content}, nil
}

func toDeclarations(tools []models.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toSchema(t.InputSchema),
		})
	}
	return decls
}

// toSchema maps a JSON-schema-shaped input description to the genai schema
// type. Only the subset the tool schemas use is covered.
func toSchema(m map[string]any) *genai.Schema {
	if len(m) == 0 {
		return nil
	}
	s := &genai.Schema{Type: toSchemaType(m["type"])}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	return s
}

func toSchemaType(v any) genai.Type {
	t, _ := v.(string)
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

func toParts(content []store.Content) []genai.Part {
	var parts []genai.Part
	for _, c := range content {
		switch c.Type {
		case store.ContentTypeText:
			if c.Text != nil {
				parts = append(parts, genai.Text(c.Text.Content))
			}
		case store.ContentTypeToolUse:
			if c.ToolUse != nil {
				parts = append(parts, genai.FunctionCall{
					Name: c.ToolUse.Name,
					Args: c.ToolUse.Input,
				})
			}
		case store.ContentTypeToolResult:
			if c.ToolResult != nil {
				parts = append(parts, genai.FunctionResponse{
					Name: c.ToolResult.ToolUseID,
					Response: map[string]any{
						"result": c.ToolResult.Content,
					},
				})
			}
		}
	}
	return parts
}
