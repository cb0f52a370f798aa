package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/prathamdby/pi-mono/pkg/branch"
	"github.com/prathamdby/pi-mono/pkg/hooks"
	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/store"
	"github.com/prathamdby/pi-mono/pkg/tools"
)

// RunStep performs a single step of the agent's logic based on the session state.
// It fetches context, decides whether to call the model or execute a tool, and
// appends the result to the session.
func RunStep(ctx context.Context, sess store.Session, cfg Config) error {
	entries, err := sess.GetContext()
	if err != nil {
		return fmt.Errorf("failed to get session context: %w", err)
	}

	if len(entries) == 0 {
		slog.Debug("No context entries found, skipping step")
		return nil
	}

	slog.Debug("Fetched session context", "count", len(entries))

	lastEntry := entries[len(entries)-1]
	if lastEntry.Message == nil {
		return nil
	}

	switch lastEntry.Message.Role {
	case store.RoleUser, store.RoleToolResult:
		if err := checkAndCompact(ctx, sess, cfg, entries); err != nil {
			slog.Error("Compaction failed", "error", err)
		}
		slog.Info("Calling model", "sessionID", sess.ID())
		if err := stepCallModel(ctx, sess, cfg); err != nil {
			slog.Error("Model call failed", "error", err)
			return err
		}
		return nil
	case store.RoleAssistant:
		toolCalls := extractToolCalls(lastEntry.Message)
		if len(toolCalls) > 0 {
			return stepExecuteTools(ctx, sess, cfg, toolCalls)
		}
		return nil
	default:
		slog.Debug("Skipping step: no actionable last message", "role", lastEntry.Message.Role)
		return nil
	}
}

func stepCallModel(ctx context.Context, sess store.Session, cfg Config) error {
	// Re-fetch: compaction may have rewritten the effective context.
	entries, err := sess.GetContext()
	if err != nil {
		return fmt.Errorf("failed to get session context: %w", err)
	}

	msgs := contextMessages(entries)

	if cfg.Hooks != nil {
		if replaced := cfg.Hooks.EmitContext(ctx, &hooks.ContextEvent{
			SessionID: sess.ID(),
			Messages:  msgs,
		}); replaced != nil {
			msgs = replaced
		}
	}

	request := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		request = append(request, models.Message{Role: m.Role, Content: m.Content})
	}

	completion, err := cfg.Complete(ctx, cfg.Model, request, models.CompleteOptions{
		APIKey: cfg.APIKey,
		Tools:  toolDefinitions(cfg.Tools),
	})
	if err != nil {
		return fmt.Errorf("model call error: %w", err)
	}

	switch completion.StopReason {
	case models.StopAborted:
		slog.Info("Model call aborted", "sessionID", sess.ID())
		return nil
	case models.StopError:
		return fmt.Errorf("model error: %s", completion.ErrorMessage)
	}

	if len(completion.Content) == 0 {
		slog.Debug("Model returned no content", "sessionID", sess.ID())
		return nil
	}
	if _, err := sess.AppendMessage(store.RoleAssistant, completion.Content); err != nil {
		return fmt.Errorf("failed to append assistant message: %w", err)
	}
	return nil
}

// toolDefinitions declares the registry's tools to the model provider.
func toolDefinitions(reg *tools.Registry) []models.ToolDefinition {
	if reg == nil {
		return nil
	}
	var defs []models.ToolDefinition
	for _, t := range reg.List() {
		defs = append(defs, models.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

func stepExecuteTools(ctx context.Context, sess store.Session, cfg Config, toolCalls []store.Content) error {
	var firstErr error

	for _, toolCall := range toolCalls {
		call := toolCall.ToolUse
		result := runToolCall(ctx, sess, cfg, call)

		trc := result.ToolResultContent
		content := []store.Content{{
			Type:       store.ContentTypeToolResult,
			ToolResult: &trc,
		}}
		if _, err := sess.AppendMessage(store.RoleToolResult, content); err != nil {
			return fmt.Errorf("failed to append tool result: %w", err)
		}

		if cfg.Hooks != nil {
			cfg.Hooks.EmitToolResult(ctx, &hooks.ToolResultEvent{
				SessionID:  sess.ID(),
				ToolCallID: call.ID,
				Name:       call.Name,
				IsError:    result.IsError,
				Content:    result.Content,
			})
		}
		if result.hookErr != nil && firstErr == nil {
			firstErr = result.hookErr
		}
	}
	return firstErr
}

// toolOutcome is a tool result plus the hook error that produced it, if any.
type toolOutcome struct {
	store.ToolResultContent
	hookErr error
}

func runToolCall(ctx context.Context, sess store.Session, cfg Config, call *store.ToolUseContent) toolOutcome {
	out := toolOutcome{ToolResultContent: store.ToolResultContent{ToolUseID: call.ID}}

	if cfg.Hooks != nil {
		res, err := cfg.Hooks.EmitToolCall(ctx, &hooks.ToolCallEvent{
			SessionID:  sess.ID(),
			ToolCallID: call.ID,
			Name:       call.Name,
			Input:      call.Input,
		})
		if err != nil {
			out.IsError = true
			out.Content = fmt.Sprintf("Error: tool call rejected: %v", err)
			out.hookErr = err
			return out
		}
		if res != nil && res.Block {
			reason := res.Reason
			if reason == "" {
				reason = "blocked by hook"
			}
			out.IsError = true
			out.Content = fmt.Sprintf("Error: %s", reason)
			slog.Info("Tool call blocked", "tool", call.Name, "reason", reason)
			return out
		}
	}

	tool, ok := cfg.Tools.Get(call.Name)
	if !ok {
		out.IsError = true
		out.Content = fmt.Sprintf("Error: Tool '%s' not found.", call.Name)
		slog.Warn("Unknown tool called", "tool", call.Name)
		return out
	}

	slog.Info("Executing tool", "tool", call.Name, "sessionID", sess.ID())
	result, err := tool.Execute(ctx, call.Input)
	if err != nil {
		out.IsError = true
		out.Content = fmt.Sprintf("Error: %v", err)
		return out
	}

	out.Content = formatToolResult(result)
	return out
}

func formatToolResult(result any) string {
	if s, ok := result.(string); ok {
		return s
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

// contextMessages converts context entries to the transient message view sent
// to the model. Tool results pass through unchanged; summary entries become
// their synopsis text.
func contextMessages(entries []store.Entry) []store.Message {
	var msgs []store.Message
	for _, e := range entries {
		if e.Type == store.TypeMessage && e.Message != nil {
			msgs = append(msgs, store.Message{
				Role:      e.Message.Role,
				Content:   e.Message.Content,
				Timestamp: e.Timestamp,
			})
			continue
		}
		if m, ok := branch.ExtractMessage(e); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// Helper to extract tool calls from a message.
func extractToolCalls(msg *store.MessageEntry) []store.Content {
	var calls []store.Content
	for _, c := range msg.Content {
		if c.Type == store.ContentTypeToolUse && c.ToolUse != nil {
			calls = append(calls, c)
		}
	}
	return calls
}
