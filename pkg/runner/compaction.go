package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prathamdby/pi-mono/pkg/hooks"
	"github.com/prathamdby/pi-mono/pkg/store"
	"github.com/prathamdby/pi-mono/pkg/summary"
)

const (
	// DefaultCompactionThreshold is the fraction of the context window at which
	// the session is compacted. 0.6 means compact when usage reaches 60%.
	DefaultCompactionThreshold = 0.6

	// minCompactionEntries skips compaction for very short sessions.
	minCompactionEntries = 10

	compactionInstructions = "You are summarizing a conversation history for context compaction. " +
		"Create a dense, comprehensive summary of the following conversation that preserves:\n" +
		"- Key decisions and outcomes\n" +
		"- Important code/files that were created or modified\n" +
		"- Current state of any ongoing tasks\n" +
		"- Any instructions or preferences the user expressed\n\n" +
		"Be thorough but concise. This summary will replace the original messages."
)

// checkAndCompact compacts the session when the estimated context token count
// crosses the threshold. Hooks are told first; a cancelling handler skips the
// compaction. The pre-compaction session event has no handler timeout.
func checkAndCompact(ctx context.Context, sess store.Session, cfg Config, entries []store.Entry) error {
	if len(entries) < minCompactionEntries {
		return nil
	}

	estimate := cfg.estimate()
	total := 0
	for _, m := range contextMessages(entries) {
		total += estimate(m)
	}

	maxTokens := cfg.Model.Window()
	if float64(total) < float64(maxTokens)*cfg.threshold() {
		return nil
	}

	slog.Info("Session compaction triggered",
		"sessionID", sess.ID(),
		"estimatedTokens", total,
		"maxTokens", maxTokens,
		"threshold", cfg.threshold(),
	)

	if cfg.Hooks != nil {
		res := cfg.Hooks.EmitSession(ctx, &hooks.SessionEvent{
			Reason:    hooks.ReasonBeforeCompact,
			SessionID: sess.ID(),
			LeafID:    sess.LeafID(),
		})
		if res != nil && res.Cancel {
			slog.Info("Compaction cancelled by hook", "reason", res.Reason)
			return nil
		}
	}

	return compact(ctx, sess, cfg, entries, total)
}

// compact summarizes the older half of the context and appends a compaction
// entry pointing at the first kept entry.
func compact(ctx context.Context, sess store.Session, cfg Config, entries []store.Entry, tokensBefore int) error {
	// Never split between a tool call and its result.
	splitIdx := len(entries) / 2
	for splitIdx > 0 {
		e := entries[splitIdx]
		if e.Message != nil && e.Message.Role == store.RoleToolResult {
			splitIdx--
			continue
		}
		if splitIdx > 0 && hasToolCall(entries[splitIdx-1]) {
			splitIdx--
			continue
		}
		break
	}
	if splitIdx <= 1 {
		return nil
	}

	gen := &summary.Generator{Model: cfg.Model, Complete: cfg.Complete, Estimate: cfg.Estimate}
	res := gen.Generate(ctx, entries[:splitIdx], summary.Options{
		CustomInstructions: compactionInstructions,
		// Reserve a quarter of the window for the response and scaffolding.
		ReserveTokens: cfg.Model.Window() / 4,
		APIKey:        cfg.APIKey,
	})
	if res.Aborted {
		return nil
	}
	if res.ErrorMessage != "" {
		return fmt.Errorf("generating compaction summary: %s", res.ErrorMessage)
	}

	firstKept := entries[splitIdx].ID
	if _, err := sess.AppendCompaction(res.Summary, firstKept, tokensBefore); err != nil {
		return fmt.Errorf("failed to append compaction: %w", err)
	}
	return nil
}

func hasToolCall(e store.Entry) bool {
	if e.Message == nil {
		return false
	}
	for _, c := range e.Message.Content {
		if c.Type == store.ContentTypeToolUse {
			return true
		}
	}
	return false
}
