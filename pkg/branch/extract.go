// Package branch computes the context that must be preserved when the user
// navigates away from a conversation branch: which entries were abandoned,
// which of them fit a token budget, and which files the abandoned turns
// touched.
package branch

import (
	"github.com/prathamdby/pi-mono/pkg/store"
)

// ExtractMessage converts a session entry into its transient conversational
// message. The second return value is false for entries that carry no
// conversational content: tool results (folded into the assistant turn that
// requested them), thinking level and model changes, custom data, and labels.
func ExtractMessage(e store.Entry) (store.Message, bool) {
	switch e.Type {
	case store.TypeMessage:
		if e.Message == nil || e.Message.Role == store.RoleToolResult {
			return store.Message{}, false
		}
		return store.Message{
			Role:      e.Message.Role,
			Content:   e.Message.Content,
			Timestamp: e.Timestamp,
		}, true

	case store.TypeCustomMessage:
		if e.CustomMessage == nil {
			return store.Message{}, false
		}
		return store.Message{
			Role:       store.RoleHookMessage,
			Content:    e.CustomMessage.Content,
			Timestamp:  e.Timestamp,
			CustomType: e.CustomMessage.CustomType,
			Display:    e.CustomMessage.Display,
			Details:    e.CustomMessage.Details,
		}, true

	case store.TypeBranchSummary:
		if e.BranchSummary == nil {
			return store.Message{}, false
		}
		return store.Message{
			Role:      store.RoleBranchSummary,
			Content:   store.TextBlocks(e.BranchSummary.Summary),
			Timestamp: e.Timestamp,
			FromID:    e.BranchSummary.FromID,
		}, true

	case store.TypeCompaction:
		if e.Compaction == nil {
			return store.Message{}, false
		}
		return store.Message{
			Role:         store.RoleCompactionSummary,
			Content:      store.TextBlocks(e.Compaction.Summary),
			Timestamp:    e.Timestamp,
			TokensBefore: e.Compaction.TokensBefore,
		}, true
	}

	return store.Message{}, false
}
