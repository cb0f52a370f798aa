// Package summary produces natural-language synopses of abandoned
// conversation branches, plus a deterministic report of the file operations
// the branch performed.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/prathamdby/pi-mono/pkg/branch"
	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/store"
)

const (
	// DefaultReserveTokens is subtracted from the model's context window to
	// leave room for the response and surrounding prompt scaffolding.
	DefaultReserveTokens = 16384

	// maxSummaryTokens bounds the size of the generated synopsis.
	maxSummaryTokens = 2048

	// NoContentSummary is returned when the token budget admits no messages;
	// the completion function is not called in that case. Callers should not
	// checkpoint it as a branch-summary entry.
	NoContentSummary = "The abandoned branch contained no conversational content."

	defaultInstructions = "Summarize the following conversation between a user and an AI coding " +
		"assistant. Preserve the user's goals, key decisions and their outcomes, and the current " +
		"state of any unfinished work. Be thorough but concise."
)

// Result is the outcome of a summarization attempt. Exactly one of the three
// conditions holds: a summary was produced, the call was aborted, or the
// provider failed. Failures are soft: navigation proceeds regardless.
type Result struct {
	Summary      string
	Aborted      bool
	ErrorMessage string
}

// Options configures a single Generate call.
type Options struct {
	// CustomInstructions replaces the default summarization instruction.
	CustomInstructions string
	// ReserveTokens defaults to DefaultReserveTokens when 0.
	ReserveTokens int
	// APIKey is the provider credential forwarded to the completion call.
	APIKey string
}

// Generator orchestrates branch preparation and the completion call.
type Generator struct {
	Model    models.Model
	Complete models.CompleteFunc
	// Estimate defaults to models.EstimateByLength when nil.
	Estimate models.Estimator
}

// Generate summarizes the given chronological entries. The completion function
// is invoked at most once, and not at all when the token budget admits no
// messages. Cancellation and provider failure are returned as typed results,
// never as panics or opaque errors.
func (g *Generator) Generate(ctx context.Context, entries []store.Entry, opts Options) Result {
	reserve := opts.ReserveTokens
	if reserve <= 0 {
		reserve = DefaultReserveTokens
	}
	estimate := g.Estimate
	if estimate == nil {
		estimate = models.EstimateByLength
	}

	budget := g.Model.Window() - reserve
	if budget < 1 {
		budget = 1
	}

	prep := branch.Prepare(entries, budget, estimate)
	if len(prep.Messages) == 0 {
		return Result{Summary: NoContentSummary}
	}

	instructions := opts.CustomInstructions
	if instructions == "" {
		instructions = defaultInstructions
	}
	prompt := instructions + "\n\n" + Transcript(prep.Messages)

	completion, err := g.Complete(ctx, g.Model, []models.Message{{
		Role:    store.RoleUser,
		Content: store.TextBlocks(prompt),
	}}, models.CompleteOptions{
		APIKey:    opts.APIKey,
		MaxTokens: maxSummaryTokens,
	})
	if err != nil {
		return Result{ErrorMessage: err.Error()}
	}

	switch completion.StopReason {
	case models.StopAborted:
		return Result{Aborted: true}
	case models.StopError:
		return Result{ErrorMessage: completion.ErrorMessage}
	}

	return Result{Summary: completion.Text() + fileOpsSection(prep.FileOps)}
}

// ForNavigation collects the branch abandoned by moving from oldLeafID to
// targetID and summarizes it. The collection is returned alongside the result
// so callers can persist the common ancestor.
func (g *Generator) ForNavigation(ctx context.Context, acc store.Accessor, oldLeafID, targetID string, opts Options) (branch.Collection, Result) {
	coll := branch.Collect(acc, oldLeafID, targetID)
	return coll, g.Generate(ctx, coll.Entries, opts)
}

// Transcript serializes messages to a role-prefixed text transcript. Non-text
// content blocks are omitted.
func Transcript(messages []store.Message) string {
	var sb strings.Builder
	for i, msg := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%s] %s\n", msg.Role, msg.Text())
	}
	return sb.String()
}

// fileOpsSection renders the deterministic file-operations report appended to
// the model output. This is template text, not model output: file provenance
// is never hallucinated.
func fileOpsSection(ops branch.FileOperations) string {
	readOnly := ops.ReadOnlyPaths()
	modified := ops.ModifiedPaths()
	if len(readOnly) == 0 && len(modified) == 0 {
		return ""
	}

	var sb strings.Builder
	if len(readOnly) > 0 {
		sb.WriteString("\n\nFiles read:\n")
		for _, p := range readOnly {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	if len(modified) > 0 {
		sb.WriteString("\n\nFiles modified:\n")
		for _, p := range modified {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
