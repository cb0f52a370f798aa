package branch

import (
	"sort"

	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/store"
)

// Tool names whose calls are scanned for file operations. The path argument
// must be a string under the "path" input key.
const (
	toolRead  = "read"
	toolWrite = "write"
	toolEdit  = "edit"
)

// FileOperations tracks which file paths the scanned turns read, wrote, and
// edited. Membership only; paths are deduplicated by string equality.
type FileOperations struct {
	Read    map[string]bool
	Written map[string]bool
	Edited  map[string]bool
}

// NewFileOperations returns an empty FileOperations.
func NewFileOperations() FileOperations {
	return FileOperations{
		Read:    make(map[string]bool),
		Written: make(map[string]bool),
		Edited:  make(map[string]bool),
	}
}

func (f FileOperations) record(content []store.Content) {
	for _, c := range content {
		if c.Type != store.ContentTypeToolUse || c.ToolUse == nil {
			continue
		}
		path, ok := c.ToolUse.Input["path"].(string)
		if !ok || path == "" {
			continue
		}
		switch c.ToolUse.Name {
		case toolRead:
			f.Read[path] = true
		case toolWrite:
			f.Written[path] = true
		case toolEdit:
			f.Edited[path] = true
		}
	}
}

// ModifiedPaths returns the union of written and edited paths, sorted.
func (f FileOperations) ModifiedPaths() []string {
	set := make(map[string]bool, len(f.Written)+len(f.Edited))
	for p := range f.Written {
		set[p] = true
	}
	for p := range f.Edited {
		set[p] = true
	}
	return sortedKeys(set)
}

// ReadOnlyPaths returns paths that were read but never written or edited,
// sorted. A path appearing in both a write and a read call is reported as
// modified only.
func (f FileOperations) ReadOnlyPaths() []string {
	set := make(map[string]bool, len(f.Read))
	for p := range f.Read {
		if !f.Written[p] && !f.Edited[p] {
			set[p] = true
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Preparation is the budgeted selection produced once per summarization
// request.
type Preparation struct {
	// Messages in chronological order (oldest admitted first).
	Messages []store.Message
	// FileOps accumulated from assistant tool calls.
	FileOps FileOperations
	// TotalTokens counts admitted messages only.
	TotalTokens int
}

// summarySlack is the fraction of the budget below which a compaction or
// branch-summary entry is still admitted even though it would exceed the
// budget. Summaries are disproportionately valuable context.
const summarySlack = 0.9

// Prepare applies a token budget to a chronological entry list, keeping the
// most recent content first. A budget of 0 means unlimited. This is a greedy
// recency-biased selection: recent turns always win over older ones
// regardless of size.
func Prepare(entries []store.Entry, tokenBudget int, estimate models.Estimator) Preparation {
	prep := Preparation{FileOps: NewFileOperations()}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		msg, ok := ExtractMessage(e)
		if !ok {
			continue
		}

		if msg.Role == store.RoleAssistant {
			prep.FileOps.record(msg.Content)
		}

		cost := estimate(msg)
		if tokenBudget > 0 && prep.TotalTokens+cost > tokenBudget {
			isSummary := e.Type == store.TypeCompaction || e.Type == store.TypeBranchSummary
			if isSummary && float64(prep.TotalTokens) < float64(tokenBudget)*summarySlack {
				prep.Messages = append([]store.Message{msg}, prep.Messages...)
				prep.TotalTokens += cost
			}
			break
		}

		prep.Messages = append([]store.Message{msg}, prep.Messages...)
		prep.TotalTokens += cost
	}

	return prep
}
