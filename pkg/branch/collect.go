package branch

import (
	"github.com/prathamdby/pi-mono/pkg/store"
)

// Collection is the set of entries abandoned by a navigation, in chronological
// order, together with the nearest entry shared by the old and new positions.
type Collection struct {
	Entries          []store.Entry
	CommonAncestorID string // empty when there is nothing shared
}

// Collect computes the entries to summarize when the session moves from
// oldLeafID to targetID. An empty oldLeafID means this is the first navigation
// in the session and there is nothing to summarize.
//
// The common ancestor is the first entry on the target's root path that also
// appears on the old leaf's root path. Entries are gathered from the old leaf
// up to (excluding) that ancestor; compaction and branch-summary entries are
// collected like any other, since their synopsis text is valid context for the
// new summary. A missing parent link stops collection silently.
func Collect(acc store.Accessor, oldLeafID, targetID string) Collection {
	if oldLeafID == "" {
		return Collection{}
	}

	oldPath := acc.Path(oldLeafID)
	oldSet := make(map[string]bool, len(oldPath))
	for _, e := range oldPath {
		oldSet[e.ID] = true
	}

	ancestor := ""
	for _, e := range acc.Path(targetID) {
		if oldSet[e.ID] {
			ancestor = e.ID
			break
		}
	}

	var entries []store.Entry
	currID := oldLeafID
	for currID != "" && currID != ancestor {
		e, ok := acc.GetEntry(currID)
		if !ok {
			break
		}
		entries = append(entries, e)
		if e.ParentID == nil {
			break
		}
		currID = *e.ParentID
	}

	// Gathered leaf-to-root; flip to chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return Collection{Entries: entries, CommonAncestorID: ancestor}
}
