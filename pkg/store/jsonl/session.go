package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prathamdby/pi-mono/pkg/store"
)

// Session implements the store.Session interface using a JSONL file.
type Session struct {
	mu         sync.RWMutex
	id         string
	filePath   string
	entries    map[string]store.Entry // ID -> Entry lookup
	leafID     string                 // Current tip of the tree
	fileHandle *os.File
	labels     map[string]string // EntryID -> Current Label
	notify     func(string)
	header     store.Header
}

func (s *Session) ID() string       { return s.id }
func (s *Session) FilePath() string { return s.filePath }
func (s *Session) LeafID() string   { return s.leafID }

// Header returns the session metadata.
func (s *Session) Header() store.Header {
	return s.header
}

// GetEntry returns the entry with the given ID.
func (s *Session) GetEntry(id string) (store.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Path returns the ancestor chain from the given entry to the root, entry
// first. A broken parent link truncates the chain instead of failing: callers
// that need strict tree integrity should validate separately.
func (s *Session) Path(id string) []store.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var path []store.Entry
	currID := id
	for currID != "" {
		e, ok := s.entries[currID]
		if !ok {
			break
		}
		path = append(path, e)
		if e.ParentID == nil {
			break
		}
		currID = *e.ParentID
	}
	return path
}

// Append persists a generic entry and advances the leaf pointer.
func (s *Session) Append(e store.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ParentID == nil && s.leafID != "" {
		pid := s.leafID
		e.ParentID = &pid
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	if err := s.writeLine(e); err != nil {
		return err
	}

	s.entries[e.ID] = e
	s.leafID = e.ID

	if e.Type == store.TypeLabel && e.Label != nil {
		s.labels[e.Label.TargetID] = e.Label.Label
	}

	if s.notify != nil {
		s.notify(s.id)
	}

	return nil
}

func (s *Session) AppendMessage(role store.MessageRole, content []store.Content) (string, error) {
	id := uuid.New().String()
	e := store.Entry{
		Type: store.TypeMessage,
		ID:   id,
		Message: &store.MessageEntry{
			Role:    role,
			Content: content,
		},
	}
	if err := s.Append(e); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Session) AppendCustomMessage(customType string, content []store.Content, display bool, details map[string]any) (string, error) {
	id := uuid.New().String()
	e := store.Entry{
		Type: store.TypeCustomMessage,
		ID:   id,
		CustomMessage: &store.CustomMessageEntry{
			CustomType: customType,
			Content:    content,
			Display:    display,
			Details:    details,
		},
	}
	if err := s.Append(e); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Session) AppendThinkingLevelChange(level string) (string, error) {
	id := uuid.New().String()
	e := store.Entry{
		Type: store.TypeThinkingLevel,
		ID:   id,
		ThinkingLevel: &store.ThinkingLevelEntry{
			ThinkingLevel: level,
		},
	}
	if err := s.Append(e); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Session) AppendModelChange(provider, modelID string) (string, error) {
	id := uuid.New().String()
	e := store.Entry{
		Type: store.TypeModelChange,
		ID:   id,
		ModelChange: &store.ModelChangeEntry{
			Provider: provider,
			ModelID:  modelID,
		},
	}
	if err := s.Append(e); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Session) AppendCompaction(summary, firstKeptID string, tokens int) (string, error) {
	id := uuid.New().String()
	e := store.Entry{
		Type: store.TypeCompaction,
		ID:   id,
		Compaction: &store.CompactionEntry{
			Summary:          summary,
			FirstKeptEntryID: firstKeptID,
			TokensBefore:     tokens,
		},
	}
	if err := s.Append(e); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Session) AppendSessionInfo(name string) (string, error) {
	id := uuid.New().String()
	e := store.Entry{
		Type: store.TypeSessionInfo,
		ID:   id,
		SessionInfo: &store.SessionInfoEntry{
			Name: name,
		},
	}
	if err := s.Append(e); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Session) AppendCustomEntry(customType string, data map[string]any) (string, error) {
	id := uuid.New().String()
	e := store.Entry{
		Type: store.TypeCustom,
		ID:   id,
		Custom: &store.CustomEntry{
			CustomType: customType,
			Data:       data,
		},
	}
	if err := s.Append(e); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Session) SetLabel(targetID string, label string) (string, error) {
	id := uuid.New().String()
	e := store.Entry{
		Type: store.TypeLabel,
		ID:   id,
		Label: &store.LabelEntry{
			TargetID: targetID,
			Label:    label,
		},
	}
	if err := s.Append(e); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Session) Branch(entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entryID]; !ok && entryID != "" {
		return fmt.Errorf("entry not found: %s", entryID)
	}

	s.leafID = entryID
	return nil
}

func (s *Session) BranchWithSummary(branchFromID string, summary string) (string, error) {
	oldLeaf := s.LeafID()
	if err := s.Branch(branchFromID); err != nil {
		return "", err
	}

	id := uuid.New().String()
	e := store.Entry{
		Type: store.TypeBranchSummary,
		ID:   id,
		BranchSummary: &store.BranchSummaryEntry{
			Summary: summary,
			FromID:  oldLeaf,
		},
	}
	if err := s.Append(e); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Session) CreateBranchedSession(leafID string) (string, error) {
	// Root dir is two levels up from session file (sessions/id.jsonl)
	rootDir := filepath.Dir(filepath.Dir(s.filePath))
	m := NewManager(rootDir)

	agentID := s.header.Agent.ID

	newS, err := m.NewSession(agentID, s.id)
	if err != nil {
		return "", err
	}
	defer newS.Close()

	s.mu.RLock()
	var path []store.Entry
	currID := leafID
	for currID != "" {
		e, ok := s.entries[currID]
		if !ok {
			s.mu.RUnlock()
			return "", fmt.Errorf("broken path at %s", currID)
		}
		path = append([]store.Entry{e}, path...)
		if e.ParentID == nil {
			break
		}
		currID = *e.ParentID
	}
	s.mu.RUnlock()

	for _, e := range path {
		if err := newS.Append(e); err != nil {
			return "", err
		}
	}

	return newS.ID(), nil
}

func (s *Session) GetContext() ([]store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fullPath []store.Entry
	currID := s.leafID

	for currID != "" {
		e, ok := s.entries[currID]
		if !ok {
			return nil, fmt.Errorf("broken parent link: %s", currID)
		}
		fullPath = append([]store.Entry{e}, fullPath...)

		if e.ParentID == nil {
			break
		}
		currID = *e.ParentID
	}

	var mostRecentCompaction *store.CompactionEntry
	compactionIndex := -1

	for i := len(fullPath) - 1; i >= 0; i-- {
		if fullPath[i].Type == store.TypeCompaction {
			mostRecentCompaction = fullPath[i].Compaction
			compactionIndex = i
			break
		}
	}

	if mostRecentCompaction == nil {
		return fullPath, nil
	}

	resolved := []store.Entry{fullPath[compactionIndex]}
	firstKeptID := mostRecentCompaction.FirstKeptEntryID
	include := false
	for _, e := range fullPath {
		if e.ID == firstKeptID {
			include = true
		}
		if include && e.Type != store.TypeCompaction {
			resolved = append(resolved, e)
		}
	}

	return resolved, nil
}

func (s *Session) GetTree() ([]store.TreeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byParent := make(map[string][]store.Entry)
	var roots []store.Entry

	for _, e := range s.entries {
		if e.ParentID == nil {
			roots = append(roots, e)
		} else {
			byParent[*e.ParentID] = append(byParent[*e.ParentID], e)
		}
	}

	var build func(store.Entry) store.TreeNode
	build = func(e store.Entry) store.TreeNode {
		node := store.TreeNode{
			Entry: e,
			Label: s.labels[e.ID],
		}
		children := byParent[e.ID]
		sort.Slice(children, func(i, j int) bool {
			return children[i].Timestamp.Before(children[j].Timestamp)
		})

		for _, child := range children {
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	var tree []store.TreeNode
	sort.Slice(roots, func(i, j int) bool {
		return roots[i].Timestamp.Before(roots[j].Timestamp)
	})
	for _, r := range roots {
		tree = append(tree, build(r))
	}

	return tree, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fileHandle != nil {
		return s.fileHandle.Close()
	}
	return nil
}

func (s *Session) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := s.fileHandle.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (s *Session) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fileHandle.Seek(0, 0); err != nil {
		return err
	}

	scanner := bufio.NewScanner(s.fileHandle)

	// Skip header (first line)
	scanner.Scan()

	var lastID string
	for scanner.Scan() {
		var e store.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue // skip bad lines
		}
		s.entries[e.ID] = e
		lastID = e.ID

		if e.Type == store.TypeLabel && e.Label != nil {
			s.labels[e.Label.TargetID] = e.Label.Label
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	// Entries are appended to disk immediately, so the last line on disk is
	// the current leaf.
	if lastID != "" {
		s.leafID = lastID
	}

	return nil
}
