package store_test

import (
	"testing"

	"github.com/prathamdby/pi-mono/pkg/store"
	"github.com/prathamdby/pi-mono/pkg/store/jsonl"
)

func setupManager(t *testing.T) store.Manager {
	m := jsonl.NewManager(t.TempDir())

	defaultAgent := &store.Agent{
		ID:           "default",
		Name:         "Default Agent",
		Instructions: "You are a test agent.",
		Model:        "test-model",
	}
	if err := m.NewAgent(defaultAgent); err != nil {
		t.Fatalf("failed to create default agent: %v", err)
	}

	return m
}

func text(s string) []store.Content {
	return store.TextBlocks(s)
}

func TestSession_AppendAndContext(t *testing.T) {
	m := setupManager(t)
	s, err := m.NewSession("", "")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// 1. Append messages
	msg1, err := s.AppendMessage(store.RoleUser, text("Hello"))
	if err != nil {
		t.Fatal(err)
	}
	msg2, err := s.AppendMessage(store.RoleAssistant, text("Hi"))
	if err != nil {
		t.Fatal(err)
	}

	// 2. Check context
	ctx, err := s.GetContext()
	if err != nil {
		t.Fatal(err)
	}
	if len(ctx) != 2 {
		t.Errorf("expected 2 messages, got %d", len(ctx))
	}
	if ctx[0].ID != msg1 || ctx[1].ID != msg2 {
		t.Error("context order or IDs mismatch")
	}

	// 3. Branching
	if err := s.Branch(msg1); err != nil {
		t.Fatal(err)
	}
	msg3, err := s.AppendMessage(store.RoleUser, text("New branch"))
	if err != nil {
		t.Fatal(err)
	}

	ctx, err = s.GetContext()
	if err != nil {
		t.Fatal(err)
	}
	if len(ctx) != 2 {
		t.Errorf("expected 2 messages in branch, got %d", len(ctx))
	}
	if ctx[0].ID != msg1 || ctx[1].ID != msg3 {
		t.Error("branch context mismatch")
	}

	// 4. Compaction
	if _, err := s.AppendCompaction("Summary", msg3, 100); err != nil {
		t.Fatal(err)
	}
	msg4, err := s.AppendMessage(store.RoleAssistant, text("After compaction"))
	if err != nil {
		t.Fatal(err)
	}

	ctx, err = s.GetContext()
	if err != nil {
		t.Fatal(err)
	}
	if len(ctx) != 3 {
		t.Errorf("expected 3 entries after compaction, got %d", len(ctx))
	}
	if ctx[0].Type != store.TypeCompaction || ctx[1].ID != msg3 || ctx[2].ID != msg4 {
		t.Error("compaction context resolution mismatch")
	}
}

func TestSession_Persistence(t *testing.T) {
	m := setupManager(t)
	s, err := m.NewSession("", "")
	if err != nil {
		t.Fatal(err)
	}
	msg1, _ := s.AppendMessage(store.RoleUser, text("Store me"))
	id := s.ID()
	s.Close()

	s2, err := m.LoadSession(id)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	ctx, err := s2.GetContext()
	if err != nil {
		t.Fatal(err)
	}
	if len(ctx) != 1 || ctx[0].ID != msg1 {
		t.Error("reloaded session context mismatch")
	}
	if s2.LeafID() != msg1 {
		t.Errorf("expected leaf %s, got %s", msg1, s2.LeafID())
	}
}

func TestSession_BranchWithSummary(t *testing.T) {
	m := setupManager(t)
	s, err := m.NewSession("", "")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	msg1, _ := s.AppendMessage(store.RoleUser, text("keep"))
	msg2, _ := s.AppendMessage(store.RoleAssistant, text("abandon me"))
	msg3, _ := s.AppendMessage(store.RoleUser, text("abandon me too"))

	sumID, err := s.BranchWithSummary(msg1, "The branch explored an approach that was abandoned.")
	if err != nil {
		t.Fatal(err)
	}

	if s.LeafID() != sumID {
		t.Errorf("expected leaf to be summary entry %s, got %s", sumID, s.LeafID())
	}

	e, ok := s.GetEntry(sumID)
	if !ok {
		t.Fatal("summary entry not found")
	}
	if e.Type != store.TypeBranchSummary || e.BranchSummary == nil {
		t.Fatal("wrong entry type for summary")
	}
	if e.BranchSummary.FromID != msg3 {
		t.Errorf("expected FromID %s (old leaf), got %s", msg3, e.BranchSummary.FromID)
	}
	if e.ParentID == nil || *e.ParentID != msg1 {
		t.Error("summary entry should be a child of the branch point")
	}

	// Abandoned entries remain reachable by ID.
	if _, ok := s.GetEntry(msg2); !ok {
		t.Error("abandoned entry lost")
	}

	ctx, err := s.GetContext()
	if err != nil {
		t.Fatal(err)
	}
	if len(ctx) != 2 || ctx[0].ID != msg1 || ctx[1].ID != sumID {
		t.Error("context after branch with summary mismatch")
	}
}

func TestSession_PathAccessor(t *testing.T) {
	m := setupManager(t)
	s, err := m.NewSession("", "")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	msg1, _ := s.AppendMessage(store.RoleUser, text("a"))
	msg2, _ := s.AppendMessage(store.RoleAssistant, text("b"))
	msg3, _ := s.AppendMessage(store.RoleUser, text("c"))

	path := s.Path(msg3)
	if len(path) != 3 {
		t.Fatalf("expected path of 3, got %d", len(path))
	}
	if path[0].ID != msg3 || path[1].ID != msg2 || path[2].ID != msg1 {
		t.Error("path should run from entry to root")
	}

	if got := s.Path("nonexistent"); len(got) != 0 {
		t.Errorf("expected empty path for unknown entry, got %d", len(got))
	}
}

func TestSession_LabelsAndTree(t *testing.T) {
	m := setupManager(t)
	s, err := m.NewSession("", "")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	msg1, _ := s.AppendMessage(store.RoleUser, text("root msg"))
	if _, err := s.SetLabel(msg1, "checkpoint"); err != nil {
		t.Fatal(err)
	}

	tree, err := s.GetTree()
	if err != nil {
		t.Fatal(err)
	}
	if len(tree) != 1 {
		t.Fatalf("expected 1 root, got %d", len(tree))
	}
	if tree[0].Entry.ID != msg1 {
		t.Error("tree root mismatch")
	}
	if tree[0].Label != "checkpoint" {
		t.Errorf("expected label 'checkpoint', got %q", tree[0].Label)
	}
}

func TestManager_ForkFrom(t *testing.T) {
	m := setupManager(t)
	s, err := m.NewSession("", "")
	if err != nil {
		t.Fatal(err)
	}
	s.AppendMessage(store.RoleUser, text("original"))
	id := s.ID()
	s.Close()

	forked, err := m.ForkFrom(id)
	if err != nil {
		t.Fatal(err)
	}
	defer forked.Close()

	if forked.ID() == id {
		t.Error("fork should have a new ID")
	}
	if forked.Header().ParentSession != id {
		t.Error("fork should record its parent session")
	}

	ctx, err := forked.GetContext()
	if err != nil {
		t.Fatal(err)
	}
	if len(ctx) != 1 {
		t.Errorf("expected forked context of 1, got %d", len(ctx))
	}
}
