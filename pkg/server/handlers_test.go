package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/store"
	"github.com/prathamdby/pi-mono/pkg/store/jsonl"
	"github.com/prathamdby/pi-mono/pkg/summary"
)

func TestHandleBranch_EmptyBranchSkipsCheckpoint(t *testing.T) {
	m := jsonl.NewManager(t.TempDir())
	if err := m.NewAgent(&store.Agent{ID: "default", Name: "Test", Model: "test-model"}); err != nil {
		t.Fatal(err)
	}
	sess, err := m.NewSession("", "")
	if err != nil {
		t.Fatal(err)
	}

	rootID, err := sess.AppendMessage(store.RoleUser, store.TextBlocks("hello"))
	if err != nil {
		t.Fatal(err)
	}
	// The abandoned segment carries no conversational content.
	if _, err := sess.AppendThinkingLevelChange("high"); err != nil {
		t.Fatal(err)
	}
	sessionID := sess.ID()
	sess.Close()

	calls := 0
	gen := &summary.Generator{
		Model: models.Model{Provider: "test", ID: "test-model", ContextWindow: 128000},
		Complete: func(ctx context.Context, model models.Model, messages []models.Message, opts models.CompleteOptions) (*models.Completion, error) {
			calls++
			return &models.Completion{StopReason: models.StopOK, Content: store.TextBlocks("unused")}, nil
		},
	}
	s := New(m, nil, gen, "")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions/{id}/branch", s.handleBranch)

	body, _ := json.Marshal(map[string]any{"target_id": rootID, "summarize": true})
	req := httptest.NewRequest("POST", "/api/sessions/"+sessionID+"/branch", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if calls != 0 {
		t.Errorf("completion function should not be called for an empty branch, got %d calls", calls)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, ok := resp["summary_entry_id"]; ok {
		t.Error("empty branch must not be checkpointed as a branch summary")
	}
	if resp["leaf_id"] != rootID {
		t.Errorf("leaf should move to the target, got %v", resp["leaf_id"])
	}

	// A checkpoint would have been appended after the branch and would now be
	// the file's last entry.
	reloaded, err := m.LoadSession(sessionID)
	if err != nil {
		t.Fatal(err)
	}
	defer reloaded.Close()
	for _, e := range reloaded.Path(reloaded.LeafID()) {
		if e.Type == store.TypeBranchSummary {
			t.Error("no branch-summary entry should exist")
		}
	}
}
