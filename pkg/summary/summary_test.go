package summary_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/store"
	"github.com/prathamdby/pi-mono/pkg/summary"
)

// testModel has a window comfortably above the default reserve so the budget
// admits everything unless a test narrows it explicitly.
func testModel() models.Model {
	return models.Model{Provider: "test", ID: "test-model", ContextWindow: 128000}
}

func messageEntry(id string, role store.MessageRole, text string) store.Entry {
	return store.Entry{
		Type:    store.TypeMessage,
		ID:      id,
		Message: &store.MessageEntry{Role: role, Content: store.TextBlocks(text)},
	}
}

// stubComplete records calls and returns a fixed completion.
type stubComplete struct {
	calls      int
	lastPrompt string
	completion *models.Completion
	err        error
}

func (s *stubComplete) fn(ctx context.Context, model models.Model, messages []models.Message, opts models.CompleteOptions) (*models.Completion, error) {
	s.calls++
	if len(messages) > 0 {
		s.lastPrompt = store.Message{Role: messages[0].Role, Content: messages[0].Content}.Text()
	}
	return s.completion, s.err
}

func TestGenerate_EmptyBranchSkipsModel(t *testing.T) {
	stub := &stubComplete{completion: &models.Completion{StopReason: models.StopOK, Content: store.TextBlocks("unused")}}
	g := &summary.Generator{Model: testModel(), Complete: stub.fn}

	res := g.Generate(context.Background(), nil, summary.Options{})

	if stub.calls != 0 {
		t.Errorf("expected no model calls, got %d", stub.calls)
	}
	if res.Summary != summary.NoContentSummary || res.Aborted || res.ErrorMessage != "" {
		t.Errorf("expected placeholder summary, got %+v", res)
	}
}

func TestGenerate_AppendsFileOperations(t *testing.T) {
	stub := &stubComplete{completion: &models.Completion{StopReason: models.StopOK, Content: store.TextBlocks("The user refactored the parser.")}}
	g := &summary.Generator{Model: testModel(), Complete: stub.fn}

	entries := []store.Entry{
		messageEntry("1", store.RoleUser, "please refactor"),
		{
			Type: store.TypeMessage,
			ID:   "2",
			Message: &store.MessageEntry{
				Role: store.RoleAssistant,
				Content: []store.Content{{
					Type: store.ContentTypeToolUse,
					ToolUse: &store.ToolUseContent{
						ID:    "c1",
						Name:  "edit",
						Input: map[string]any{"path": "/src/parser.go"},
					},
				}},
			},
		},
	}

	res := g.Generate(context.Background(), entries, summary.Options{})

	if stub.calls != 1 {
		t.Fatalf("expected 1 model call, got %d", stub.calls)
	}
	if !strings.HasPrefix(res.Summary, "The user refactored the parser.") {
		t.Errorf("summary should start with model output, got %q", res.Summary)
	}
	if !strings.Contains(res.Summary, "Files modified:") || !strings.Contains(res.Summary, "/src/parser.go") {
		t.Errorf("summary missing file report: %q", res.Summary)
	}
	if strings.Contains(res.Summary, "Files read:") {
		t.Errorf("no read-only files expected: %q", res.Summary)
	}
}

func TestGenerate_TranscriptInPrompt(t *testing.T) {
	stub := &stubComplete{completion: &models.Completion{StopReason: models.StopOK, Content: store.TextBlocks("ok")}}
	g := &summary.Generator{Model: testModel(), Complete: stub.fn}

	entries := []store.Entry{
		messageEntry("1", store.RoleUser, "hello there"),
		messageEntry("2", store.RoleAssistant, "hi back"),
	}

	g.Generate(context.Background(), entries, summary.Options{CustomInstructions: "Custom instructions."})

	if !strings.HasPrefix(stub.lastPrompt, "Custom instructions.") {
		t.Errorf("custom instructions should lead the prompt: %q", stub.lastPrompt)
	}
	if !strings.Contains(stub.lastPrompt, "[user] hello there") || !strings.Contains(stub.lastPrompt, "[assistant] hi back") {
		t.Errorf("transcript missing from prompt: %q", stub.lastPrompt)
	}
}

func TestGenerate_AbortedAndErrors(t *testing.T) {
	t.Run("aborted", func(t *testing.T) {
		stub := &stubComplete{completion: &models.Completion{StopReason: models.StopAborted}}
		g := &summary.Generator{Model: testModel(), Complete: stub.fn}
		res := g.Generate(context.Background(), []store.Entry{messageEntry("1", store.RoleUser, "x")}, summary.Options{})
		if !res.Aborted || res.Summary != "" {
			t.Errorf("expected aborted result, got %+v", res)
		}
	})

	t.Run("provider error", func(t *testing.T) {
		stub := &stubComplete{completion: &models.Completion{StopReason: models.StopError, ErrorMessage: "quota exceeded"}}
		g := &summary.Generator{Model: testModel(), Complete: stub.fn}
		res := g.Generate(context.Background(), []store.Entry{messageEntry("1", store.RoleUser, "x")}, summary.Options{})
		if res.ErrorMessage != "quota exceeded" {
			t.Errorf("expected provider error, got %+v", res)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		stub := &stubComplete{err: errors.New("connection refused")}
		g := &summary.Generator{Model: testModel(), Complete: stub.fn}
		res := g.Generate(context.Background(), []store.Entry{messageEntry("1", store.RoleUser, "x")}, summary.Options{})
		if res.ErrorMessage != "connection refused" {
			t.Errorf("expected transport error, got %+v", res)
		}
	})
}

func TestGenerate_BudgetExcludesOldMessages(t *testing.T) {
	// Window 1000 with reserve 900 leaves a budget of 100 tokens. The old
	// 2000-char message (500 tokens) must be dropped; the recent short ones fit.
	stub := &stubComplete{completion: &models.Completion{StopReason: models.StopOK, Content: store.TextBlocks("ok")}}
	small := models.Model{Provider: "test", ID: "test-model", ContextWindow: 1000}
	g := &summary.Generator{Model: small, Complete: stub.fn}

	entries := []store.Entry{
		messageEntry("old", store.RoleUser, strings.Repeat("a", 2000)),
		messageEntry("mid", store.RoleAssistant, "short reply"),
		messageEntry("new", store.RoleUser, "latest question"),
	}

	g.Generate(context.Background(), entries, summary.Options{ReserveTokens: 900})

	if strings.Contains(stub.lastPrompt, strings.Repeat("a", 100)) {
		t.Error("over-budget message leaked into the prompt")
	}
	if !strings.Contains(stub.lastPrompt, "latest question") {
		t.Error("recent message missing from prompt")
	}
}

func TestForNavigation(t *testing.T) {
	f := newFakeAccessor()
	f.addMessage("root", "", store.RoleUser, "start")
	f.addMessage("a", "root", store.RoleAssistant, "fork")
	f.addMessage("b", "a", store.RoleUser, "dead end work")

	stub := &stubComplete{completion: &models.Completion{StopReason: models.StopOK, Content: store.TextBlocks("Explored a dead end.")}}
	g := &summary.Generator{Model: testModel(), Complete: stub.fn}

	coll, res := g.ForNavigation(context.Background(), f, "b", "a", summary.Options{})

	if coll.CommonAncestorID != "a" {
		t.Errorf("expected ancestor a, got %q", coll.CommonAncestorID)
	}
	if res.Summary != "Explored a dead end." {
		t.Errorf("unexpected summary %q", res.Summary)
	}
	if !strings.Contains(stub.lastPrompt, "dead end work") {
		t.Error("abandoned entry missing from prompt")
	}
	if strings.Contains(stub.lastPrompt, "[assistant] fork") {
		t.Error("shared ancestor should not be summarized")
	}
}

// fakeAccessor is a minimal in-memory store.Accessor.
type fakeAccessor struct {
	entries map[string]store.Entry
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{entries: make(map[string]store.Entry)}
}

func (f *fakeAccessor) addMessage(id, parentID string, role store.MessageRole, text string) {
	e := store.Entry{
		Type:    store.TypeMessage,
		ID:      id,
		Message: &store.MessageEntry{Role: role, Content: store.TextBlocks(text)},
	}
	if parentID != "" {
		e.ParentID = &parentID
	}
	f.entries[id] = e
}

func (f *fakeAccessor) GetEntry(id string) (store.Entry, bool) {
	e, ok := f.entries[id]
	return e, ok
}

func (f *fakeAccessor) Path(id string) []store.Entry {
	var path []store.Entry
	currID := id
	for currID != "" {
		e, ok := f.entries[currID]
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
