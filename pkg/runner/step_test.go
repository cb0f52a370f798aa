package runner_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prathamdby/pi-mono/pkg/hooks"
	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/runner"
	"github.com/prathamdby/pi-mono/pkg/store"
	"github.com/prathamdby/pi-mono/pkg/store/jsonl"
	"github.com/prathamdby/pi-mono/pkg/tools"
)

func setupSession(t *testing.T) store.Session {
	m := jsonl.NewManager(t.TempDir())
	if err := m.NewAgent(&store.Agent{ID: "default", Name: "Test", Model: "test-model"}); err != nil {
		t.Fatal(err)
	}
	s, err := m.NewSession("", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func stubComplete(reply string) models.CompleteFunc {
	return func(ctx context.Context, model models.Model, messages []models.Message, opts models.CompleteOptions) (*models.Completion, error) {
		return &models.Completion{StopReason: models.StopOK, Content: store.TextBlocks(reply)}, nil
	}
}

// echoTool returns its input argument verbatim.
type echoTool struct{}

func (echoTool) Name() string                { return "echo" }
func (echoTool) Description() string         { return "Echo the value argument." }
func (echoTool) InputSchema() map[string]any { return map[string]any{} }
func (echoTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	v, _ := input["value"].(string)
	return v, nil
}

func baseConfig(complete models.CompleteFunc) runner.Config {
	reg := tools.NewRegistry()
	reg.Register(echoTool{})
	return runner.Config{
		Model:    models.Model{Provider: "test", ID: "test-model", ContextWindow: 1_000_000},
		Complete: complete,
		Tools:    reg,
	}
}

func TestRunStep_CallsModelOnUserMessage(t *testing.T) {
	s := setupSession(t)
	if _, err := s.AppendMessage(store.RoleUser, store.TextBlocks("hello")); err != nil {
		t.Fatal(err)
	}

	if err := runner.RunStep(context.Background(), s, baseConfig(stubComplete("hi there"))); err != nil {
		t.Fatal(err)
	}

	ctx, err := s.GetContext()
	if err != nil {
		t.Fatal(err)
	}
	last := ctx[len(ctx)-1]
	if last.Message == nil || last.Message.Role != store.RoleAssistant {
		t.Fatal("expected appended assistant message")
	}
	if got := (store.Message{Content: last.Message.Content}).Text(); got != "hi there" {
		t.Errorf("assistant text mismatch: %q", got)
	}
}

func TestRunStep_DeclaresToolsAndAppendsToolUse(t *testing.T) {
	s := setupSession(t)
	if _, err := s.AppendMessage(store.RoleUser, store.TextBlocks("write something")); err != nil {
		t.Fatal(err)
	}

	var declared []models.ToolDefinition
	complete := func(ctx context.Context, model models.Model, messages []models.Message, opts models.CompleteOptions) (*models.Completion, error) {
		declared = opts.Tools
		return &models.Completion{StopReason: models.StopOK, Content: []store.Content{{
			Type: store.ContentTypeToolUse,
			ToolUse: &store.ToolUseContent{
				ID:    "call-1",
				Name:  "echo",
				Input: map[string]any{"value": "pong"},
			},
		}}}, nil
	}

	if err := runner.RunStep(context.Background(), s, baseConfig(complete)); err != nil {
		t.Fatal(err)
	}

	if len(declared) != 1 || declared[0].Name != "echo" {
		t.Fatalf("expected the echo tool to be declared, got %+v", declared)
	}

	ctx, _ := s.GetContext()
	last := ctx[len(ctx)-1]
	if last.Message == nil || last.Message.Role != store.RoleAssistant {
		t.Fatal("expected appended assistant message")
	}
	tu := last.Message.Content[0].ToolUse
	if tu == nil || tu.Name != "echo" || tu.Input["value"] != "pong" {
		t.Errorf("tool use mismatch: %+v", tu)
	}
}

func TestRunStep_ExecutesToolCalls(t *testing.T) {
	s := setupSession(t)
	s.AppendMessage(store.RoleUser, store.TextBlocks("run the tool"))
	s.AppendMessage(store.RoleAssistant, []store.Content{{
		Type: store.ContentTypeToolUse,
		ToolUse: &store.ToolUseContent{
			ID:    "call-1",
			Name:  "echo",
			Input: map[string]any{"value": "ping"},
		},
	}})

	cfg := baseConfig(stubComplete("unused"))

	var observed []hooks.ToolResultEvent
	h := hooks.NewHook("observer.hook")
	h.On(hooks.EventToolResult, func(ctx context.Context, ev hooks.Event, hctx *hooks.EventContext) (*hooks.Result, error) {
		observed = append(observed, *ev.(*hooks.ToolResultEvent))
		return nil, nil
	})
	cfg.Hooks = hooks.NewRunner([]*hooks.Hook{h}, "", s, nil)

	if err := runner.RunStep(context.Background(), s, cfg); err != nil {
		t.Fatal(err)
	}

	ctx, _ := s.GetContext()
	last := ctx[len(ctx)-1]
	if last.Message == nil || last.Message.Role != store.RoleToolResult {
		t.Fatal("expected appended tool result")
	}
	tr := last.Message.Content[0].ToolResult
	if tr == nil || tr.ToolUseID != "call-1" || tr.IsError || tr.Content != "ping" {
		t.Errorf("tool result mismatch: %+v", tr)
	}

	if len(observed) != 1 || observed[0].Content != "ping" || observed[0].Name != "echo" {
		t.Errorf("tool result event mismatch: %+v", observed)
	}
}

func TestRunStep_BlockedToolCall(t *testing.T) {
	s := setupSession(t)
	s.AppendMessage(store.RoleUser, store.TextBlocks("run the tool"))
	s.AppendMessage(store.RoleAssistant, []store.Content{{
		Type: store.ContentTypeToolUse,
		ToolUse: &store.ToolUseContent{
			ID:    "call-1",
			Name:  "echo",
			Input: map[string]any{"value": "ping"},
		},
	}})

	cfg := baseConfig(stubComplete("unused"))

	h := hooks.NewHook("guard.hook")
	h.On(hooks.EventToolCall, func(ctx context.Context, ev hooks.Event, hctx *hooks.EventContext) (*hooks.Result, error) {
		return &hooks.Result{Block: true, Reason: "not allowed here"}, nil
	})
	cfg.Hooks = hooks.NewRunner([]*hooks.Hook{h}, "", s, nil)

	if err := runner.RunStep(context.Background(), s, cfg); err != nil {
		t.Fatal(err)
	}

	ctx, _ := s.GetContext()
	last := ctx[len(ctx)-1]
	tr := last.Message.Content[0].ToolResult
	if tr == nil || !tr.IsError || !strings.Contains(tr.Content, "not allowed here") {
		t.Errorf("expected blocked tool result, got %+v", tr)
	}
}

func TestRunStep_UnknownTool(t *testing.T) {
	s := setupSession(t)
	s.AppendMessage(store.RoleUser, store.TextBlocks("go"))
	s.AppendMessage(store.RoleAssistant, []store.Content{{
		Type: store.ContentTypeToolUse,
		ToolUse: &store.ToolUseContent{
			ID:   "call-1",
			Name: "does-not-exist",
		},
	}})

	if err := runner.RunStep(context.Background(), s, baseConfig(stubComplete("unused"))); err != nil {
		t.Fatal(err)
	}

	ctx, _ := s.GetContext()
	tr := ctx[len(ctx)-1].Message.Content[0].ToolResult
	if tr == nil || !tr.IsError {
		t.Errorf("expected error result for unknown tool, got %+v", tr)
	}
}

func TestRunStep_CompactsLongSessions(t *testing.T) {
	s := setupSession(t)
	long := strings.Repeat("z", 400)
	for i := 0; i < 6; i++ {
		s.AppendMessage(store.RoleUser, store.TextBlocks(long))
		s.AppendMessage(store.RoleAssistant, store.TextBlocks(long))
	}
	s.AppendMessage(store.RoleUser, store.TextBlocks("latest"))

	cfg := baseConfig(stubComplete("ok"))
	cfg.Model.ContextWindow = 1000 // 13 entries at ~100 tokens each is far over 60%

	if err := runner.RunStep(context.Background(), s, cfg); err != nil {
		t.Fatal(err)
	}

	ctx, err := s.GetContext()
	if err != nil {
		t.Fatal(err)
	}
	if ctx[0].Type != store.TypeCompaction {
		t.Fatalf("expected context to start with a compaction entry, got %s", ctx[0].Type)
	}
	if ctx[0].Compaction.TokensBefore == 0 {
		t.Error("compaction should record the pre-compaction token count")
	}
	if len(ctx) >= 13 {
		t.Errorf("context should shrink after compaction, got %d entries", len(ctx))
	}
}
