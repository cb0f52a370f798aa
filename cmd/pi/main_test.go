package main

import (
	"strings"
	"testing"

	"github.com/prathamdby/pi-mono/pkg/hooks"
	"github.com/prathamdby/pi-mono/pkg/store"
)

func TestRenderCustom_PanicReported(t *testing.T) {
	panicking := func(msg store.Message, opts hooks.RenderOptions, theme hooks.Theme) (string, bool) {
		panic("renderer bug")
	}
	msg := store.Message{Role: store.RoleHookMessage, CustomType: "status", Content: store.TextBlocks("hi")}

	if _, _, ok := renderCustom(panicking, msg, hooks.DefaultTheme()); ok {
		t.Fatal("panicking renderer should report failure")
	}
}

func TestRenderEntry_PanickingRendererFallsBack(t *testing.T) {
	h := hooks.NewHook("bad.hook")
	h.RegisterRenderer("status", func(msg store.Message, opts hooks.RenderOptions, theme hooks.Theme) (string, bool) {
		panic("boom")
	})

	m := model{
		hookRunner: hooks.NewRunner([]*hooks.Hook{h}, "", nil, nil),
		theme:      hooks.DefaultTheme(),
	}

	var sb strings.Builder
	m.renderEntry(&sb, store.Entry{
		Type: store.TypeCustomMessage,
		ID:   "cm1",
		CustomMessage: &store.CustomMessageEntry{
			CustomType: "status",
			Content:    store.TextBlocks("deploy finished"),
			Display:    true,
		},
	})

	out := sb.String()
	if !strings.Contains(out, "[status]") || !strings.Contains(out, "deploy finished") {
		t.Fatalf("expected default label rendering, got %q", out)
	}
}

func TestRenderEntry_WorkingRendererUsed(t *testing.T) {
	h := hooks.NewHook("good.hook")
	h.RegisterRenderer("status", func(msg store.Message, opts hooks.RenderOptions, theme hooks.Theme) (string, bool) {
		return "status: " + msg.Text(), true
	})

	m := model{
		hookRunner: hooks.NewRunner([]*hooks.Hook{h}, "", nil, nil),
		theme:      hooks.DefaultTheme(),
	}

	var sb strings.Builder
	m.renderEntry(&sb, store.Entry{
		Type: store.TypeCustomMessage,
		ID:   "cm1",
		CustomMessage: &store.CustomMessageEntry{
			CustomType: "status",
			Content:    store.TextBlocks("deploy finished"),
			Display:    true,
		},
	})

	if !strings.Contains(sb.String(), "status: deploy finished") {
		t.Fatalf("hook renderer output missing, got %q", sb.String())
	}
}
