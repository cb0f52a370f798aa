package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/store"
)

// DefaultHandlerTimeout bounds a single handler invocation on the emit and
// context protocols. Tool-call dispatch is never timed out, and neither is a
// session event with reason ReasonBeforeCompact, since pre-compaction work is
// legitimately slow.
const DefaultHandlerTimeout = 30 * time.Second

// Runner dispatches events to loaded hooks. Hooks run in load order; within a
// hook, handlers run in registration order. The three protocols differ:
//
//   - Emit (session, tool result, custom): per-handler timeout, handler errors
//     are reported to error listeners and skipped, a cancelling session result
//     short-circuits, otherwise the last non-nil result wins.
//   - EmitToolCall: no timeout, the first handler error aborts dispatch and
//     propagates, a blocking result short-circuits.
//   - EmitContext: per-handler timeout, errors reported and skipped, results
//     chain through the handlers.
type Runner struct {
	hooks []*Hook

	mu        sync.Mutex
	listeners map[int]ErrorListener
	nextID    int
	ui        UIContext
	hasUI     bool

	cwd      string
	session  store.Accessor
	registry *models.Registry

	// HandlerTimeout overrides DefaultHandlerTimeout when positive.
	HandlerTimeout time.Duration
}

// NewRunner wires the given hooks, in load order, to a session and model
// registry. No frontend is attached yet; handlers see the headless fallback
// UI until SetUI is called.
func NewRunner(hooks []*Hook, cwd string, session store.Accessor, registry *models.Registry) *Runner {
	return &Runner{
		hooks:     hooks,
		listeners: make(map[int]ErrorListener),
		ui:        fallbackUI{},
		cwd:       cwd,
		session:   session,
		registry:  registry,
	}
}

// SetUI attaches a frontend. Passing nil detaches it and restores the
// headless fallback.
func (r *Runner) SetUI(ui UIContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ui == nil {
		r.ui = fallbackUI{}
		r.hasUI = false
		return
	}
	r.ui = ui
	r.hasUI = true
}

// SetSendMessage gives every hook a way to surface transient messages.
func (r *Runner) SetSendMessage(fn func(msg store.Message)) {
	for _, h := range r.hooks {
		h.SendMessage = fn
	}
}

// SetAppendEntry gives every hook a way to persist entries to the session.
func (r *Runner) SetAppendEntry(fn func(e store.Entry)) {
	for _, h := range r.hooks {
		h.AppendEntry = fn
	}
}

// OnError subscribes a listener to handler failures. The returned function
// detaches it.
func (r *Runner) OnError(l ErrorListener) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// RendererFor finds a renderer for the given custom message type, searching
// hooks in load order.
func (r *Runner) RendererFor(customType string) (MessageRenderer, bool) {
	for _, h := range r.hooks {
		if ren, ok := h.Renderer(customType); ok {
			return ren, true
		}
	}
	return nil, false
}

// Commands returns all hook-contributed commands in load order.
func (r *Runner) Commands() []Command {
	var out []Command
	for _, h := range r.hooks {
		out = append(out, h.Commands()...)
	}
	return out
}

// FindCommand looks a command up by name, searching hooks in load order.
func (r *Runner) FindCommand(name string) (Command, bool) {
	for _, h := range r.hooks {
		for _, cmd := range h.Commands() {
			if cmd.Name == name {
				return cmd, true
			}
		}
	}
	return Command{}, false
}

// EmitSession dispatches a session lifecycle event. A result with Cancel set
// stops dispatch immediately and is returned; otherwise the last non-nil
// result is. The per-handler timeout is waived for ReasonBeforeCompact.
func (r *Runner) EmitSession(ctx context.Context, ev *SessionEvent) *Result {
	timeout := r.timeout()
	if ev.Reason == ReasonBeforeCompact {
		timeout = 0
	}
	return r.emit(ctx, ev, timeout, func(res *Result) bool { return res.Cancel })
}

// EmitToolResult dispatches a tool-result event. The last non-nil result wins.
func (r *Runner) EmitToolResult(ctx context.Context, ev *ToolResultEvent) *Result {
	return r.emit(ctx, ev, r.timeout(), nil)
}

// EmitCustom dispatches a hook-defined event kind.
func (r *Runner) EmitCustom(ctx context.Context, ev *CustomEvent) *Result {
	return r.emit(ctx, ev, r.timeout(), nil)
}

// emit is the isolated dispatch loop shared by session, tool-result, and
// custom events. shortCircuit, when non-nil, is asked whether a non-nil result
// should stop dispatch.
func (r *Runner) emit(ctx context.Context, ev Event, timeout time.Duration, shortCircuit func(*Result) bool) *Result {
	hctx := r.eventContext()
	kind := ev.Kind()

	var last *Result
	for _, h := range r.hooks {
		for _, fn := range h.handlers[kind] {
			res, err := r.invoke(ctx, fn, ev, hctx, timeout)
			if err != nil {
				r.reportError(h, kind, err)
				continue
			}
			if res == nil {
				continue
			}
			last = res
			if shortCircuit != nil && shortCircuit(res) {
				return res
			}
		}
	}
	return last
}

// EmitToolCall dispatches a tool-call event. Unlike the other protocols this
// one has no timeout and no error isolation: a failing handler aborts dispatch
// and the error propagates to the caller, which must not run the tool. A
// result with Block set stops dispatch and is returned immediately.
func (r *Runner) EmitToolCall(ctx context.Context, ev *ToolCallEvent) (*Result, error) {
	hctx := r.eventContext()

	var last *Result
	for _, h := range r.hooks {
		for _, fn := range h.handlers[EventToolCall] {
			res, err := fn(ctx, ev, hctx)
			if err != nil {
				return nil, fmt.Errorf("hook %s: %w", h.Path, err)
			}
			if res == nil {
				continue
			}
			last = res
			if res.Block {
				return res, nil
			}
		}
	}
	return last, nil
}

// EmitContext chains the messages about to be sent to the model through every
// context handler. Each handler sees the previous handler's output; a nil
// result or nil result messages leave the chain unchanged. Returns nil when no
// handler modified anything, so callers can keep their original slice.
func (r *Runner) EmitContext(ctx context.Context, ev *ContextEvent) []store.Message {
	hctx := r.eventContext()
	timeout := r.timeout()

	current := ev.Messages
	modified := false
	for _, h := range r.hooks {
		for _, fn := range h.handlers[EventContextKind] {
			step := &ContextEvent{SessionID: ev.SessionID, Messages: current}
			res, err := r.invoke(ctx, fn, step, hctx, timeout)
			if err != nil {
				r.reportError(h, EventContextKind, err)
				continue
			}
			if res != nil && res.Messages != nil {
				current = res.Messages
				modified = true
			}
		}
	}

	if !modified {
		return nil
	}
	return current
}

// Context builds the capability set handed to handlers, for callers that run
// hook commands outside an emission.
func (r *Runner) Context() *EventContext {
	return r.eventContext()
}

func (r *Runner) timeout() time.Duration {
	if r.HandlerTimeout > 0 {
		return r.HandlerTimeout
	}
	return DefaultHandlerTimeout
}

func (r *Runner) eventContext() *EventContext {
	r.mu.Lock()
	ui, hasUI := r.ui, r.hasUI
	r.mu.Unlock()

	return &EventContext{
		UI:      ui,
		HasUI:   hasUI,
		Cwd:     r.cwd,
		Session: r.session,
		Models:  r.registry,
	}
}

// invoke runs one handler under the given timeout. A zero timeout calls the
// handler inline. Otherwise the handler runs on its own goroutine racing a
// deadline; on timeout the handler keeps running against its cancelled
// context but its eventual result is discarded.
func (r *Runner) invoke(ctx context.Context, fn HandlerFunc, ev Event, hctx *EventContext, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		return safeCall(ctx, fn, ev, hctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := safeCall(callCtx, fn, ev, hctx)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("handler timed out after %s", timeout)
	}
}

// safeCall converts a handler panic into an error so one misbehaving hook
// cannot take the dispatcher down.
func safeCall(ctx context.Context, fn HandlerFunc, ev Event, hctx *EventContext) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("handler panic: %v", p)
		}
	}()
	return fn(ctx, ev, hctx)
}

func (r *Runner) reportError(h *Hook, kind EventType, err error) {
	slog.Warn("Hook handler failed", "hook", h.Path, "event", string(kind), "error", err)

	r.mu.Lock()
	ls := make([]ErrorListener, 0, len(r.listeners))
	for _, l := range r.listeners {
		ls = append(ls, l)
	}
	r.mu.Unlock()

	he := HookError{HookPath: h.Path, Event: kind, Message: err.Error()}
	for _, l := range ls {
		l(he)
	}
}
