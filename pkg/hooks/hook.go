package hooks

import (
	"context"

	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/store"
)

// HandlerFunc processes one event. The returned result may be nil to signal
// no opinion. The passed context carries the per-handler deadline where the
// emission protocol imposes one; long-running handlers should honor it.
type HandlerFunc func(ctx context.Context, ev Event, hctx *EventContext) (*Result, error)

// RenderOptions controls a renderer invocation.
type RenderOptions struct {
	// Expanded asks for the full rather than collapsed rendering.
	Expanded bool
}

// MessageRenderer draws a custom message for display. It returns the rendered
// text and whether the message should be shown at all.
type MessageRenderer func(msg store.Message, opts RenderOptions, theme Theme) (string, bool)

// Command is a hook-contributed frontend command.
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string, hctx *EventContext) error
}

// EventContext is the ambient capability set handed to handlers on every
// emission. It is rebuilt per emission; handlers must not retain it.
type EventContext struct {
	// UI is never nil; HasUI reports whether it is a real frontend or the
	// headless fallback.
	UI    UIContext
	HasUI bool
	// Cwd is the working directory the session was started in.
	Cwd string
	// Session gives read access to the session tree.
	Session store.Accessor
	// Models lists the available models.
	Models *models.Registry
}

// Hook is one loaded extension: its handler registrations in order, plus any
// renderers and commands it contributed.
type Hook struct {
	// Path identifies the hook source, used in error reports and logs.
	Path string

	handlers map[EventType][]HandlerFunc
	rendered map[string]MessageRenderer
	commands []Command

	// SendMessage delivers a transient message to the frontend. Set by the
	// runner; nil until then.
	SendMessage func(msg store.Message)
	// AppendEntry persists an entry to the active session. Set by the runner;
	// nil until then.
	AppendEntry func(e store.Entry)
}

// NewHook returns an empty hook identified by path.
func NewHook(path string) *Hook {
	return &Hook{
		Path:     path,
		handlers: make(map[EventType][]HandlerFunc),
		rendered: make(map[string]MessageRenderer),
	}
}

// On registers a handler for the given event kind. Handlers for the same kind
// run in registration order.
func (h *Hook) On(kind EventType, fn HandlerFunc) {
	h.handlers[kind] = append(h.handlers[kind], fn)
}

// RegisterRenderer registers a renderer for custom messages of the given
// custom type.
func (h *Hook) RegisterRenderer(customType string, r MessageRenderer) {
	h.rendered[customType] = r
}

// RegisterCommand contributes a frontend command.
func (h *Hook) RegisterCommand(cmd Command) {
	h.commands = append(h.commands, cmd)
}

// Renderer returns the renderer for customType, if registered.
func (h *Hook) Renderer(customType string) (MessageRenderer, bool) {
	r, ok := h.rendered[customType]
	return r, ok
}

// Commands returns the commands this hook contributed, in registration order.
func (h *Hook) Commands() []Command {
	return h.commands
}
