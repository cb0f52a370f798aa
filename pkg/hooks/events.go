// Package hooks dispatches session lifecycle, tool, and context events to
// externally loaded extension handlers. Handlers run sequentially in load
// order; each of the three emission protocols has its own timeout, error
// isolation, and short-circuit policy.
package hooks

import (
	"github.com/prathamdby/pi-mono/pkg/store"
)

// EventType identifies the kind of dispatched event. The four built-in kinds
// are listed here; hooks may additionally register for custom kinds emitted
// through EmitCustom.
type EventType string

const (
	EventSession     EventType = "session"
	EventToolCall    EventType = "tool_call"
	EventToolResult  EventType = "tool_result"
	EventContextKind EventType = "context"
)

// Session event reasons.
const (
	ReasonStart         = "start"
	ReasonShutdown      = "shutdown"
	ReasonBranch        = "branch"
	ReasonBeforeCompact = "before_compact"
)

// Event is implemented by every dispatchable event payload.
type Event interface {
	Kind() EventType
}

// SessionEvent reports a session lifecycle change.
type SessionEvent struct {
	Reason    string
	SessionID string
	LeafID    string
}

func (*SessionEvent) Kind() EventType { return EventSession }

// ToolCallEvent is dispatched before a tool executes. A handler returning a
// blocking result prevents the execution.
type ToolCallEvent struct {
	SessionID  string
	ToolCallID string
	Name       string
	Input      map[string]any
}

func (*ToolCallEvent) Kind() EventType { return EventToolCall }

// ToolResultEvent is dispatched after a tool executed.
type ToolResultEvent struct {
	SessionID  string
	ToolCallID string
	Name       string
	IsError    bool
	Content    string
}

func (*ToolResultEvent) Kind() EventType { return EventToolResult }

// ContextEvent carries the messages about to be sent to the model. Handlers
// are chained: each receives the previous handler's output.
type ContextEvent struct {
	SessionID string
	Messages  []store.Message
}

func (*ContextEvent) Kind() EventType { return EventContextKind }

// CustomEvent carries hook-defined data under a hook-defined kind.
type CustomEvent struct {
	EventKind EventType
	Data      map[string]any
}

func (e *CustomEvent) Kind() EventType { return e.EventKind }

// Result is a handler's response to an event. A nil result means "no opinion";
// within one emission the last non-nil result wins unless a short-circuit flag
// fires first.
type Result struct {
	// Cancel stops dispatch of a session event immediately.
	Cancel bool
	// Block stops dispatch of a tool-call event immediately and prevents the
	// tool from executing.
	Block bool
	// Reason explains a Cancel or Block decision.
	Reason string
	// Messages replaces the event's messages on context events. A nil slice
	// leaves the previous handler's output in place.
	Messages []store.Message
	// Data carries handler-defined values.
	Data map[string]any
}

// HookError describes a handler failure delivered to error listeners.
type HookError struct {
	HookPath string
	Event    EventType
	Message  string
}

// ErrorListener receives handler failures from the emit and context protocols.
type ErrorListener func(HookError)
