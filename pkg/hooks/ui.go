package hooks

import (
	"context"

	"github.com/charmbracelet/lipgloss"
)

// NotifyLevel grades a notification.
type NotifyLevel string

const (
	NotifyInfo    NotifyLevel = "info"
	NotifyWarning NotifyLevel = "warning"
	NotifyError   NotifyLevel = "error"
)

// UIContext is the interaction surface handlers may use. When no interactive
// frontend is attached a headless fallback is supplied instead, so handlers
// never need to nil-check.
type UIContext interface {
	// Select asks the user to pick one of options. Returns the chosen index
	// and true, or false when nothing was chosen.
	Select(ctx context.Context, title string, options []string) (int, bool)
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, prompt string) bool
	// Input asks for a single line of text.
	Input(ctx context.Context, prompt string) (string, bool)
	// Notify shows a transient notification.
	Notify(level NotifyLevel, message string)
	// Custom opens a hook-defined surface identified by name and returns a
	// handle for updating and closing it.
	Custom(name string, params map[string]any) CustomHandle
}

// CustomHandle controls a surface opened through UIContext.Custom.
type CustomHandle interface {
	Update(params map[string]any)
	Close()
}

// fallbackUI answers every interaction negatively and drops notifications.
// Used when no frontend is attached.
type fallbackUI struct{}

func (fallbackUI) Select(context.Context, string, []string) (int, bool) { return 0, false }
func (fallbackUI) Confirm(context.Context, string) bool                 { return false }
func (fallbackUI) Input(context.Context, string) (string, bool)        { return "", false }
func (fallbackUI) Notify(NotifyLevel, string)                          {}
func (fallbackUI) Custom(string, map[string]any) CustomHandle          { return inertHandle{} }

type inertHandle struct{}

func (inertHandle) Update(map[string]any) {}
func (inertHandle) Close()                {}

// Theme is the style set renderers draw with. Frontends may swap in their own.
type Theme struct {
	Title     lipgloss.Style
	Label     lipgloss.Style
	Body      lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}

// DefaultTheme returns the stock styles.
func DefaultTheme() Theme {
	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Label:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		Body:      lipgloss.NewStyle(),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}
