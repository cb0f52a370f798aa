// Terminal frontend for the session agent.
//
// Usage:
//
//	export GEMINI_API_KEY="your-api-key"
//	go run cmd/pi/main.go          # interactive TUI
//	go run cmd/pi/main.go serve    # HTTP API on :8080
//
// Commands:
//
//	/exit - Exit the program
//	/model <name> - Switch model
//	/branch <entry-id> - Move to an earlier entry, summarizing the abandoned path
//	<message> - Send a message to the agent
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/prathamdby/pi-mono/pkg/hooks"
	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/models/gemini"
	"github.com/prathamdby/pi-mono/pkg/runner"
	"github.com/prathamdby/pi-mono/pkg/server"
	"github.com/prathamdby/pi-mono/pkg/store"
	"github.com/prathamdby/pi-mono/pkg/store/jsonl"
	"github.com/prathamdby/pi-mono/pkg/summary"
	"github.com/prathamdby/pi-mono/pkg/tools"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)
)

type state int

const (
	stateMenu state = iota
	stateSelectingAgent
	stateSelectingSession
	stateChatting
	stateConfirmExit
)

type errMsg struct{ err error }
type sessionUpdateMsg string
type runnerErrorMsg struct{ err error }
type hookErrorMsg struct{ he hooks.HookError }
type branchedMsg struct{ summary string }

type model struct {
	ctx         context.Context
	complete    models.CompleteFunc
	registry    *models.Registry
	sessManager store.Manager
	currentSess store.Session
	runner      *runner.Runner
	hookRunner  *hooks.Runner
	toolReg     *tools.Registry
	apiKey      string
	updates     <-chan string
	hookErrors  chan hooks.HookError

	// State
	state              state
	availableSessions  []store.SessionInfo
	availableAgents    []store.Agent
	selectedAgentIndex int
	cursor             int
	listOffset         int
	width              int
	height             int
	err                error

	// UI Components
	viewport viewport.Model
	textarea textarea.Model

	renderer *glamour.TermRenderer
	theme    hooks.Theme
}

func initialModel(ctx context.Context, complete models.CompleteFunc, manager store.Manager, registry *models.Registry, apiKey string) model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 280

	ta.SetWidth(80)
	ta.SetHeight(3)

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent("Welcome! Select an option.")

	// Use "light" style to avoid terminal queries that leak into input
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	startState := stateMenu
	sessions, err := manager.ListSessions()
	if err == nil && len(sessions) == 0 {
		startState = stateSelectingAgent
	}

	agents, _ := manager.ListAgents()

	return model{
		ctx:             ctx,
		complete:        complete,
		registry:        registry,
		sessManager:     manager,
		apiKey:          apiKey,
		availableAgents: agents,
		toolReg:         tools.DefaultRegistry(),
		hookErrors:      make(chan hooks.HookError, 10),
		state:           startState,
		viewport:        vp,
		textarea:        ta,
		renderer:        r,
		theme:           hooks.DefaultTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var tiCmd, vpCmd tea.Cmd
	// This prevents the Enter key used for menu selection from leaking into the textarea.
	switch msg.(type) {
	case tea.KeyMsg:
		if m.state == stateChatting {
			m.textarea, tiCmd = m.textarea.Update(msg)
			cmds = append(cmds, tiCmd)
		}
	default:
		m.textarea, tiCmd = m.textarea.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 2
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.viewport.YPosition = 2

		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)

		maxViewable := m.height - 7
		if maxViewable < 1 {
			maxViewable = 1
		}
		if m.cursor < m.listOffset {
			m.listOffset = m.cursor
		}
		if m.cursor >= m.listOffset+maxViewable {
			m.listOffset = m.cursor - maxViewable + 1
		}
		if m.listOffset < 0 {
			m.listOffset = 0
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.currentSess != nil {
				m.state = stateConfirmExit
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.state == stateConfirmExit {
				m.state = stateChatting
				return m, nil
			}
			if m.currentSess != nil {
				m.state = stateConfirmExit
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEnter:
			switch m.state {
			case stateMenu:
				if m.cursor == 0 {
					m.state = stateSelectingAgent
					m.cursor = 0
					m.listOffset = 0
				} else {
					sessions, err := m.sessManager.ListSessions()
					if err != nil {
						m.err = err
					} else if len(sessions) == 0 {
						m.err = fmt.Errorf("no existing sessions found")
					} else {
						m.availableSessions = sessions
						m.state = stateSelectingSession
						m.cursor = 0
						m.listOffset = 0
					}
				}
			case stateSelectingAgent:
				m.selectedAgentIndex = m.cursor
				return m.selectAgent()
			case stateSelectingSession:
				return m.selectSession()
			case stateChatting:
				m.err = nil
				return m.sendMessage()
			}
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.listOffset {
					m.listOffset = m.cursor
				}
			}
		case tea.KeyDown:
			var maxCursor int
			switch m.state {
			case stateMenu:
				maxCursor = 1
			case stateSelectingAgent:
				maxCursor = len(m.availableAgents) - 1
			case stateSelectingSession:
				maxCursor = len(m.availableSessions) - 1
			}
			if m.cursor < maxCursor {
				m.cursor++
				maxViewable := m.height - 7
				if maxViewable < 1 {
					maxViewable = 1
				}
				if m.cursor >= m.listOffset+maxViewable {
					m.listOffset = m.cursor - maxViewable + 1
				}
			}
		default:
			if m.state == stateConfirmExit {
				switch msg.String() {
				case "y", "Y":
					return m, tea.Sequence(m.endSessionCmd(), tea.Quit)
				case "n", "N":
					return m, tea.Quit
				}
			}
		}

	case sessionUpdateMsg:
		slog.Debug("TUI received update for session", "sessionID", msg)
		if m.currentSess != nil && string(msg) == m.currentSess.ID() {
			cmds = append(cmds, m.reloadMessages(), waitForUpdate(m.updates))
		} else {
			cmds = append(cmds, waitForUpdate(m.updates))
		}

	case updateViewMsg:
		if m.currentSess != nil {
			m.currentSess.Close()
		}
		m.currentSess = msg.sess
		m.viewport.SetContent(msg.content)
		m.viewport.GotoBottom()

	case branchedMsg:
		cmds = append(cmds, m.reloadMessages())

	case errMsg:
		m.err = msg.err

	case runnerErrorMsg:
		slog.Debug("TUI received runner error", "error", msg.err)
		m.err = msg.err
		cmds = append(cmds, waitForRunnerError(m.runner.ErrorChan))

	case hookErrorMsg:
		m.err = fmt.Errorf("hook %s (%s): %s", msg.he.HookPath, msg.he.Event, msg.he.Message)
		cmds = append(cmds, waitForHookError(m.hookErrors))
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("\nError: %v", m.err))
	}

	switch m.state {
	case stateMenu:
		header := titleStyle.Render("Main Menu")

		options := []string{"New Session", "Continue Session"}
		var optionsView []string
		for i, choice := range options {
			cursor := " "
			if m.cursor == i {
				cursor = ">"
				choice = selectedItemStyle.Render(choice)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), choice))
		}

		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to quit."

		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)

	case stateSelectingAgent:
		header := titleStyle.Render("Select Agent")

		maxViewable := m.height - 7
		if maxViewable < 1 {
			maxViewable = 1
		}

		start := m.listOffset
		end := start + maxViewable
		if end > len(m.availableAgents) {
			end = len(m.availableAgents)
		}

		var optionsView []string
		for i := start; i < end; i++ {
			choice := m.availableAgents[i]
			cursor := " "
			line := fmt.Sprintf("%s (%s)", choice.Name, choice.ID)
			if m.cursor == i {
				cursor = ">"
				line = selectedItemStyle.Render(line)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), line))
		}

		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to quit."

		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)

	case stateSelectingSession:
		header := titleStyle.Render("Select Session")

		maxViewable := m.height - 7
		if maxViewable < 1 {
			maxViewable = 1
		}

		start := m.listOffset
		end := start + maxViewable
		if end > len(m.availableSessions) {
			end = len(m.availableSessions)
		}

		var optionsView []string
		for i := start; i < end; i++ {
			choice := m.availableSessions[i]
			cursor := " "
			line := fmt.Sprintf("%s (%s)", choice.ID, choice.Modified.Format(time.RFC822))
			if m.cursor == i {
				cursor = ">"
				line = selectedItemStyle.Render(line)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), line))
		}

		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to quit."

		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)

	case stateConfirmExit:
		header := titleStyle.Render("Confirm Exit")
		prompt := "End Session? (y/n)"

		return lipgloss.JoinVertical(lipgloss.Left, header, "", prompt, errorView)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Pi Agent"),
		"",
		m.viewport.View(),
		"",
		errorView,
		m.textarea.View(),
	)
}

// Actions

func (m model) agentModel(sess store.Session) models.Model {
	name := sess.Header().Agent.Model
	if name != "" {
		if found, ok := m.registry.Find("gemini", name); ok {
			return found
		}
		return models.Model{Provider: "gemini", ID: name}
	}
	if list := m.registry.List(); len(list) > 0 {
		return list[0]
	}
	return models.Model{Provider: "gemini", ID: "gemini-2.0-flash"}
}

func (m model) startRunner(sess store.Session) model {
	cwd, _ := os.Getwd()
	m.hookRunner = hooks.NewRunner(nil, cwd, sess, m.registry)
	m.hookRunner.SetSendMessage(func(msg store.Message) {
		sess.AppendCustomMessage(msg.CustomType, msg.Content, msg.Display, msg.Details)
	})
	m.hookRunner.SetAppendEntry(func(e store.Entry) {
		sess.Append(e)
	})
	m.hookRunner.OnError(func(he hooks.HookError) {
		select {
		case m.hookErrors <- he:
		default:
		}
	})

	m.runner = runner.New(m.sessManager, runner.Config{
		Model:    m.agentModel(sess),
		Complete: m.complete,
		Tools:    m.toolReg,
		Hooks:    m.hookRunner,
		APIKey:   m.apiKey,
	})

	go func() {
		if err := m.runner.Start(m.ctx); err != nil && err != context.Canceled {
			slog.Error("Runner stopped", "error", err)
		}
	}()

	m.hookRunner.EmitSession(m.ctx, &hooks.SessionEvent{
		Reason:    hooks.ReasonStart,
		SessionID: sess.ID(),
		LeafID:    sess.LeafID(),
	})

	return m
}

func (m model) selectAgent() (model, tea.Cmd) {
	agentID := ""
	if len(m.availableAgents) > 0 && m.selectedAgentIndex < len(m.availableAgents) {
		agentID = m.availableAgents[m.selectedAgentIndex].ID
	}
	sess, err := m.sessManager.NewSession(agentID, "")
	if err != nil {
		return m, func() tea.Msg { return errMsg{err} }
	}
	m.currentSess = sess
	m = m.startRunner(sess)
	return m.enterChat()
}

func (m model) selectSession() (model, tea.Cmd) {
	selected := m.availableSessions[m.cursor]
	sess, err := m.sessManager.LoadSession(selected.ID)
	if err != nil {
		return m, func() tea.Msg { return errMsg{err} }
	}
	m.currentSess = sess
	m = m.startRunner(sess)
	return m.enterChat()
}

func (m model) enterChat() (model, tea.Cmd) {
	m.updates = m.sessManager.Subscribe()

	m.state = stateChatting
	m.textarea.Placeholder = "Type a message..."
	m.textarea.Focus()

	return m, tea.Batch(
		m.reloadMessages(),
		waitForUpdate(m.updates),
		waitForRunnerError(m.runner.ErrorChan),
		waitForHookError(m.hookErrors),
	)
}

func (m model) sendMessage() (model, tea.Cmd) {
	v := m.textarea.Value()
	if v == "" {
		return m, nil
	}

	if v == "/exit" {
		m.state = stateConfirmExit
		return m, nil
	}

	if strings.HasPrefix(v, "/model ") {
		modelName := strings.TrimSpace(strings.TrimPrefix(v, "/model "))
		if modelName == "" {
			return m, nil
		}

		m.textarea.Reset()
		return m, func() tea.Msg {
			if _, err := m.currentSess.AppendModelChange("gemini", modelName); err != nil {
				return errMsg{err}
			}
			return nil
		}
	}

	if strings.HasPrefix(v, "/branch ") {
		targetID := strings.TrimSpace(strings.TrimPrefix(v, "/branch "))
		if targetID == "" {
			return m, nil
		}
		m.textarea.Reset()
		return m, m.branchCmd(targetID)
	}

	// Hook-contributed commands.
	if fields := strings.Fields(strings.TrimPrefix(v, "/")); strings.HasPrefix(v, "/") && len(fields) > 0 && m.hookRunner != nil {
		if cmd, ok := m.hookRunner.FindCommand(fields[0]); ok {
			args := fields[1:]
			m.textarea.Reset()
			return m, func() tea.Msg {
				if err := cmd.Run(m.ctx, args, m.hookRunner.Context()); err != nil {
					return errMsg{err}
				}
				return nil
			}
		}
	}

	m.textarea.Reset()

	return m, func() tea.Msg {
		_, err := m.currentSess.AppendMessage(store.RoleUser, store.TextBlocks(v))
		if err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// branchCmd summarizes the path being abandoned and moves the leaf. A failed
// or aborted summarization degrades to a plain branch.
func (m model) branchCmd(targetID string) tea.Cmd {
	sess := m.currentSess
	return func() tea.Msg {
		if m.hookRunner != nil {
			res := m.hookRunner.EmitSession(m.ctx, &hooks.SessionEvent{
				Reason:    hooks.ReasonBranch,
				SessionID: sess.ID(),
				LeafID:    sess.LeafID(),
			})
			if res != nil && res.Cancel {
				return errMsg{fmt.Errorf("branch cancelled: %s", res.Reason)}
			}
		}

		gen := &summary.Generator{Model: m.agentModel(sess), Complete: m.complete}
		_, res := gen.ForNavigation(m.ctx, sess, sess.LeafID(), targetID, summary.Options{APIKey: m.apiKey})

		if res.Summary == "" || res.Summary == summary.NoContentSummary {
			if err := sess.Branch(targetID); err != nil {
				return errMsg{err}
			}
			if res.ErrorMessage != "" {
				return errMsg{fmt.Errorf("branch summary failed: %s", res.ErrorMessage)}
			}
			return branchedMsg{}
		}

		if _, err := sess.BranchWithSummary(targetID, res.Summary); err != nil {
			return errMsg{err}
		}
		return branchedMsg{summary: res.Summary}
	}
}

func (m model) endSessionCmd() tea.Cmd {
	return func() tea.Msg {
		if m.currentSess != nil && m.runner != nil {
			if err := m.runner.StopSession(m.ctx, m.currentSess); err != nil {
				slog.Error("Failed to stop session", "error", err)
			}
		}
		return nil
	}
}

type updateViewMsg struct {
	content string
	sess    store.Session
}

func (m model) reloadMessages() tea.Cmd {
	return func() tea.Msg {
		// Create a temporary read-only view to get the latest state from disk
		sess, err := m.sessManager.LoadSession(m.currentSess.ID())
		if err != nil {
			return errMsg{err}
		}

		entries, err := sess.GetContext()
		if err != nil {
			sess.Close()
			return errMsg{err}
		}

		slog.Info("Loaded entries from session", "count", len(entries))

		var sb strings.Builder
		for _, e := range entries {
			m.renderEntry(&sb, e)
		}

		return updateViewMsg{content: sb.String(), sess: sess}
	}
}

func (m model) renderEntry(sb *strings.Builder, e store.Entry) {
	switch {
	case e.Message != nil:
		if len(e.Message.Content) == 0 {
			return
		}
		var content string
		c := e.Message.Content[0]
		switch {
		case c.Text != nil:
			rawContent := c.Text.Content
			if m.renderer != nil {
				if rendered, err := m.renderer.Render(rawContent); err == nil {
					content = rendered
				} else {
					content = rawContent
				}
			} else {
				content = rawContent
			}
		case c.ToolUse != nil:
			content = fmt.Sprintf("[Tool Usage: %s]", c.ToolUse.Name)
			if path, ok := c.ToolUse.Input["path"].(string); ok {
				content += fmt.Sprintf(" %s", path)
			}
		case c.ToolResult != nil:
			status := "Success"
			if c.ToolResult.IsError {
				status = "Error"
			}
			content = fmt.Sprintf("[%s: %s]\n%s", status, c.ToolResult.ToolUseID, c.ToolResult.Content)
		}

		switch e.Message.Role {
		case store.RoleUser:
			sb.WriteString(userStyle.Render("User: "))
		case store.RoleAssistant:
			sb.WriteString(senderStyle.Render("AI: "))
		default:
			sb.WriteString(mutedStyle.Render(string(e.Message.Role) + ": "))
		}
		sb.WriteString("\n")
		sb.WriteString(content)
		sb.WriteString("\n")

	case e.CustomMessage != nil:
		if !e.CustomMessage.Display {
			return
		}
		msg := store.Message{
			Role:       store.RoleHookMessage,
			Content:    e.CustomMessage.Content,
			CustomType: e.CustomMessage.CustomType,
			Display:    e.CustomMessage.Display,
			Details:    e.CustomMessage.Details,
		}
		if m.hookRunner != nil {
			if ren, ok := m.hookRunner.RendererFor(e.CustomMessage.CustomType); ok {
				if rendered, show, ok := renderCustom(ren, msg, m.theme); ok {
					if show {
						sb.WriteString(rendered)
						sb.WriteString("\n")
					}
					return
				}
				// Renderer panicked; fall back to the default rendering.
			}
		}
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("[%s] ", e.CustomMessage.CustomType)))
		sb.WriteString(msg.Text())
		sb.WriteString("\n")

	case e.BranchSummary != nil:
		sb.WriteString(mutedStyle.Render("[Branch summary]"))
		sb.WriteString("\n")
		sb.WriteString(e.BranchSummary.Summary)
		sb.WriteString("\n")

	case e.Compaction != nil:
		sb.WriteString(mutedStyle.Render("[History compacted]"))
		sb.WriteString("\n")
	}
}

// renderCustom invokes a hook renderer. A panicking renderer is reported and
// ok is false so the caller can fall back to the default rendering.
func renderCustom(ren hooks.MessageRenderer, msg store.Message, theme hooks.Theme) (out string, show, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			slog.Warn("Hook renderer panicked", "customType", msg.CustomType, "panic", p)
			out, show, ok = "", false, false
		}
	}()
	out, show = ren(msg, hooks.RenderOptions{}, theme)
	return out, show, true
}

func waitForRunnerError(ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return runnerErrorMsg{err}
	}
}

func waitForUpdate(sub <-chan string) tea.Cmd {
	return func() tea.Msg {
		id, ok := <-sub
		if !ok {
			return nil
		}
		return sessionUpdateMsg(id)
	}
}

func waitForHookError(ch <-chan hooks.HookError) tea.Cmd {
	return func() tea.Msg {
		he, ok := <-ch
		if !ok {
			return nil
		}
		return hookErrorMsg{he}
	}
}

// --- Main ---

func main() {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Println("Error: GEMINI_API_KEY environment variable not set.")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Setup Logging
	f, err := os.OpenFile("agent.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer f.Close()

	logLevel := slog.LevelInfo
	if lv := os.Getenv("LOG_LEVEL"); lv != "" {
		switch strings.ToUpper(lv) {
		case "TRACE":
			logLevel = gemini.LevelTrace
		case "DEBUG":
			logLevel = slog.LevelDebug
		case "INFO":
			logLevel = slog.LevelInfo
		case "WARN":
			logLevel = slog.LevelWarn
		case "ERROR":
			logLevel = slog.LevelError
		}
	}
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
	slog.Info("Logging initialized", "level", logLevel)

	// 2. Initialize Model Client
	client, err := gemini.New(ctx, apiKey)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	names, err := client.List(ctx)
	if err != nil {
		slog.Error("Failed to list models", "error", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		slog.Info("No models available.")
		os.Exit(1)
	}

	registry := models.NewRegistry()
	for _, name := range names {
		registry.Register(models.Model{Provider: "gemini", ID: name})
	}

	// 3. Initialize Manager
	storeDir := os.Getenv("PI_STORE_DIR")
	if storeDir == "" {
		storeDir = "./store"
	}
	mgr := jsonl.NewManager(storeDir)

	// 4. Serve mode
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		addr := os.Getenv("PI_ADDR")
		if addr == "" {
			addr = ":8080"
		}

		list := registry.List()
		var defaultModel models.Model
		if len(list) > 0 {
			defaultModel = list[0]
		}
		gen := &summary.Generator{Model: defaultModel, Complete: client.Complete}

		srv := server.New(mgr, func(ctx context.Context) ([]models.Model, error) {
			return registry.List(), nil
		}, gen, apiKey)
		if err := srv.Start(addr); err != nil {
			slog.Error("Server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	// 5. Start TUI
	p := tea.NewProgram(initialModel(ctx, client.Complete, mgr, registry, apiKey))
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
