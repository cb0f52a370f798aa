package store

import (
	"strings"
	"time"
)

// EntryType defines the kind of session entry
type EntryType string

const (
	TypeSession       EntryType = "session"
	TypeMessage       EntryType = "message"
	TypeCustomMessage EntryType = "custom_message"
	TypeBranchSummary EntryType = "branch_summary"
	TypeCompaction    EntryType = "compaction"
	TypeThinkingLevel EntryType = "thinking_level_change"
	TypeModelChange   EntryType = "model_change"
	TypeCustom        EntryType = "custom"
	TypeLabel         EntryType = "label"
	TypeSessionInfo   EntryType = "session_info"
)

// MessageRole defines the role of a message in the conversation.
// This is a closed union: every role the system understands is listed here.
type MessageRole string

const (
	RoleUser              MessageRole = "user"
	RoleAssistant         MessageRole = "assistant"
	RoleToolResult        MessageRole = "toolResult"        // Result of a tool call, folded into the assistant turn
	RoleBranchSummary     MessageRole = "branchSummary"     // Checkpoint for an abandoned branch
	RoleCompactionSummary MessageRole = "compactionSummary" // Summary of discarded history
	RoleHookMessage       MessageRole = "hookMessage"       // Extension-injected message
)

// Agent represents a configuration for an AI agent.
type Agent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Instructions string   `json:"instructions"`
	Model        string   `json:"model,omitempty"` // Default model
	Tools        []string `json:"tools,omitempty"` // Allowed tools
}

// Header is the first line of the file (metadata)
type Header struct {
	Type          EntryType `json:"type"` // Always "session"
	ID            string    `json:"id"`
	Agent         Agent     `json:"agent"`
	Version       int       `json:"version"`
	ParentSession string    `json:"parent_session,omitempty"`
	Cwd           string    `json:"cwd,omitempty"`
	CreatedAt     time.Time `json:"timestamp"`
}

// Entry is a "Tagged Union" that represents any record in the session log.
// Following ParentID from any entry terminates at a root with ParentID == nil.
type Entry struct {
	Type      EntryType `json:"type"`
	ID        string    `json:"id"`
	ParentID  *string   `json:"parent_id"` // Pointer to allow null for root
	Timestamp time.Time `json:"timestamp"`

	// Payload pointers - only one will be non-nil
	Message       *MessageEntry       `json:"message,omitempty"`
	CustomMessage *CustomMessageEntry `json:"custom_message,omitempty"`
	BranchSummary *BranchSummaryEntry `json:"branch_summary,omitempty"`
	Compaction    *CompactionEntry    `json:"compaction,omitempty"`
	ThinkingLevel *ThinkingLevelEntry `json:"thinking_level,omitempty"`
	ModelChange   *ModelChangeEntry   `json:"model_change,omitempty"`
	Custom        *CustomEntry        `json:"custom,omitempty"`
	Label         *LabelEntry         `json:"label,omitempty"`
	SessionInfo   *SessionInfoEntry   `json:"session_info,omitempty"`
}

// MessageEntry represents a conversation message.
type MessageEntry struct {
	Role    MessageRole `json:"role"`
	Content []Content   `json:"content"`
	Model   string      `json:"model,omitempty"`
}

// CustomMessageEntry represents a message injected by a hook.
type CustomMessageEntry struct {
	CustomType string         `json:"custom_type"`
	Content    []Content      `json:"content"`
	Display    bool           `json:"display"`
	Details    map[string]any `json:"details,omitempty"`
}

// BranchSummaryEntry captures context from an abandoned path.
type BranchSummaryEntry struct {
	Summary string `json:"summary"`
	FromID  string `json:"from_id"`
}

// CompactionEntry contains a summary of discarded history.
type CompactionEntry struct {
	Summary          string `json:"summary"`
	FirstKeptEntryID string `json:"first_kept_entry_id"`
	TokensBefore     int    `json:"tokens_before"`
}

// ThinkingLevelEntry records a change in agent thinking depth.
type ThinkingLevelEntry struct {
	ThinkingLevel string `json:"thinking_level"` // e.g. "high", "low", "off"
}

// ModelChangeEntry records a shift in the underlying LLM.
type ModelChangeEntry struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
}

// CustomEntry persists arbitrary extension data.
type CustomEntry struct {
	CustomType string         `json:"custom_type"`
	Data       map[string]any `json:"data"`
}

// LabelEntry associates a bookmark with an entry.
type LabelEntry struct {
	TargetID string `json:"target_id"`
	Label    string `json:"label,omitempty"` // empty to remove
}

// SessionInfoEntry updates session metadata.
type SessionInfoEntry struct {
	Name string `json:"name"`
}

// ContentType defines the kind of message content.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeImage      ContentType = "image"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// Content represents a single component of a message.
type Content struct {
	Type ContentType `json:"type"`

	// Only one of these will be non-nil
	Text       *TextContent       `json:"text,omitempty"`
	Image      *ImageContent      `json:"image,omitempty"`
	ToolUse    *ToolUseContent    `json:"tool_use,omitempty"`
	ToolResult *ToolResultContent `json:"tool_result,omitempty"`
}

// TextContent contains literal text.
type TextContent struct {
	Content string `json:"content"`
}

// ImageContent contains image data.
type ImageContent struct {
	Source *ImageSource `json:"source"`
}

// ImageSource defines the origin of image data.
type ImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ToolUseContent represents a call to a tool.
type ToolUseContent struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResultContent represents the outcome of a tool call.
type ToolResultContent struct {
	ToolUseID string `json:"tool_use_id"`
	IsError   bool   `json:"is_error"`
	Content   string `json:"content"`
}

// Message is the transient conversational view of an entry. It is produced by
// extraction from persisted entries and never written back to the session log.
type Message struct {
	Role      MessageRole
	Content   []Content
	Timestamp time.Time

	// hookMessage fields
	CustomType string
	Display    bool
	Details    map[string]any

	// branchSummary fields
	FromID string

	// compactionSummary fields
	TokensBefore int
}

// Text flattens the message's text content blocks into a single string.
// Non-text blocks are skipped.
func (m Message) Text() string {
	var parts []string
	for _, c := range m.Content {
		if c.Type == ContentTypeText && c.Text != nil {
			parts = append(parts, c.Text.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// TextBlocks wraps plain text in a single text content block.
func TextBlocks(text string) []Content {
	return []Content{{Type: ContentTypeText, Text: &TextContent{Content: text}}}
}

// SessionInfo provides metadata about a session file.
type SessionInfo struct {
	ID           string
	Path         string
	Name         string
	Status       string
	AgentID      string
	AgentName    string
	Created      time.Time
	Modified     time.Time
	MessageCount int
}

const (
	SessionStatusActive = "active"
	SessionStatusEnded  = "ended"
)

// TreeNode represents a hierarchical view of the session.
type TreeNode struct {
	Entry    Entry
	Children []TreeNode
	Label    string
}
