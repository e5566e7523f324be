// Package models provides the domain types shared across the canvas store,
// tool dispatch, session service, and agent runtime.
package models

import (
	"encoding/json"
	"time"
)

// ToolCall represents an LLM's request to execute a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution. Tools never throw
// across the LLM boundary: failures are reported as an error string starting
// with "Error: " in Content with IsError set.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Role identifies the speaker of a conversation part.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ConversationPart is a single unit appended to a session's event log during
// a turn: user content, a model text part, a tool call, or a tool result.
type ConversationPart struct {
	Role       Role            `json:"role"`
	Text       string          `json:"text,omitempty"`
	ToolCall   *ToolCall       `json:"tool_call,omitempty"`
	ToolResult *ToolResult     `json:"tool_result,omitempty"`
	AgentID    string          `json:"agent_id,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// TurnEventKind discriminates the events streamed by the runner during a turn.
type TurnEventKind string

const (
	TurnEventModelContent   TurnEventKind = "model_content"
	TurnEventToolCall       TurnEventKind = "tool_call"
	TurnEventToolResult     TurnEventKind = "tool_result"
	TurnEventSubAgent       TurnEventKind = "sub_agent_transfer"
	TurnEventFinal          TurnEventKind = "final_response"
	TurnEventError          TurnEventKind = "error"
	TurnEventCancelled      TurnEventKind = "cancelled"
)

// TurnEvent is one item in the stream the Runner produces while executing a
// turn. Exactly one of the payload fields is meaningful for a given Kind.
type TurnEvent struct {
	Kind      TurnEventKind   `json:"kind"`
	Text      string          `json:"text,omitempty"`
	Final     bool            `json:"final,omitempty"`
	ToolCall  *ToolCall       `json:"tool_call,omitempty"`
	ToolResult *ToolResult    `json:"tool_result,omitempty"`
	AgentID   string          `json:"agent_id,omitempty"`
	Err       error           `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}

// Session is the atomic unit of conversational state for one chat: an
// append-only event log keyed by a stable chat key. Sessions are created
// idempotently and persist indefinitely unless truncated by retention
// policy.
type Session struct {
	ID        string         `json:"id"`
	Key       string         `json:"key"`
	AgentID   string         `json:"agent_id"`
	CanvasID  string         `json:"canvas_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SessionEvent is a single item in a session's append-only event log.
type SessionEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Part      ConversationPart `json:"part"`
	Seq       int64           `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`
}
