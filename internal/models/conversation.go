package models

import "time"

// Status is the closed set of dialogue states a conversation thread moves
// through. Transitions are owned by the agent package; everything else only
// reads these values.
type Status string

const (
	StatusProcessing      Status = "processing"
	StatusAwaitingInfo    Status = "awaiting_info"
	StatusAwaitingConfirm Status = "awaiting_confirm"
	StatusConfirmed       Status = "confirmed"
	StatusCompleted       Status = "completed"
	StatusError           Status = "error"
)

// Terminal reports whether a status ends the thread. A completed or errored
// thread id cannot be continued; reusing it starts a fresh conversation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Message is a single chat message within a conversation thread.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCall records one tool invocation for the turn's audit trail.
type ToolCall struct {
	Tool   string `json:"tool"`
	Args   any    `json:"args,omitempty"`
	Result string `json:"result"`
}

// ConversationState is the per-thread checkpoint persisted between turns.
// Owned exclusively by one thread; two threads never share state.
type ConversationState struct {
	ThreadID  string            `json:"thread_id"`
	UserID    string            `json:"user_id"`
	Messages  []Message         `json:"messages"`
	Status    Status            `json:"status"`
	Pending   *PendingActionSet `json:"pending_action,omitempty"`
	ToolCalls []ToolCall        `json:"tool_calls,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}
