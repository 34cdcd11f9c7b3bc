// Package chat holds conversation types.
package chat

import "time"

// Role of a chat message author.
type Role string

const (
	// RoleUser is the health worker.
	RoleUser Role = "user"
	// RoleAssistant is the model.
	RoleAssistant Role = "assistant"
	// RoleSystem is a system prompt.
	RoleSystem Role = "system"
)

// Message is a stored chat message.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"message"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"timestamp"`
}

// Turn is one user message and the assistant reply.
type Turn struct {
	SessionID        string    `json:"session_id"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	Language         string    `json:"language"`
	Timestamp        time.Time `json:"timestamp"`
}
