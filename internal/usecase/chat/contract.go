package chat

import (
	"context"

	domchat "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/chat"
)

// Responder produces the assistant reply for a conversation.
type Responder interface {
	Chat(ctx context.Context, history []domchat.Message, message, language string) (string, error)
}

// History stores conversations.
type History interface {
	AppendTurn(ctx context.Context, msgs ...domchat.Message) ([]domchat.Message, error)
	Messages(ctx context.Context, sessionID string, limit int) ([]domchat.Message, error)
	// Position reports the clear epoch and stored message count of a session.
	Position(ctx context.Context, sessionID string) (epoch, turn int, err error)
	ClearSession(ctx context.Context, sessionID string) (int64, error)
}
