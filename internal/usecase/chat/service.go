package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	domchat "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/chat"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/query"
)

const (
	defaultHistoryLimit = 10
	maxMessageLen       = 4000
)

// Reply is a chat turn with its dedup metadata.
type Reply struct {
	domchat.Turn
	QueryID string `json:"query_id"`
	Cached  bool   `json:"cached"`
}

// Service handles chat conversations.
type Service struct {
	runner       *query.Runner
	llm          Responder
	history      History
	historyLimit int
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a Service. llm can be nil, in which case SendMessage fails with
// domain.ErrLLMProviderError. historyLimit <= 0 uses 10.
func New(runner *query.Runner, llm Responder, history History, historyLimit int, logger *zap.Logger) *Service {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Service{
		runner:       runner,
		llm:          llm,
		history:      history,
		historyLimit: historyLimit,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SendMessage answers message within session. An empty sessionID starts a
// new session. A repeated identical message at the same point of a
// conversation returns the stored turn without calling the model again.
func (s *Service) SendMessage(ctx context.Context, sessionID, message, language string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}
	if len(message) > maxMessageLen {
		return Reply{}, fmt.Errorf("%w: message exceeds %d characters", domain.ErrInvalidInput, maxMessageLen)
	}
	lang, ok := domain.NormalizeLanguage(language)
	if !ok {
		return Reply{}, fmt.Errorf("%w: unsupported language %q", domain.ErrInvalidInput, language)
	}
	if s.llm == nil {
		return Reply{}, fmt.Errorf("chat model not configured: %w", domain.ErrLLMProviderError)
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	epoch, turn, err := s.history.Position(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("session position: %w", err)
	}

	// epoch changes on every clear, so a cleared session never replays
	// turns cached before the clear.
	content := map[string]any{
		"session_id": sessionID,
		"message":    message,
		"language":   lang,
		"epoch":      epoch,
		"turn":       turn,
	}
	out, err := query.Do(ctx, s.runner, content, func(ctx context.Context) (payload.ChatTurn, error) {
		return s.respond(ctx, sessionID, message, lang)
	})
	if err != nil {
		return Reply{}, fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("chat turn",
		zap.String("session_id", sessionID),
		zap.String("query_id", out.ID.Short()),
		zap.Bool("cached", out.Cached),
		zap.Int("turn", turn),
	)
	return Reply{Turn: out.Value.Turn, QueryID: out.ID.String(), Cached: out.Cached}, nil
}

func (s *Service) respond(ctx context.Context, sessionID, message, lang string) (payload.ChatTurn, error) {
	past, err := s.history.Messages(ctx, sessionID, s.historyLimit)
	if err != nil {
		return payload.ChatTurn{}, fmt.Errorf("load history: %w", err)
	}

	answer, err := s.llm.Chat(ctx, past, message, lang)
	if err != nil {
		return payload.ChatTurn{}, err
	}

	now := s.now()
	_, err = s.history.AppendTurn(ctx,
		domchat.Message{SessionID: sessionID, Role: domchat.RoleUser, Content: message, Language: lang, CreatedAt: now},
		domchat.Message{SessionID: sessionID, Role: domchat.RoleAssistant, Content: answer, Language: lang, CreatedAt: now},
	)
	if err != nil {
		return payload.ChatTurn{}, fmt.Errorf("store turn: %w", err)
	}

	return payload.ChatTurn{Turn: domchat.Turn{
		SessionID:        sessionID,
		UserMessage:      message,
		AssistantMessage: answer,
		Language:         lang,
		Timestamp:        now,
	}}, nil
}

// History returns the last limit messages of a session, oldest first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]domchat.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrInvalidInput)
	}
	msgs, err := s.history.Messages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// ClearSession deletes a session's messages and returns how many were removed.
func (s *Service) ClearSession(ctx context.Context, sessionID string) (int64, error) {
	if strings.TrimSpace(sessionID) == "" {
		return 0, fmt.Errorf("%w: session_id is required", domain.ErrInvalidInput)
	}
	n, err := s.history.ClearSession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info("chat session cleared", zap.String("session_id", sessionID), zap.Int64("messages", n))
	return n, nil
}
