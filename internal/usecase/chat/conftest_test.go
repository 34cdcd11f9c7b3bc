package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/dedup"
	domchat "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/chat"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/query"
)

// --- mockResponder ---

type mockResponder struct {
	calls    atomic.Int32
	err      error
	lastSeen []domchat.Message
}

func (m *mockResponder) Chat(_ context.Context, history []domchat.Message, message, language string) (string, error) {
	m.calls.Add(1)
	m.lastSeen = history
	if m.err != nil {
		return "", m.err
	}
	return "[" + language + "] re: " + message, nil
}

// --- memHistory ---

type memHistory struct {
	mu        sync.Mutex
	sessions  map[string][]domchat.Message
	epochs    map[string]int
	appendErr error
}

func newMemHistory() *memHistory {
	return &memHistory{
		sessions: make(map[string][]domchat.Message),
		epochs:   make(map[string]int),
	}
}

func (h *memHistory) AppendTurn(_ context.Context, msgs ...domchat.Message) ([]domchat.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendErr != nil {
		return nil, h.appendErr
	}
	for _, m := range msgs {
		h.sessions[m.SessionID] = append(h.sessions[m.SessionID], m)
	}
	return msgs, nil
}

func (h *memHistory) Messages(_ context.Context, sessionID string, limit int) ([]domchat.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	all := h.sessions[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]domchat.Message, len(all))
	copy(out, all)
	return out, nil
}

func (h *memHistory) Position(_ context.Context, sessionID string) (int, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.epochs[sessionID], len(h.sessions[sessionID]), nil
}

func (h *memHistory) ClearSession(_ context.Context, sessionID string) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.sessions[sessionID])
	delete(h.sessions, sessionID)
	h.epochs[sessionID]++
	return int64(n), nil
}

// --- helpers ---

func newTestService(llm Responder, h History, limit int) *Service {
	store := cache.New[payload.Value](cache.Config{})
	index := dedup.New(store, nil, dedup.Config{Namespace: "chat", TextField: "message"}, zap.NewNop())
	runner := query.NewRunner(index, store, 30*time.Minute, zap.NewNop())
	return New(runner, llm, h, limit, zap.NewNop())
}
