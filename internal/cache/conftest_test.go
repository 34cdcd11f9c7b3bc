package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
)

// --- fakeClock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- memBlobs ---

type memBlobs struct {
	mu       sync.Mutex
	data     map[string][]byte
	writeErr error
}

func newMemBlobs() *memBlobs { return &memBlobs{data: make(map[string][]byte)} }

func (m *memBlobs) Write(_ context.Context, name string, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
	return nil
}

func (m *memBlobs) Read(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[name]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", name, domain.ErrSnapshotNotFound)
	}
	return d, nil
}

// --- stringCodec ---

type stringCodec struct{}

func (stringCodec) Encode(v string) (json.RawMessage, error) { return json.Marshal(v) }

func (stringCodec) Decode(raw json.RawMessage) (string, error) {
	var s string
	err := json.Unmarshal(raw, &s)
	return s, err
}

// --- failingCodec ---

type failingCodec struct{ stringCodec }

func (failingCodec) Encode(string) (json.RawMessage, error) { return nil, errors.New("boom") }

func newTestStore(clock *fakeClock, cfg Config, opts ...Option) *Store[string] {
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New[string](cfg, opts...)
}
