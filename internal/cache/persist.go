package cache

import (
	"container/heap"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
)

// SnapshotVersion is the current snapshot format.
const SnapshotVersion = 1

// BlobStore reads and writes named snapshot blobs. Read of a missing blob
// must return an error matching domain.ErrSnapshotNotFound.
type BlobStore interface {
	Write(ctx context.Context, name string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
}

// Codec converts values to and from JSON for snapshots.
type Codec[V any] interface {
	Encode(v V) (json.RawMessage, error)
	Decode(raw json.RawMessage) (V, error)
}

// PersistenceError reports a failed snapshot operation.
type PersistenceError struct {
	Op   string
	Name string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("cache snapshot %s %q: %v", e.Op, e.Name, e.Err)
}

// Unwrap matches both domain.ErrPersistence and the cause.
func (e *PersistenceError) Unwrap() []error {
	return []error{domain.ErrPersistence, e.Err}
}

var errNoPersistence = errors.New("persistence not configured")

type snapshot struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Entries []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Key       string          `json:"key"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Hits      int64           `json:"hits"`
	Value     json.RawMessage `json:"value"`
}

// Save writes every entry to the blob named name. Contents are copied under
// the lock; encoding and I/O happen outside it.
func (s *Store[V]) Save(ctx context.Context, name string) (int, error) {
	if s.blobs == nil || s.codec == nil {
		return 0, &PersistenceError{Op: "save", Name: name, Err: errNoPersistence}
	}

	s.mu.Lock()
	items := make([]Item[V], 0, len(s.entries))
	for _, e := range s.entries {
		items = append(items, e.item())
	}
	now := s.opts.now()
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	snap := snapshot{Version: SnapshotVersion, SavedAt: now, Entries: make([]snapshotEntry, 0, len(items))}
	for _, it := range items {
		raw, err := s.codec.Encode(it.Value)
		if err != nil {
			return 0, &PersistenceError{Op: "save", Name: name, Err: fmt.Errorf("encode %s: %w", it.Key, err)}
		}
		snap.Entries = append(snap.Entries, snapshotEntry{
			Key:       it.Key,
			CreatedAt: it.CreatedAt,
			ExpiresAt: it.ExpiresAt,
			Hits:      it.Hits,
			Value:     raw,
		})
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return 0, &PersistenceError{Op: "save", Name: name, Err: err}
	}
	if err := s.blobs.Write(ctx, name, data); err != nil {
		return 0, &PersistenceError{Op: "save", Name: name, Err: err}
	}
	return len(snap.Entries), nil
}

// Load replaces the contents with the snapshot named name. Entries already
// expired are dropped and the result is trimmed to capacity, oldest first.
// On any error the store is left unchanged.
func (s *Store[V]) Load(ctx context.Context, name string) (int, error) {
	if s.blobs == nil || s.codec == nil {
		return 0, &PersistenceError{Op: "load", Name: name, Err: errNoPersistence}
	}

	data, err := s.blobs.Read(ctx, name)
	if err != nil {
		return 0, &PersistenceError{Op: "load", Name: name, Err: err}
	}
	snap, err := parseSnapshot(data)
	if err != nil {
		return 0, &PersistenceError{Op: "load", Name: name, Err: err}
	}

	decoded := make([]*entry[V], 0, len(snap.Entries))
	for _, se := range snap.Entries {
		v, err := s.codec.Decode(se.Value)
		if err != nil {
			return 0, &PersistenceError{Op: "load", Name: name, Err: fmt.Errorf("decode %s: %w", se.Key, err)}
		}
		decoded = append(decoded, &entry[V]{
			key:       se.Key,
			value:     v,
			createdAt: se.CreatedAt,
			expiresAt: se.ExpiresAt,
			hits:      se.Hits,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	s.entries = make(map[string]*entry[V], len(decoded))
	s.byAge = make(ageHeap[V], 0, len(decoded))
	for _, e := range decoded {
		if e.expired(now) {
			continue
		}
		if old, ok := s.entries[e.key]; ok {
			s.removeLocked(old)
		}
		s.entries[e.key] = e
		heap.Push(&s.byAge, e)
	}
	for s.cfg.MaxSize > 0 && len(s.entries) > s.cfg.MaxSize {
		oldest := heap.Pop(&s.byAge).(*entry[V])
		delete(s.entries, oldest.key)
		s.inc(EventEvicted)
	}
	return len(s.entries), nil
}

func parseSnapshot(data []byte) (snapshot, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot{}, fmt.Errorf("corrupt snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return snapshot{}, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return snap, nil
}

// SnapshotInfo summarises a snapshot without decoding its values.
type SnapshotInfo struct {
	Version    int            `json:"version"`
	SavedAt    time.Time      `json:"saved_at"`
	Entries    int            `json:"entries"`
	Expired    int            `json:"expired"`
	TotalHits  int64          `json:"total_hits"`
	Namespaces map[string]int `json:"namespaces"`
}

// Inspect reads snapshot metadata. Entries are grouped by the key up to the
// second ':' after prefix is stripped, e.g. "seen:triage".
func Inspect(data []byte, prefix string, now time.Time) (SnapshotInfo, error) {
	snap, err := parseSnapshot(data)
	if err != nil {
		return SnapshotInfo{}, err
	}
	info := SnapshotInfo{
		Version:    snap.Version,
		SavedAt:    snap.SavedAt,
		Entries:    len(snap.Entries),
		Namespaces: make(map[string]int),
	}
	for _, e := range snap.Entries {
		if now.After(e.ExpiresAt) {
			info.Expired++
		}
		info.TotalHits += e.Hits
		info.Namespaces[namespaceOf(strings.TrimPrefix(e.Key, prefix))]++
	}
	return info, nil
}

func namespaceOf(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return parts[0]
	}
	return parts[0] + ":" + parts[1]
}
