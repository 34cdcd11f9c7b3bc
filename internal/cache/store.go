// Package cache implements the in-memory TTL store shared by the
// deduplication index and the query orchestrator.
package cache

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
)

// Policy decides what happens when a new key arrives at a full store.
type Policy string

const (
	// PolicyEvict drops the oldest entry to make room.
	PolicyEvict Policy = "evict"
	// PolicyReject refuses the write with domain.ErrCapacity.
	PolicyReject Policy = "reject"
)

// DefaultTTL is used when Config.DefaultTTL is not set.
const DefaultTTL = time.Hour

// Config configures a Store. MaxSize <= 0 means unbounded.
type Config struct {
	DefaultTTL time.Duration
	MaxSize    int
	Policy     Policy
}

// Cache event label values.
const (
	EventHit      = "hit"
	EventMiss     = "miss"
	EventExpired  = "expired"
	EventEvicted  = "evicted"
	EventRejected = "rejected"
)

type options struct {
	now    func() time.Time
	events *prometheus.CounterVec
	size   prometheus.Gauge
}

// Option customizes a Store.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithEvents counts cache events on a counter vec with label "event".
func WithEvents(events *prometheus.CounterVec) Option {
	return func(o *options) { o.events = events }
}

// WithSizeGauge reports the live entry count whenever Stats is called.
func WithSizeGauge(g prometheus.Gauge) Option {
	return func(o *options) { o.size = g }
}

// Item is a copy of a live entry.
type Item[V any] struct {
	Key       string
	Value     V
	CreatedAt time.Time
	ExpiresAt time.Time
	Hits      int64
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Size      int      `json:"size"`
	MaxSize   int      `json:"max_size"`
	TotalHits int64    `json:"total_hits"`
	Keys      []string `json:"keys"`
}

type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	expiresAt time.Time
	hits      int64
	index     int
}

func (e *entry[V]) expired(now time.Time) bool { return now.After(e.expiresAt) }

// Store is a TTL key-value store with bounded size. All operations are
// serialized by a single mutex.
type Store[V any] struct {
	mu      sync.Mutex
	cfg     Config
	opts    options
	entries map[string]*entry[V]
	byAge   ageHeap[V]

	blobs BlobStore
	codec Codec[V]
}

// New creates an empty store.
func New[V any](cfg Config, opts ...Option) *Store[V] {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyEvict
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[V]{
		cfg:     cfg,
		opts:    o,
		entries: make(map[string]*entry[V]),
	}
}

// WithPersistence sets where Save and Load read and write snapshots.
func (s *Store[V]) WithPersistence(blobs BlobStore, codec Codec[V]) *Store[V] {
	s.blobs = blobs
	s.codec = codec
	return s
}

// Set stores value under key, replacing any previous entry. A ttl <= 0 uses
// the default TTL.
func (s *Store[V]) Set(key string, value V, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	if e, ok := s.entries[key]; ok {
		e.value = value
		e.createdAt = now
		e.expiresAt = now.Add(s.ttl(ttl))
		e.hits = 0
		heap.Fix(&s.byAge, e.index)
		return nil
	}
	return s.insertLocked(key, value, ttl, now)
}

// SetIfAbsent stores value only when key has no live entry. Expired entries
// count as absent.
func (s *Store[V]) SetIfAbsent(key string, value V, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	if e, ok := s.entries[key]; ok {
		if !e.expired(now) {
			return false, nil
		}
		s.removeLocked(e)
		s.inc(EventExpired)
	}
	if err := s.insertLocked(key, value, ttl, now); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the live value for key. Expired entries are removed on access.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	e, ok := s.entries[key]
	if !ok {
		s.inc(EventMiss)
		return zero, false
	}
	if e.expired(s.opts.now()) {
		s.removeLocked(e)
		s.inc(EventExpired)
		s.inc(EventMiss)
		return zero, false
	}
	e.hits++
	s.inc(EventHit)
	return e.value, true
}

// Peek returns the live value for key without counting a read.
func (s *Store[V]) Peek(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.opts.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Update stores fn applied to the live value of key under one lock. fn gets
// ok = false when key is absent or expired. Like Set, the TTL restarts and
// hits reset; no read is counted.
func (s *Store[V]) Update(key string, ttl time.Duration, fn func(old V, ok bool) V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	e, ok := s.entries[key]
	if ok && e.expired(now) {
		s.removeLocked(e)
		s.inc(EventExpired)
		ok = false
	}
	if !ok {
		var zero V
		return s.insertLocked(key, fn(zero, false), ttl, now)
	}
	e.value = fn(e.value, true)
	e.createdAt = now
	e.expiresAt = now.Add(s.ttl(ttl))
	e.hits = 0
	heap.Fix(&s.byAge, e.index)
	return nil
}

// Exists reports whether key has a live entry. It counts as a read.
func (s *Store[V]) Exists(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Delete removes key and reports whether it was present.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.removeLocked(e)
	return true
}

// Clear removes every entry.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry[V])
	s.byAge = nil
}

// Items returns copies of the live entries whose key starts with prefix,
// ordered by key.
func (s *Store[V]) Items(prefix string) []Item[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	out := make([]Item[V], 0)
	for k, e := range s.entries {
		if !strings.HasPrefix(k, prefix) || e.expired(now) {
			continue
		}
		out = append(out, e.item())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Stats returns a snapshot of the live entries.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	st := Stats{MaxSize: s.cfg.MaxSize, Keys: make([]string, 0, len(s.entries))}
	for k, e := range s.entries {
		if e.expired(now) {
			continue
		}
		st.Keys = append(st.Keys, k)
		st.TotalHits += e.hits
	}
	sort.Strings(st.Keys)
	st.Size = len(st.Keys)
	if s.opts.size != nil {
		s.opts.size.Set(float64(st.Size))
	}
	return st
}

// Len returns the number of stored entries, including expired ones not yet
// reclaimed.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store[V]) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.cfg.DefaultTTL
	}
	return ttl
}

func (s *Store[V]) full() bool {
	return s.cfg.MaxSize > 0 && len(s.entries) >= s.cfg.MaxSize
}

func (s *Store[V]) insertLocked(key string, value V, ttl time.Duration, now time.Time) error {
	if s.full() {
		s.purgeExpiredLocked(now)
	}
	if s.full() {
		if s.cfg.Policy == PolicyReject {
			s.inc(EventRejected)
			return fmt.Errorf("%w: %d entries", domain.ErrCapacity, s.cfg.MaxSize)
		}
		oldest := heap.Pop(&s.byAge).(*entry[V])
		delete(s.entries, oldest.key)
		s.inc(EventEvicted)
	}
	e := &entry[V]{key: key, value: value, createdAt: now, expiresAt: now.Add(s.ttl(ttl))}
	s.entries[key] = e
	heap.Push(&s.byAge, e)
	return nil
}

func (s *Store[V]) removeLocked(e *entry[V]) {
	heap.Remove(&s.byAge, e.index)
	delete(s.entries, e.key)
}

func (s *Store[V]) purgeExpiredLocked(now time.Time) {
	for _, e := range s.entries {
		if e.expired(now) {
			s.removeLocked(e)
			s.inc(EventExpired)
		}
	}
}

func (s *Store[V]) inc(event string) {
	if s.opts.events != nil {
		s.opts.events.WithLabelValues(event).Inc()
	}
}

func (e *entry[V]) item() Item[V] {
	return Item[V]{Key: e.key, Value: e.value, CreatedAt: e.createdAt, ExpiresAt: e.expiresAt, Hits: e.hits}
}

// ageHeap orders entries by creation time, then key.
type ageHeap[V any] []*entry[V]

func (h ageHeap[V]) Len() int { return len(h) }

func (h ageHeap[V]) Less(i, j int) bool {
	if h[i].createdAt.Equal(h[j].createdAt) {
		return h[i].key < h[j].key
	}
	return h[i].createdAt.Before(h[j].createdAt)
}

func (h ageHeap[V]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *ageHeap[V]) Push(x any) {
	e := x.(*entry[V])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *ageHeap[V]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
