package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
)

func TestStore_SetGet(t *testing.T) {
	s := newTestStore(newFakeClock(), Config{})

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected miss on empty store")
	}
	if err := s.Set("k", "v1", time.Minute); err != nil {
		t.Fatal(err)
	}
	if v, ok := s.Get("k"); !ok || v != "v1" {
		t.Fatalf("got %q %v", v, ok)
	}
	if err := s.Set("k", "v2", time.Minute); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Get("k"); v != "v2" {
		t.Fatalf("overwrite failed, got %q", v)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, Config{DefaultTTL: 10 * time.Second})

	_ = s.Set("short", "a", time.Second)
	_ = s.Set("default", "b", 0)

	clock.Advance(time.Second)
	if !s.Exists("short") {
		t.Fatal("entry must be live exactly at expires_at")
	}

	clock.Advance(time.Millisecond)
	if s.Exists("short") {
		t.Fatal("entry must expire after ttl")
	}
	if s.Len() != 1 {
		t.Fatalf("expired entry must be removed on access, len=%d", s.Len())
	}

	clock.Advance(8 * time.Second)
	if !s.Exists("default") {
		t.Fatal("ttl <= 0 must use the default ttl")
	}
	clock.Advance(time.Second)
	if s.Exists("default") {
		t.Fatal("default ttl entry must expire")
	}
}

func TestStore_GetDoesNotExtendTTL(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, Config{})
	_ = s.Set("k", "v", 2*time.Second)

	clock.Advance(1500 * time.Millisecond)
	s.Get("k")
	clock.Advance(time.Second)
	if _, ok := s.Get("k"); ok {
		t.Fatal("a read must not refresh expires_at")
	}
}

func TestStore_EvictsOldest(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, Config{MaxSize: 2})

	_ = s.Set("k1", "a", time.Hour)
	clock.Advance(time.Second)
	_ = s.Set("k2", "b", time.Hour)
	clock.Advance(time.Second)
	_ = s.Set("k3", "c", time.Hour)

	if s.Exists("k1") {
		t.Error("k1 should have been evicted")
	}
	if !s.Exists("k2") || !s.Exists("k3") {
		t.Error("k2 and k3 must survive")
	}
	if st := s.Stats(); st.Size != 2 || st.MaxSize != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestStore_EvictionTieBreaksByKey(t *testing.T) {
	s := newTestStore(newFakeClock(), Config{MaxSize: 2})
	_ = s.Set("b", "1", time.Hour)
	_ = s.Set("a", "2", time.Hour)
	_ = s.Set("c", "3", time.Hour)

	if s.Exists("a") {
		t.Error("with equal created_at the smallest key is evicted")
	}
	if !s.Exists("b") || !s.Exists("c") {
		t.Error("b and c must survive")
	}
}

func TestStore_OverwriteRefreshesAge(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, Config{MaxSize: 2})
	_ = s.Set("k1", "a", time.Hour)
	clock.Advance(time.Second)
	_ = s.Set("k2", "b", time.Hour)
	clock.Advance(time.Second)
	_ = s.Set("k1", "a2", time.Hour)
	clock.Advance(time.Second)
	_ = s.Set("k3", "c", time.Hour)

	if s.Exists("k2") {
		t.Error("k2 is now the oldest and must be evicted")
	}
	if !s.Exists("k1") {
		t.Error("rewritten k1 must survive")
	}
}

func TestStore_ExpiredDroppedBeforeEviction(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, Config{MaxSize: 2})
	_ = s.Set("old-live", "a", time.Hour)
	clock.Advance(time.Second)
	_ = s.Set("young-expiring", "b", time.Second)
	clock.Advance(2 * time.Second)
	_ = s.Set("new", "c", time.Hour)

	if !s.Exists("old-live") {
		t.Error("a live entry must not be evicted while expired ones exist")
	}
	if !s.Exists("new") {
		t.Error("new entry must be stored")
	}
}

func TestStore_RejectPolicy(t *testing.T) {
	s := newTestStore(newFakeClock(), Config{MaxSize: 1, Policy: PolicyReject})
	if err := s.Set("k1", "a", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k2", "b", time.Hour); !errors.Is(err, domain.ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if _, err := s.SetIfAbsent("k2", "b", time.Hour); !errors.Is(err, domain.ErrCapacity) {
		t.Fatalf("expected ErrCapacity from SetIfAbsent, got %v", err)
	}
	if err := s.Set("k1", "a2", time.Hour); err != nil {
		t.Fatalf("overwriting an existing key must succeed: %v", err)
	}
}

func TestStore_SetIfAbsent(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, Config{})

	ok, err := s.SetIfAbsent("k", "first", time.Second)
	if err != nil || !ok {
		t.Fatalf("first insert: %v %v", ok, err)
	}
	ok, _ = s.SetIfAbsent("k", "second", time.Second)
	if ok {
		t.Fatal("second insert must not win")
	}
	if v, _ := s.Get("k"); v != "first" {
		t.Fatalf("value changed to %q", v)
	}

	clock.Advance(2 * time.Second)
	ok, _ = s.SetIfAbsent("k", "third", time.Second)
	if !ok {
		t.Fatal("expired entry must count as absent")
	}
}

func TestStore_SetIfAbsentConcurrent(t *testing.T) {
	s := New[string](Config{})
	const n = 64

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := s.SetIfAbsent("race", "v", time.Minute)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestStore_HitsAndStats(t *testing.T) {
	s := newTestStore(newFakeClock(), Config{MaxSize: 10})
	_ = s.Set("b", "1", time.Hour)
	_ = s.Set("a", "2", time.Hour)

	s.Get("a")
	s.Exists("a")
	s.Get("b")
	s.Get("missing")

	st := s.Stats()
	if st.Size != 2 || st.TotalHits != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if len(st.Keys) != 2 || st.Keys[0] != "a" || st.Keys[1] != "b" {
		t.Fatalf("keys must be sorted: %v", st.Keys)
	}
}

func TestStore_ItemsDeleteClear(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, Config{})
	_ = s.Set("seen:triage:2", "b", time.Hour)
	_ = s.Set("seen:triage:1", "a", time.Hour)
	_ = s.Set("seen:triage:gone", "x", time.Second)
	_ = s.Set("result:triage:1", "r", time.Hour)
	clock.Advance(2 * time.Second)

	items := s.Items("seen:triage:")
	if len(items) != 2 || items[0].Key != "seen:triage:1" || items[1].Value != "b" {
		t.Fatalf("unexpected items %+v", items)
	}

	if !s.Delete("seen:triage:1") {
		t.Fatal("delete of present key must report true")
	}
	if s.Delete("seen:triage:1") {
		t.Fatal("second delete must report false")
	}

	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("clear left %d entries", s.Len())
	}
	_ = s.Set("after", "v", time.Hour)
	if !s.Exists("after") {
		t.Fatal("store must be usable after clear")
	}
}

func TestStore_Metrics(t *testing.T) {
	clock := newFakeClock()
	events := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_events_total"}, []string{"event"})
	size := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_cache_entries"})
	s := newTestStore(clock, Config{MaxSize: 1}, WithEvents(events), WithSizeGauge(size))

	_ = s.Set("k1", "a", time.Second)
	s.Get("k1")
	s.Get("nope")
	clock.Advance(time.Millisecond)
	_ = s.Set("k2", "b", time.Hour)
	s.Stats()

	for event, want := range map[string]float64{
		EventHit: 1, EventMiss: 1, EventEvicted: 1,
	} {
		if got := testutil.ToFloat64(events.WithLabelValues(event)); got != want {
			t.Errorf("%s = %v, want %v", event, got, want)
		}
	}
	if got := testutil.ToFloat64(size); got != 1 {
		t.Errorf("size gauge = %v, want 1", got)
	}
}

func TestStore_PeekAndUpdateCountNoReads(t *testing.T) {
	clock := newFakeClock()
	events := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_peek_events_total"}, []string{"event"})
	s := newTestStore(clock, Config{}, WithEvents(events))

	if _, ok := s.Peek("k"); ok {
		t.Fatal("expected nothing on empty store")
	}
	err := s.Update("k", time.Minute, func(old string, ok bool) string {
		if ok {
			t.Errorf("absent key must report ok = false, got %q", old)
		}
		return "v1"
	})
	if err != nil {
		t.Fatal(err)
	}
	err = s.Update("k", time.Minute, func(old string, ok bool) string {
		if !ok || old != "v1" {
			t.Errorf("expected live v1, got %q %v", old, ok)
		}
		return old + "+v2"
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := s.Peek("k"); !ok || v != "v1+v2" {
		t.Fatalf("got %q %v", v, ok)
	}

	if st := s.Stats(); st.TotalHits != 0 {
		t.Fatalf("peek and update must not count hits, got %d", st.TotalHits)
	}
	for _, event := range []string{EventHit, EventMiss} {
		if got := testutil.ToFloat64(events.WithLabelValues(event)); got != 0 {
			t.Errorf("%s = %v, want 0", event, got)
		}
	}

	clock.Advance(2 * time.Minute)
	if _, ok := s.Peek("k"); ok {
		t.Fatal("peek must not return expired entries")
	}
	err = s.Update("k", time.Minute, func(_ string, ok bool) string {
		if ok {
			t.Error("expired key must report ok = false")
		}
		return "fresh"
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Peek("k"); v != "fresh" {
		t.Fatalf("got %q", v)
	}
}
