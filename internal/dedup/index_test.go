package dedup

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/fingerprint"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newIndex(t *testing.T, cfg Config) (*Index, *cache.Store[payload.Value], *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := cache.New[payload.Value](cache.Config{}, cache.WithClock(c.Now))
	h := fingerprint.NewHasher(fingerprint.Field{Name: "language", Default: "english"})
	if cfg.Namespace == "" {
		cfg.Namespace = "triage"
	}
	if cfg.TextField == "" {
		cfg.TextField = "symptoms"
	}
	return New(s, h, cfg, zap.NewNop()).WithClock(c.Now), s, c
}

func TestGetOrCreateQueryID_Idempotent(t *testing.T) {
	x, _, _ := newIndex(t, Config{})

	id1, isNew, err := x.GetOrCreateQueryID(map[string]any{"symptoms": "Fever"})
	if err != nil || !isNew {
		t.Fatalf("first call: new=%v err=%v", isNew, err)
	}
	id2, isNew, err := x.GetOrCreateQueryID(map[string]any{"symptoms": " fever ", "language": "English"})
	if err != nil || isNew {
		t.Fatalf("second call: new=%v err=%v", isNew, err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %s vs %s", id1, id2)
	}

	rec, ok := x.Record(id1)
	if !ok || rec.State != payload.StateInProgress || rec.Text != "fever" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestGetOrCreateQueryID_Concurrent(t *testing.T) {
	x, _, _ := newIndex(t, Config{})
	const n = 50

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
		ids   = make(map[fingerprint.ID]struct{})
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			id, isNew, err := x.GetOrCreateQueryID(map[string]any{"symptoms": "cough"})
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[id] = struct{}{}
			if isNew {
				fresh++
			}
		}()
	}
	close(start)
	wg.Wait()

	if fresh != 1 {
		t.Fatalf("expected exactly one new, got %d", fresh)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one id, got %d", len(ids))
	}
}

func TestGetOrCreateQueryID_TTLExpiry(t *testing.T) {
	x, _, c := newIndex(t, Config{TTL: time.Hour})
	content := map[string]any{"symptoms": "headache"}

	if _, isNew, _ := x.GetOrCreateQueryID(content); !isNew {
		t.Fatal("expected new")
	}
	c.Advance(59 * time.Minute)
	if _, isNew, _ := x.GetOrCreateQueryID(content); isNew {
		t.Fatal("expected duplicate within ttl")
	}
	c.Advance(2 * time.Minute)
	if _, isNew, _ := x.GetOrCreateQueryID(content); !isNew {
		t.Fatal("expected new after ttl")
	}
}

func TestGetOrCreateQueryID_EncodingError(t *testing.T) {
	x, _, _ := newIndex(t, Config{})
	_, _, err := x.GetOrCreateQueryID(map[string]any{"symptoms": make(chan int)})
	if !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestCompleteAndRelease(t *testing.T) {
	x, s, _ := newIndex(t, Config{})
	content := map[string]any{"symptoms": "rash"}

	id, _, _ := x.GetOrCreateQueryID(content)
	if err := x.Complete(id); err != nil {
		t.Fatal(err)
	}
	rec, ok := x.Record(id)
	if !ok || rec.State != payload.StateSeen || rec.Text != "rash" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if hits := s.Stats().TotalHits; hits != 0 {
		t.Fatalf("bookkeeping must not count as cache hits, got %d", hits)
	}

	x.Release(id)
	if _, ok := x.Record(id); ok {
		t.Fatal("released record must be gone")
	}
	if _, isNew, _ := x.GetOrCreateQueryID(content); !isNew {
		t.Fatal("query must be new after release")
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	c := &clock{t: time.Now()}
	s := cache.New[payload.Value](cache.Config{}, cache.WithClock(c.Now))
	triage := New(s, nil, Config{Namespace: "triage"}, zap.NewNop())
	chat := New(s, nil, Config{Namespace: "chat"}, zap.NewNop())

	content := map[string]any{"message": "hello"}
	if _, isNew, _ := triage.GetOrCreateQueryID(content); !isNew {
		t.Fatal("expected new in triage")
	}
	if _, isNew, _ := chat.GetOrCreateQueryID(content); !isNew {
		t.Fatal("same content in another namespace must be new")
	}
}

func TestFindSimilarQueries(t *testing.T) {
	x, _, _ := newIndex(t, Config{})
	for _, s := range []string{
		"fever headache body pain",
		"fever headache",
		"chest pain",
	} {
		if _, _, err := x.GetOrCreateQueryID(map[string]any{"symptoms": s}); err != nil {
			t.Fatal(err)
		}
	}

	got := x.FindSimilarQueries("Fever Headache", 0.5)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %+v", got)
	}
	if got[0].Score != 1 || got[1].Score != 0.5 {
		t.Fatalf("matches must be ordered best first: %+v", got)
	}

	if got := x.FindSimilarQueries("fever headache", 0); len(got) != 1 {
		t.Fatalf("default threshold 0.9 must keep only the exact match, got %+v", got)
	}
	if got := x.FindSimilarQueries("", 0.1); len(got) != 0 {
		t.Fatalf("empty text matches nothing, got %+v", got)
	}
}

func TestJaccard(t *testing.T) {
	set := func(s ...string) map[string]struct{} {
		m := make(map[string]struct{})
		for _, v := range s {
			m[v] = struct{}{}
		}
		return m
	}
	tests := []struct {
		a, b map[string]struct{}
		want float64
	}{
		{set(), set(), 0},
		{set("a"), set(), 0},
		{set("a", "b"), set("a", "b"), 1},
		{set("a", "b"), set("b", "c"), 1.0 / 3.0},
	}
	for _, tc := range tests {
		if got := Jaccard(tc.a, tc.b); got != tc.want {
			t.Errorf("Jaccard(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMetrics(t *testing.T) {
	queries := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_dedup_total"}, []string{"namespace", "result"})
	x, _, _ := newIndex(t, Config{})
	x.WithMetrics(queries)

	content := map[string]any{"symptoms": "fever"}
	_, _, _ = x.GetOrCreateQueryID(content)
	_, _, _ = x.GetOrCreateQueryID(content)
	_, _, _ = x.GetOrCreateQueryID(content)

	if got := testutil.ToFloat64(queries.WithLabelValues("triage", "new")); got != 1 {
		t.Errorf("new = %v, want 1", got)
	}
	if got := testutil.ToFloat64(queries.WithLabelValues("triage", "duplicate")); got != 2 {
		t.Errorf("duplicate = %v, want 2", got)
	}
}
