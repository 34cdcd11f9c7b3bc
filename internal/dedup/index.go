// Package dedup tracks which queries have been seen so repeated requests can
// be answered from the result cache.
package dedup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/fingerprint"
)

// Defaults applied by New.
const (
	DefaultTTL       = 24 * time.Hour
	DefaultThreshold = 0.9
)

// store is the consumer interface over the shared cache (ISP).
type store interface {
	SetIfAbsent(key string, value payload.Value, ttl time.Duration) (bool, error)
	Update(key string, ttl time.Duration, fn func(old payload.Value, ok bool) payload.Value) error
	Peek(key string) (payload.Value, bool)
	Delete(key string) bool
	Items(prefix string) []cache.Item[payload.Value]
}

// Config configures an Index.
type Config struct {
	// Namespace separates use cases sharing one cache, e.g. "triage".
	Namespace string
	TTL       time.Duration
	Threshold float64
	// TextField names the content field compared by FindSimilarQueries.
	TextField string
}

// Match is a similar previously seen query.
type Match struct {
	ID    fingerprint.ID `json:"query_id"`
	Score float64        `json:"similarity"`
}

// Index records query fingerprints in the shared cache.
type Index struct {
	store   store
	hasher  *fingerprint.Hasher
	cfg     Config
	now     func() time.Time
	queries *prometheus.CounterVec
	logger  *zap.Logger
}

// New creates an index for one namespace.
func New(s store, hasher *fingerprint.Hasher, cfg Config, logger *zap.Logger) *Index {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if hasher == nil {
		hasher = fingerprint.NewHasher()
	}
	return &Index{
		store:  s,
		hasher: hasher,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(zap.String("namespace", cfg.Namespace)),
	}
}

// WithMetrics counts lookups on a counter vec labelled namespace and result
// ("new" / "duplicate").
func (x *Index) WithMetrics(queries *prometheus.CounterVec) *Index {
	x.queries = queries
	return x
}

// WithClock replaces time.Now for first_seen_at stamps.
func (x *Index) WithClock(now func() time.Time) *Index {
	x.now = now
	return x
}

// Namespace returns the index namespace.
func (x *Index) Namespace() string { return x.cfg.Namespace }

// SeenKey is the cache key of the seen record for id.
func (x *Index) SeenKey(id fingerprint.ID) string {
	return domain.KeyPrefix + domain.SeenNamespace + x.cfg.Namespace + ":" + id.String()
}

// ResultKey is the cache key of the computed result for id.
func (x *Index) ResultKey(id fingerprint.ID) string {
	return domain.KeyPrefix + domain.ResultNamespace + x.cfg.Namespace + ":" + id.String()
}

// GetOrCreateQueryID fingerprints content and records it as in progress if it
// has not been seen within the TTL. Exactly one of any set of concurrent
// callers with equal content gets isNew = true.
func (x *Index) GetOrCreateQueryID(content map[string]any) (fingerprint.ID, bool, error) {
	id, err := x.hasher.Fingerprint(content)
	if err != nil {
		return "", false, fmt.Errorf("fingerprint query: %w", err)
	}

	rec := payload.SeenRecord{
		Fingerprint: id.String(),
		FirstSeenAt: x.now(),
		State:       payload.StateInProgress,
		Text:        x.text(content),
	}
	isNew, err := x.store.SetIfAbsent(x.SeenKey(id), rec, x.cfg.TTL)
	if err != nil {
		return "", false, fmt.Errorf("record query %s: %w", id.Short(), err)
	}

	if isNew {
		x.inc("new")
		x.logger.Debug("new query", zap.String("query_id", id.Short()))
	} else {
		x.inc("duplicate")
		x.logger.Debug("duplicate query", zap.String("query_id", id.Short()))
	}
	return id, isNew, nil
}

// Record returns the live seen record for id. It is not counted as a cache
// read.
func (x *Index) Record(id fingerprint.ID) (payload.SeenRecord, bool) {
	v, ok := x.store.Peek(x.SeenKey(id))
	if !ok {
		return payload.SeenRecord{}, false
	}
	rec, ok := v.(payload.SeenRecord)
	return rec, ok
}

// Complete marks id as seen once its result is stored. The record keeps its
// first_seen_at and text; its TTL restarts.
func (x *Index) Complete(id fingerprint.ID) error {
	err := x.store.Update(x.SeenKey(id), x.cfg.TTL, func(old payload.Value, ok bool) payload.Value {
		rec, isRec := old.(payload.SeenRecord)
		if !ok || !isRec {
			rec = payload.SeenRecord{Fingerprint: id.String(), FirstSeenAt: x.now()}
		}
		rec.State = payload.StateSeen
		return rec
	})
	if err != nil {
		return fmt.Errorf("complete query %s: %w", id.Short(), err)
	}
	return nil
}

// Release forgets id so the next identical query is treated as new.
func (x *Index) Release(id fingerprint.ID) {
	if x.store.Delete(x.SeenKey(id)) {
		x.logger.Debug("released query", zap.String("query_id", id.Short()))
	}
}

// FindSimilarQueries returns seen queries whose text has a token-set Jaccard
// similarity to text of at least threshold, best first. A threshold <= 0
// uses the configured default.
func (x *Index) FindSimilarQueries(text string, threshold float64) []Match {
	if threshold <= 0 {
		threshold = x.cfg.Threshold
	}
	query := tokenSet(text)

	prefix := domain.KeyPrefix + domain.SeenNamespace + x.cfg.Namespace + ":"
	matches := make([]Match, 0)
	for _, it := range x.store.Items(prefix) {
		rec, ok := it.Value.(payload.SeenRecord)
		if !ok {
			continue
		}
		score := Jaccard(query, tokenSet(rec.Text))
		if score >= threshold {
			matches = append(matches, Match{ID: fingerprint.ID(rec.Fingerprint), Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

func (x *Index) text(content map[string]any) string {
	if x.cfg.TextField == "" {
		return ""
	}
	s, _ := content[x.cfg.TextField].(string)
	return strings.ToLower(strings.TrimSpace(s))
}

func (x *Index) inc(result string) {
	if x.queries != nil {
		x.queries.WithLabelValues(x.cfg.Namespace, result).Inc()
	}
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
