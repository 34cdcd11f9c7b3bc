package cacheadmin

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
)

// Result describes a completed snapshot operation.
type Result struct {
	Name    string    `json:"name"`
	Entries int       `json:"entries"`
	At      time.Time `json:"timestamp"`
}

// Service exposes cache stats and snapshot save/load.
type Service struct {
	store  Store
	name   string
	ops    *prometheus.CounterVec
	logger *zap.Logger
}

// New creates a Service saving and loading the snapshot called name.
func New(store Store, name string, logger *zap.Logger) *Service {
	return &Service{store: store, name: name, logger: logger}
}

// WithMetrics counts snapshot operations by op and status.
func (s *Service) WithMetrics(ops *prometheus.CounterVec) *Service {
	s.ops = ops
	return s
}

// Stats returns a snapshot of cache statistics.
func (s *Service) Stats() cache.Stats {
	return s.store.Stats()
}

// Save writes the cache to the snapshot.
func (s *Service) Save(ctx context.Context) (Result, error) {
	n, err := s.store.Save(ctx, s.name)
	s.count("save", err)
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("cache snapshot saved", zap.String("name", s.name), zap.Int("entries", n))
	return Result{Name: s.name, Entries: n, At: time.Now().UTC()}, nil
}

// Load replaces the cache with the snapshot.
func (s *Service) Load(ctx context.Context) (Result, error) {
	n, err := s.store.Load(ctx, s.name)
	s.count("load", err)
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("cache snapshot loaded", zap.String("name", s.name), zap.Int("entries", n))
	return Result{Name: s.name, Entries: n, At: time.Now().UTC()}, nil
}

// Restore loads the snapshot at startup. A missing snapshot is normal on
// first start and is not an error.
func (s *Service) Restore(ctx context.Context) error {
	_, err := s.Load(ctx)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		s.logger.Info("no prior cache", zap.String("name", s.name))
		return nil
	}
	if err != nil {
		s.logger.Error("cache snapshot unreadable, starting empty", zap.String("name", s.name), zap.Error(err))
	}
	return err
}

func (s *Service) count(op string, err error) {
	if s.ops == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	s.ops.WithLabelValues(op, status).Inc()
}
