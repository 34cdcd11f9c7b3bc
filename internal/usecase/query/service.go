// Package query answers repeated queries from the result cache and computes
// new ones at most once.
package query

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/fingerprint"
)

// Outcome is the answer to a query.
type Outcome[R payload.Value] struct {
	ID    fingerprint.ID
	Value R
	// Cached is true when Value came from the result cache.
	Cached bool
	// IsNew is true when this call first recorded the query.
	IsNew bool
	// Shared is true when one computation served several concurrent callers.
	Shared bool
}

type queryIDKey struct{}

// QueryID returns the id of the query being computed. It is set on the
// context handed to compute.
func QueryID(ctx context.Context) (fingerprint.ID, bool) {
	id, ok := ctx.Value(queryIDKey{}).(fingerprint.ID)
	return id, ok
}

// Runner couples a dedup index with a result store.
type Runner struct {
	index     Index
	results   ResultStore
	resultTTL time.Duration
	group     singleflight.Group
	logger    *zap.Logger
}

// NewRunner creates a runner. resultTTL <= 0 uses the store default.
func NewRunner(index Index, results ResultStore, resultTTL time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		index:     index,
		results:   results,
		resultTTL: resultTTL,
		logger:    logger.With(zap.String("namespace", index.Namespace())),
	}
}

// Namespace returns the namespace of the underlying index.
func (r *Runner) Namespace() string { return r.index.Namespace() }

// Do returns the cached result for content or runs compute. Concurrent calls
// with equal content share one computation; each caller still honours its
// own ctx while waiting. On compute failure nothing is cached and the query
// is released so a retry is treated as new.
func Do[R payload.Value](
	ctx context.Context,
	r *Runner,
	content map[string]any,
	compute func(ctx context.Context) (R, error),
) (Outcome[R], error) {
	id, isNew, err := r.index.GetOrCreateQueryID(content)
	if err != nil {
		return Outcome[R]{}, fmt.Errorf("dedup %s query: %w", r.index.Namespace(), err)
	}
	resultKey := r.index.ResultKey(id)

	if !isNew {
		if v, ok := r.results.Get(resultKey); ok {
			if res, ok := v.(R); ok {
				r.logger.Debug("result cache hit", zap.String("query_id", id.Short()))
				return Outcome[R]{ID: id, Value: res, Cached: true}, nil
			}
			r.logger.Warn("cached result has unexpected kind",
				zap.String("query_id", id.Short()), zap.String("kind", string(v.Kind())))
		}
	}

	ch := r.group.DoChan(id.String(), func() (any, error) {
		start := time.Now()
		res, err := compute(context.WithValue(context.WithoutCancel(ctx), queryIDKey{}, id))
		if err != nil {
			r.index.Release(id)
			r.logger.Warn("compute failed",
				zap.String("query_id", id.Short()), zap.Error(err))
			return nil, domain.NewComputeError(id.String(), err)
		}
		if err := r.results.Set(resultKey, res, r.resultTTL); err != nil {
			r.logger.Warn("store result",
				zap.String("query_id", id.Short()), zap.Error(err))
		}
		if err := r.index.Complete(id); err != nil {
			r.logger.Warn("complete query",
				zap.String("query_id", id.Short()), zap.Error(err))
		}
		r.logger.Debug("computed result",
			zap.String("query_id", id.Short()), zap.Duration("took", time.Since(start)))
		return res, nil
	})

	select {
	case <-ctx.Done():
		return Outcome[R]{}, ctx.Err()
	case sr := <-ch:
		if sr.Err != nil {
			return Outcome[R]{}, sr.Err
		}
		return Outcome[R]{ID: id, Value: sr.Val.(R), IsNew: isNew, Shared: sr.Shared}, nil
	}
}
