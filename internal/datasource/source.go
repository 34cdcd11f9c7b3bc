// Package datasource reads facility, patient, inventory and workforce records
// from the configured backends.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/dashboard"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
)

// Source is one backend holding the PHC datasets.
type Source interface {
	Name() string
	Ping(ctx context.Context) error
	Facilities(ctx context.Context) ([]dashboard.Facility, error)
	Patients(ctx context.Context) ([]dashboard.Patient, error)
	Inventory(ctx context.Context) ([]inventory.Item, error)
	Workers(ctx context.Context) ([]dashboard.Worker, error)
}

// Chain tries sources in priority order and falls back to the next one when a
// read fails.
type Chain struct {
	sources []Source
	logger  *zap.Logger
}

// NewChain creates a chain over sources, highest priority first.
func NewChain(logger *zap.Logger, sources ...Source) *Chain {
	return &Chain{sources: sources, logger: logger}
}

// Name lists the chained sources in priority order.
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, ",")
}

// Len returns the number of chained sources.
func (c *Chain) Len() int { return len(c.sources) }

// Ping succeeds when at least one source answers.
func (c *Chain) Ping(ctx context.Context) error {
	if len(c.sources) == 0 {
		return fmt.Errorf("%w: no sources configured", domain.ErrDataSourceUnavailable)
	}
	errs := make([]error, 0, len(c.sources))
	for _, s := range c.sources {
		err := s.Ping(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return fmt.Errorf("%w: %w", domain.ErrDataSourceUnavailable, errors.Join(errs...))
}

// Facilities implements Source.
func (c *Chain) Facilities(ctx context.Context) ([]dashboard.Facility, error) {
	return read(ctx, c, "facilities", Source.Facilities)
}

// Patients implements Source.
func (c *Chain) Patients(ctx context.Context) ([]dashboard.Patient, error) {
	return read(ctx, c, "patients", Source.Patients)
}

// Inventory implements Source.
func (c *Chain) Inventory(ctx context.Context) ([]inventory.Item, error) {
	return read(ctx, c, "inventory", Source.Inventory)
}

// Workers implements Source.
func (c *Chain) Workers(ctx context.Context) ([]dashboard.Worker, error) {
	return read(ctx, c, "health_workers", Source.Workers)
}

func read[T any](ctx context.Context, c *Chain, dataset string, fn func(Source, context.Context) ([]T, error)) ([]T, error) {
	errs := make([]error, 0, len(c.sources))
	for _, s := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := fn(s, ctx)
		if err == nil {
			return rows, nil
		}
		c.logger.Warn("data source read failed, falling back",
			zap.String("source", s.Name()),
			zap.String("dataset", dataset),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", domain.ErrDataSourceUnavailable)
	}
	return nil, fmt.Errorf("%w: %s: %w", domain.ErrDataSourceUnavailable, dataset, errors.Join(errs...))
}
