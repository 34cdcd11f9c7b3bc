package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	dominv "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/query"
)

const (
	defaultLowStockLimit = 50
	maxLowStockLimit     = 1000
)

// Service answers stock questions for facilities.
type Service struct {
	source    Source
	runner    *query.Runner
	predictor dominv.Predictor
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Service. Status and stockout reports are cached through runner.
func New(source Source, runner *query.Runner, logger *zap.Logger) *Service {
	return &Service{
		source:    source,
		runner:    runner,
		predictor: dominv.DefaultPredictor(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Status summarises stock for one facility, or all facilities when
// facilityID is empty.
func (s *Service) Status(ctx context.Context, facilityID string) (dominv.Status, error) {
	facilityID = strings.TrimSpace(facilityID)
	content := map[string]any{"op": "status", "facility_id": nullable(facilityID)}

	out, err := query.Do(ctx, s.runner, content, func(ctx context.Context) (payload.InventoryStatus, error) {
		items, err := s.items(ctx, facilityID)
		if err != nil {
			return payload.InventoryStatus{}, err
		}
		return payload.InventoryStatus{Status: dominv.Summarize(facilityID, items, s.now())}, nil
	})
	if err != nil {
		return dominv.Status{}, fmt.Errorf("inventory status: %w", err)
	}
	return out.Value.Status, nil
}

// PredictStockouts predicts stockouts, optionally keeping only one alert level.
func (s *Service) PredictStockouts(ctx context.Context, facilityID, alertLevel string) (dominv.Report, error) {
	var levels []dominv.AlertLevel
	if strings.TrimSpace(alertLevel) != "" {
		lvl, ok := dominv.ParseAlertLevel(alertLevel)
		if !ok {
			return dominv.Report{}, fmt.Errorf("%w: unknown alert level %q", domain.ErrInvalidInput, alertLevel)
		}
		levels = append(levels, lvl)
	}
	return s.report(ctx, strings.TrimSpace(facilityID), levels...)
}

// FacilityAlerts returns the CRITICAL and WARNING predictions of a facility.
func (s *Service) FacilityAlerts(ctx context.Context, facilityID string) (dominv.Report, error) {
	facilityID = strings.TrimSpace(facilityID)
	if facilityID == "" {
		return dominv.Report{}, fmt.Errorf("%w: facility_id is required", domain.ErrInvalidInput)
	}
	return s.report(ctx, facilityID, dominv.AlertCritical, dominv.AlertWarning)
}

// LowStock lists items at or below 1.2x their reorder level, lowest stock
// relative to reorder first. limit <= 0 uses 50.
func (s *Service) LowStock(ctx context.Context, facilityID string, limit int) ([]dominv.Item, error) {
	if limit <= 0 {
		limit = defaultLowStockLimit
	}
	if limit > maxLowStockLimit {
		return nil, fmt.Errorf("%w: limit must be at most %d", domain.ErrInvalidInput, maxLowStockLimit)
	}
	items, err := s.items(ctx, strings.TrimSpace(facilityID))
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}

	low := make([]dominv.Item, 0)
	for _, it := range items {
		if it.IsLow() {
			low = append(low, it)
		}
	}
	sort.SliceStable(low, func(i, j int) bool {
		return ratio(low[i]) < ratio(low[j])
	})
	if len(low) > limit {
		low = low[:limit]
	}
	return low, nil
}

func (s *Service) report(ctx context.Context, facilityID string, levels ...dominv.AlertLevel) (dominv.Report, error) {
	names := make([]string, 0, len(levels))
	for _, l := range levels {
		names = append(names, string(l))
	}
	content := map[string]any{
		"op":          "predict",
		"facility_id": nullable(facilityID),
		"levels":      strings.Join(names, ","),
	}

	out, err := query.Do(ctx, s.runner, content, func(ctx context.Context) (payload.StockoutReport, error) {
		items, err := s.items(ctx, facilityID)
		if err != nil {
			return payload.StockoutReport{}, err
		}
		now := s.now()
		preds := s.predictor.PredictAll(items, now)
		rep := dominv.NewReport(facilityID, preds, now, levels...)
		s.logger.Info("stockout prediction",
			zap.String("facility_id", facilityID),
			zap.Int("items", len(items)),
			zap.Int("critical", rep.Summary.CriticalAlerts),
			zap.Int("warning", rep.Summary.WarningAlerts),
		)
		return payload.StockoutReport{Report: rep}, nil
	})
	if err != nil {
		return dominv.Report{}, fmt.Errorf("predict stockouts: %w", err)
	}
	return out.Value.Report, nil
}

// items loads inventory, filtered to facilityID when set. An unknown
// facility is ErrNotFound.
func (s *Service) items(ctx context.Context, facilityID string) ([]dominv.Item, error) {
	all, err := s.source.Inventory(ctx)
	if err != nil {
		return nil, err
	}
	if facilityID == "" {
		return all, nil
	}
	out := make([]dominv.Item, 0)
	for _, it := range all {
		if strings.EqualFold(it.FacilityID, facilityID) {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no inventory for facility %q", domain.ErrNotFound, facilityID)
	}
	return out, nil
}

func ratio(it dominv.Item) float64 {
	if it.ReorderLevel <= 0 {
		return float64(it.StockLevel)
	}
	return float64(it.StockLevel) / float64(it.ReorderLevel)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
