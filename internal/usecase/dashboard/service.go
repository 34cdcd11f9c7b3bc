package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	domdash "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/dashboard"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/query"
)

// Window limits, in days and months.
const (
	defaultPatientDays = 30
	maxPatientDays     = 365
	defaultTrendMonths = 6
	maxTrendMonths     = 24
)

// Service builds dashboard views.
type Service struct {
	source Source
	runner *query.Runner
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Service. Stats are cached through runner.
func New(source Source, runner *query.Runner, logger *zap.Logger) *Service {
	return &Service{
		source: source,
		runner: runner,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Stats returns the dashboard overview.
func (s *Service) Stats(ctx context.Context) (domdash.Summary, error) {
	out, err := query.Do(ctx, s.runner, map[string]any{"op": "stats"}, func(ctx context.Context) (payload.DashboardSummary, error) {
		sum, err := s.summarize(ctx)
		if err != nil {
			return payload.DashboardSummary{}, err
		}
		return payload.DashboardSummary{Summary: sum}, nil
	})
	if err != nil {
		return domdash.Summary{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return out.Value.Summary, nil
}

// SearchFacilities filters facilities by location and status.
func (s *Service) SearchFacilities(ctx context.Context, flt domdash.Filter) (domdash.SearchResult, error) {
	flt.State = strings.TrimSpace(flt.State)
	flt.LGA = strings.TrimSpace(flt.LGA)

	facilities, err := s.source.Facilities(ctx)
	if err != nil {
		return domdash.SearchResult{}, fmt.Errorf("search facilities: %w", err)
	}
	return domdash.Search(facilities, flt, s.now()), nil
}

// Facility returns one facility by id.
func (s *Service) Facility(ctx context.Context, id string) (domdash.Facility, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domdash.Facility{}, fmt.Errorf("%w: facility_id is required", domain.ErrInvalidInput)
	}
	facilities, err := s.source.Facilities(ctx)
	if err != nil {
		return domdash.Facility{}, fmt.Errorf("get facility: %w", err)
	}
	for _, f := range facilities {
		if strings.EqualFold(f.ID, id) {
			return f, nil
		}
	}
	return domdash.Facility{}, fmt.Errorf("facility %q: %w", id, domain.ErrNotFound)
}

// PatientStats aggregates the visits of the last days days, for one facility
// or all of them. days == 0 uses 30; otherwise it must be within 1..365.
// A facility without visits yields zero counts.
func (s *Service) PatientStats(ctx context.Context, facilityID string, days int) (domdash.PatientReport, error) {
	if days == 0 {
		days = defaultPatientDays
	}
	if days < 1 || days > maxPatientDays {
		return domdash.PatientReport{}, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidInput, maxPatientDays)
	}
	facilityID = strings.TrimSpace(facilityID)
	content := map[string]any{"op": "patients", "facility_id": nullable(facilityID), "days": days}

	out, err := query.Do(ctx, s.runner, content, func(ctx context.Context) (payload.PatientReport, error) {
		patients, err := s.source.Patients(ctx)
		if err != nil {
			return payload.PatientReport{}, err
		}
		patients = byFacility(patients, facilityID, func(p domdash.Patient) string { return p.FacilityID })
		now := s.now()
		return payload.PatientReport{PatientReport: domdash.PatientReport{
			Statistics:   domdash.PatientsWithin(patients, time.Duration(days)*24*time.Hour, now),
			FacilityID:   facilityID,
			DaysAnalyzed: days,
			Timestamp:    now,
		}}, nil
	})
	if err != nil {
		return domdash.PatientReport{}, fmt.Errorf("patient stats: %w", err)
	}
	return out.Value.PatientReport, nil
}

// WorkerStats counts health workers per role, for one facility or all.
func (s *Service) WorkerStats(ctx context.Context, facilityID string) (domdash.WorkerReport, error) {
	facilityID = strings.TrimSpace(facilityID)
	content := map[string]any{"op": "workers", "facility_id": nullable(facilityID)}

	out, err := query.Do(ctx, s.runner, content, func(ctx context.Context) (payload.WorkerReport, error) {
		workers, err := s.source.Workers(ctx)
		if err != nil {
			return payload.WorkerReport{}, err
		}
		workers = byFacility(workers, facilityID, func(w domdash.Worker) string { return w.FacilityID })
		return payload.WorkerReport{WorkerReport: domdash.WorkerReport{
			Statistics: domdash.Workforce(workers),
			FacilityID: facilityID,
			Timestamp:  s.now(),
		}}, nil
	})
	if err != nil {
		return domdash.WorkerReport{}, fmt.Errorf("worker stats: %w", err)
	}
	return out.Value.WorkerReport, nil
}

// DiseaseTrends counts monthly cases of disease over the last months months.
// months == 0 uses 6; otherwise it must be within 1..24.
func (s *Service) DiseaseTrends(ctx context.Context, disease string, months int) (domdash.DiseaseTrend, error) {
	disease = strings.TrimSpace(disease)
	if disease == "" {
		return domdash.DiseaseTrend{}, fmt.Errorf("%w: disease is required", domain.ErrInvalidInput)
	}
	if months == 0 {
		months = defaultTrendMonths
	}
	if months < 1 || months > maxTrendMonths {
		return domdash.DiseaseTrend{}, fmt.Errorf("%w: months must be between 1 and %d", domain.ErrInvalidInput, maxTrendMonths)
	}
	content := map[string]any{"op": "trend", "disease": disease, "months": months}

	out, err := query.Do(ctx, s.runner, content, func(ctx context.Context) (payload.DiseaseTrend, error) {
		patients, err := s.source.Patients(ctx)
		if err != nil {
			return payload.DiseaseTrend{}, err
		}
		tr := domdash.Trend(patients, disease, months, s.now())
		s.logger.Info("disease trend computed",
			zap.String("disease", disease),
			zap.Int("months", months),
			zap.Int("cases", tr.TotalCases),
		)
		return payload.DiseaseTrend{DiseaseTrend: tr}, nil
	})
	if err != nil {
		return domdash.DiseaseTrend{}, fmt.Errorf("disease trends: %w", err)
	}
	return out.Value.DiseaseTrend, nil
}

// summarize reads the four datasets concurrently.
func (s *Service) summarize(ctx context.Context) (domdash.Summary, error) {
	var (
		facilities []domdash.Facility
		patients   []domdash.Patient
		items      []inventory.Item
		workers    []domdash.Worker
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		facilities, err = s.source.Facilities(gctx)
		return err
	})
	g.Go(func() (err error) {
		patients, err = s.source.Patients(gctx)
		return err
	})
	g.Go(func() (err error) {
		items, err = s.source.Inventory(gctx)
		return err
	})
	g.Go(func() (err error) {
		workers, err = s.source.Workers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domdash.Summary{}, err
	}

	sum := domdash.Summarize(facilities, patients, items, workers, s.now())
	s.logger.Info("dashboard summary computed",
		zap.Int("facilities", sum.TotalFacilities),
		zap.Int("patients", sum.TotalPatients),
		zap.Int("inventory_items", sum.TotalInventoryItems),
	)
	return sum, nil
}

func byFacility[T any](rows []T, facilityID string, id func(T) string) []T {
	if facilityID == "" {
		return rows
	}
	out := make([]T, 0)
	for _, r := range rows {
		if strings.EqualFold(id(r), facilityID) {
			out = append(out, r)
		}
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
