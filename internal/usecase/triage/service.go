package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/dedup"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	domtriage "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/triage"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/repository/history"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/query"
)

// AnalysisKind tags triage rows in the analysis log.
const AnalysisKind = "triage"

// Assessment is a triage result with its dedup metadata.
type Assessment struct {
	domtriage.Result
	QueryID string `json:"query_id"`
	Cached  bool   `json:"cached"`
}

// Service handles symptom triage.
type Service struct {
	runner  *query.Runner
	similar SimilarFinder
	llm     Analyzer
	log     AnalysisLog
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Service. llm and log can be nil: without a model the keyword
// fallback answers, without a log nothing is recorded.
func New(runner *query.Runner, similar SimilarFinder, llm Analyzer, log AnalysisLog, logger *zap.Logger) *Service {
	return &Service{
		runner:  runner,
		similar: similar,
		llm:     llm,
		log:     log,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Analyze returns the assessment for req, computing it at most once per
// distinct request.
func (s *Service) Analyze(ctx context.Context, req domtriage.Request) (Assessment, error) {
	content := req.Content()
	out, err := query.Do(ctx, s.runner, content, func(ctx context.Context) (payload.TriageResult, error) {
		res, err := s.assess(ctx, req)
		if err != nil {
			return payload.TriageResult{}, err
		}
		s.record(ctx, content, res)
		return payload.TriageResult{Result: res}, nil
	})
	if err != nil {
		return Assessment{}, fmt.Errorf("analyze symptoms: %w", err)
	}

	s.logger.Info("triage assessed",
		zap.String("query_id", out.ID.Short()),
		zap.Bool("cached", out.Cached),
		zap.String("urgency", out.Value.UrgencyLevel),
	)
	return Assessment{Result: out.Value.Result, QueryID: out.ID.String(), Cached: out.Cached}, nil
}

// Similar returns previously seen symptom descriptions close to symptoms.
// threshold <= 0 uses the index default.
func (s *Service) Similar(symptoms string, threshold float64) ([]dedup.Match, error) {
	if strings.TrimSpace(symptoms) == "" {
		return nil, fmt.Errorf("%w: symptoms is required", domain.ErrInvalidInput)
	}
	if threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in (0, 1]", domain.ErrInvalidInput)
	}
	return s.similar.FindSimilarQueries(symptoms, threshold), nil
}

func (s *Service) assess(ctx context.Context, req domtriage.Request) (domtriage.Result, error) {
	if s.llm == nil {
		return domtriage.Fallback(req.Symptoms(), s.now()), nil
	}
	res, err := s.llm.AnalyzeSymptoms(ctx, req)
	if err != nil {
		return domtriage.Result{}, err
	}
	res.ApplyDefaults()
	if res.Timestamp.IsZero() {
		res.Timestamp = s.now()
	}
	return res, nil
}

// record writes a fresh assessment to the analysis log. Failures are logged only.
func (s *Service) record(ctx context.Context, content map[string]any, res domtriage.Result) {
	if s.log == nil {
		return
	}
	in, _ := json.Marshal(content)
	out, _ := json.Marshal(res)
	id, _ := query.QueryID(ctx)
	err := s.log.LogAnalysis(ctx, history.Analysis{
		Kind:    AnalysisKind,
		QueryID: id.String(),
		Input:   string(in),
		Output:  string(out),
	})
	if err != nil {
		s.logger.Warn("log analysis", zap.Error(err))
	}
}
