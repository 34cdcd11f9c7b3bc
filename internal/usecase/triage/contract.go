package triage

import (
	"context"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/dedup"
	domtriage "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/triage"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/repository/history"
)

// Analyzer produces a triage assessment with a language model.
type Analyzer interface {
	AnalyzeSymptoms(ctx context.Context, req domtriage.Request) (domtriage.Result, error)
}

// AnalysisLog records fresh assessments.
type AnalysisLog interface {
	LogAnalysis(ctx context.Context, a history.Analysis) error
}

// SimilarFinder looks up previously seen symptom descriptions.
type SimilarFinder interface {
	FindSimilarQueries(text string, threshold float64) []dedup.Match
}
