package triage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/dedup"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	domtriage "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/triage"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/repository/history"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/query"
)

// --- mockAnalyzer ---

type mockAnalyzer struct {
	calls  atomic.Int32
	result domtriage.Result
	err    error
}

func (m *mockAnalyzer) AnalyzeSymptoms(_ context.Context, _ domtriage.Request) (domtriage.Result, error) {
	m.calls.Add(1)
	return m.result, m.err
}

// --- mockLog ---

type mockLog struct {
	mu   sync.Mutex
	rows []history.Analysis
	err  error
}

func (m *mockLog) LogAnalysis(_ context.Context, a history.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, a)
	return m.err
}

// --- helpers ---

func newTestService(llm Analyzer, log AnalysisLog) *Service {
	store := cache.New[payload.Value](cache.Config{})
	index := dedup.New(store, nil, dedup.Config{Namespace: "triage", TextField: "symptoms"}, zap.NewNop())
	runner := query.NewRunner(index, store, time.Hour, zap.NewNop())
	return New(runner, index, llm, log, zap.NewNop())
}

func mustRequest(symptoms, language string, patient *domtriage.PatientInfo) domtriage.Request {
	req, err := domtriage.NewRequest(symptoms, language, patient)
	if err != nil {
		panic(err)
	}
	return req
}
