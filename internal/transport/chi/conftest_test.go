package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
	domchat "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/chat"
	domdash "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/dashboard"
	dominv "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
	domtriage "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/triage"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/dedup"
	cacheadminuc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/cacheadmin"
	chatuc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/chat"
	healthuc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/health"
	triageuc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/triage"
)

// --- mockTriage ---

type mockTriage struct {
	analyzeFn func(ctx context.Context, req domtriage.Request) (triageuc.Assessment, error)
	similarFn func(symptoms string, threshold float64) ([]dedup.Match, error)
}

func (m *mockTriage) Analyze(ctx context.Context, req domtriage.Request) (triageuc.Assessment, error) {
	return m.analyzeFn(ctx, req)
}

func (m *mockTriage) Similar(symptoms string, threshold float64) ([]dedup.Match, error) {
	return m.similarFn(symptoms, threshold)
}

// --- mockChat ---

type mockChat struct {
	sendFn    func(ctx context.Context, sessionID, message, language string) (chatuc.Reply, error)
	historyFn func(ctx context.Context, sessionID string, limit int) ([]domchat.Message, error)
	clearFn   func(ctx context.Context, sessionID string) (int64, error)
}

func (m *mockChat) SendMessage(ctx context.Context, sessionID, message, language string) (chatuc.Reply, error) {
	return m.sendFn(ctx, sessionID, message, language)
}

func (m *mockChat) History(ctx context.Context, sessionID string, limit int) ([]domchat.Message, error) {
	return m.historyFn(ctx, sessionID, limit)
}

func (m *mockChat) ClearSession(ctx context.Context, sessionID string) (int64, error) {
	return m.clearFn(ctx, sessionID)
}

// --- mockInventory ---

type mockInventory struct {
	statusFn   func(ctx context.Context, facilityID string) (dominv.Status, error)
	predictFn  func(ctx context.Context, facilityID, alertLevel string) (dominv.Report, error)
	alertsFn   func(ctx context.Context, facilityID string) (dominv.Report, error)
	lowStockFn func(ctx context.Context, facilityID string, limit int) ([]dominv.Item, error)
}

func (m *mockInventory) Status(ctx context.Context, facilityID string) (dominv.Status, error) {
	return m.statusFn(ctx, facilityID)
}

func (m *mockInventory) PredictStockouts(ctx context.Context, facilityID, alertLevel string) (dominv.Report, error) {
	return m.predictFn(ctx, facilityID, alertLevel)
}

func (m *mockInventory) FacilityAlerts(ctx context.Context, facilityID string) (dominv.Report, error) {
	return m.alertsFn(ctx, facilityID)
}

func (m *mockInventory) LowStock(ctx context.Context, facilityID string, limit int) ([]dominv.Item, error) {
	return m.lowStockFn(ctx, facilityID, limit)
}

// --- mockDashboard ---

type mockDashboard struct {
	statsFn    func(ctx context.Context) (domdash.Summary, error)
	searchFn   func(ctx context.Context, flt domdash.Filter) (domdash.SearchResult, error)
	facilityFn func(ctx context.Context, id string) (domdash.Facility, error)
	patientsFn func(ctx context.Context, facilityID string, days int) (domdash.PatientReport, error)
	workersFn  func(ctx context.Context, facilityID string) (domdash.WorkerReport, error)
	trendsFn   func(ctx context.Context, disease string, months int) (domdash.DiseaseTrend, error)
}

func (m *mockDashboard) Stats(ctx context.Context) (domdash.Summary, error) { return m.statsFn(ctx) }

func (m *mockDashboard) SearchFacilities(ctx context.Context, flt domdash.Filter) (domdash.SearchResult, error) {
	return m.searchFn(ctx, flt)
}

func (m *mockDashboard) Facility(ctx context.Context, id string) (domdash.Facility, error) {
	return m.facilityFn(ctx, id)
}

func (m *mockDashboard) PatientStats(ctx context.Context, facilityID string, days int) (domdash.PatientReport, error) {
	return m.patientsFn(ctx, facilityID, days)
}

func (m *mockDashboard) WorkerStats(ctx context.Context, facilityID string) (domdash.WorkerReport, error) {
	return m.workersFn(ctx, facilityID)
}

func (m *mockDashboard) DiseaseTrends(ctx context.Context, disease string, months int) (domdash.DiseaseTrend, error) {
	return m.trendsFn(ctx, disease, months)
}

// --- mockCache ---

type mockCache struct {
	stats  cache.Stats
	saveFn func(ctx context.Context) (cacheadminuc.Result, error)
	loadFn func(ctx context.Context) (cacheadminuc.Result, error)
}

func (m *mockCache) Stats() cache.Stats { return m.stats }

func (m *mockCache) Save(ctx context.Context) (cacheadminuc.Result, error) { return m.saveFn(ctx) }

func (m *mockCache) Load(ctx context.Context) (cacheadminuc.Result, error) { return m.loadFn(ctx) }

// --- mockHealth ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- fixture ---

type fixture struct {
	triage    *mockTriage
	chat      *mockChat
	inventory *mockInventory
	dashboard *mockDashboard
	cache     *mockCache
	health    *mockHealth
	handler   http.Handler
}

func newFixture(t *testing.T, apiKeys ...string) *fixture {
	t.Helper()
	f := &fixture{
		triage:    &mockTriage{},
		chat:      &mockChat{},
		inventory: &mockInventory{},
		dashboard: &mockDashboard{},
		cache:     &mockCache{},
		health:    &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}},
	}
	srv := NewServer(f.triage, f.chat, f.inventory, f.dashboard, f.cache, f.health, zap.NewNop()).
		WithSimilarityThreshold(0.9)
	f.handler = srv.Router(apiKeys)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}
