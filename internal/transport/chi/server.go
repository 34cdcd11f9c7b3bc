package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	domdash "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/dashboard"
	domtriage "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/triage"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/metrics"
	healthuc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/health"
)

const (
	defaultHistoryLimit = 50
	maxBodyBytes        = 1 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the PHC assistant HTTP API.
type Server struct {
	triage        TriageService
	chat          ChatService
	inventory     InventoryService
	dashboard     DashboardService
	cache         CacheService
	health        HealthChecker
	threshold     float64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	triage TriageService,
	chat ChatService,
	inventory InventoryService,
	dashboard DashboardService,
	cache CacheService,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		triage:    triage,
		chat:      chat,
		inventory: inventory,
		dashboard: dashboard,
		cache:     cache,
		health:    health,
		logger:    logger,
	}
	// Order matters: compute failures also match their cause, so the
	// specific sentinels come before ErrCompute.
	s.errorHandlers = []errorHandler{
		detailHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		detailHandler(domain.ErrEncoding, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrDataSourceUnavailable, http.StatusServiceUnavailable, CodeDataSourceUnavailable),
		sentinelHandler(domain.ErrCapacity, http.StatusServiceUnavailable, CodeCapacityExceeded),
		sentinelHandler(domain.ErrSnapshotNotFound, http.StatusNotFound, CodeSnapshotNotFound),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, CodeLLMProviderError),
		sentinelHandler(domain.ErrCompute, http.StatusBadGateway, CodeLLMProviderError),
		sentinelHandler(domain.ErrPersistence, http.StatusInternalServerError, CodePersistenceError),
	}
	return s
}

// WithSimilarityThreshold sets the threshold used when /api/triage/similar
// has none.
func (s *Server) WithSimilarityThreshold(t float64) *Server {
	s.threshold = t
	return s
}

// Router builds the chi router with the middleware stack and all routes.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := gochi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r gochi.Router) {
		r.Post("/triage/analyze", s.AnalyzeSymptoms)
		r.Get("/triage/similar", s.SimilarQueries)

		r.Post("/chat/message", s.SendMessage)
		r.Get("/chat/history/{session_id}", s.ChatHistory)
		r.Post("/chat/clear/{session_id}", s.ClearSession)

		r.Get("/inventory/status", s.InventoryStatus)
		r.Get("/inventory/predict-stockouts", s.PredictStockouts)
		r.Get("/inventory/alerts/{facility_id}", s.FacilityAlerts)
		r.Get("/inventory/low-stock", s.LowStock)

		r.Get("/dashboard/stats", s.DashboardStats)
		r.Get("/dashboard/facilities", s.SearchFacilities)
		r.Get("/dashboard/facility/{facility_id}", s.GetFacility)
		r.Get("/dashboard/patients/stats", s.PatientStats)
		r.Get("/dashboard/workers/stats", s.WorkerStats)
		r.Get("/dashboard/diseases/trends", s.DiseaseTrends)

		r.Get("/cache/stats", s.CacheStats)
		r.Post("/cache/save", s.SaveCache)
		r.Post("/cache/load", s.LoadCache)
	})
	return r
}

// AnalyzeSymptoms handles POST /api/triage/analyze.
func (s *Server) AnalyzeSymptoms(w http.ResponseWriter, r *http.Request) {
	var req triageRequest
	if !s.decode(w, r, &req) {
		return
	}

	treq, err := domtriage.NewRequest(req.Symptoms, req.Language, req.PatientInfo)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	res, err := s.triage.Analyze(r.Context(), treq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	metrics.SetCacheStatus(w, res.Cached)
	writeJSON(w, http.StatusOK, res)
}

// SimilarQueries handles GET /api/triage/similar.
func (s *Server) SimilarQueries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	threshold := s.threshold
	if raw := q.Get("threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || t <= 0 {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "threshold must be a number in (0, 1]")
			return
		}
		threshold = t
	}

	matches, err := s.triage.Similar(q.Get("symptoms"), threshold)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, similarResponse{
		Symptoms:  q.Get("symptoms"),
		Threshold: threshold,
		Matches:   matches,
		Total:     len(matches),
	})
}

// SendMessage handles POST /api/chat/message.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}

	reply, err := s.chat.SendMessage(r.Context(), req.SessionID, req.Message, req.Language)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	metrics.SetCacheStatus(w, reply.Cached)
	writeJSON(w, http.StatusOK, reply)
}

// ChatHistory handles GET /api/chat/history/{session_id}.
func (s *Server) ChatHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultHistoryLimit)
	if !ok {
		return
	}
	sessionID := gochi.URLParam(r, "session_id")

	msgs, err := s.chat.History(r.Context(), sessionID, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: sessionID, Messages: msgs, Total: len(msgs)})
}

// ClearSession handles POST /api/chat/clear/{session_id}.
func (s *Server) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := gochi.URLParam(r, "session_id")
	n, err := s.chat.ClearSession(r.Context(), sessionID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{SessionID: sessionID, Deleted: n})
}

// InventoryStatus handles GET /api/inventory/status.
func (s *Server) InventoryStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.inventory.Status(r.Context(), r.URL.Query().Get("facility_id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PredictStockouts handles GET /api/inventory/predict-stockouts.
func (s *Server) PredictStockouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rep, err := s.inventory.PredictStockouts(r.Context(), q.Get("facility_id"), q.Get("alert_level"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// FacilityAlerts handles GET /api/inventory/alerts/{facility_id}.
func (s *Server) FacilityAlerts(w http.ResponseWriter, r *http.Request) {
	rep, err := s.inventory.FacilityAlerts(r.Context(), gochi.URLParam(r, "facility_id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// LowStock handles GET /api/inventory/low-stock.
func (s *Server) LowStock(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", 0)
	if !ok {
		return
	}
	facilityID := r.URL.Query().Get("facility_id")

	items, err := s.inventory.LowStock(r.Context(), facilityID, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lowStockResponse{
		FacilityID: facilityID,
		Items:      items,
		Total:      len(items),
		Timestamp:  time.Now().UTC(),
	})
}

// DashboardStats handles GET /api/dashboard/stats.
func (s *Server) DashboardStats(w http.ResponseWriter, r *http.Request) {
	sum, err := s.dashboard.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// SearchFacilities handles GET /api/dashboard/facilities.
func (s *Server) SearchFacilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	flt := domdash.Filter{State: q.Get("state"), LGA: q.Get("lga")}
	if raw := q.Get("operational_only"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "operational_only must be a boolean")
			return
		}
		flt.OperationalOnly = b
	}

	res, err := s.dashboard.SearchFacilities(r.Context(), flt)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetFacility handles GET /api/dashboard/facility/{facility_id}.
func (s *Server) GetFacility(w http.ResponseWriter, r *http.Request) {
	f, err := s.dashboard.Facility(r.Context(), gochi.URLParam(r, "facility_id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// PatientStats handles GET /api/dashboard/patients/stats.
func (s *Server) PatientStats(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(w, r, "days", 0)
	if !ok {
		return
	}
	rep, err := s.dashboard.PatientStats(r.Context(), r.URL.Query().Get("facility_id"), days)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// WorkerStats handles GET /api/dashboard/workers/stats.
func (s *Server) WorkerStats(w http.ResponseWriter, r *http.Request) {
	rep, err := s.dashboard.WorkerStats(r.Context(), r.URL.Query().Get("facility_id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// DiseaseTrends handles GET /api/dashboard/diseases/trends.
func (s *Server) DiseaseTrends(w http.ResponseWriter, r *http.Request) {
	months, ok := intParam(w, r, "months", 0)
	if !ok {
		return
	}
	tr, err := s.dashboard.DiseaseTrends(r.Context(), r.URL.Query().Get("disease"), months)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// CacheStats handles GET /api/cache/stats.
func (s *Server) CacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// SaveCache handles POST /api/cache/save.
func (s *Server) SaveCache(w http.ResponseWriter, r *http.Request) {
	res, err := s.cache.Save(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LoadCache handles POST /api/cache/load.
func (s *Server) LoadCache(w http.ResponseWriter, r *http.Request) {
	res, err := s.cache.Load(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, fmt.Sprintf("%s must be a non-negative integer", name))
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler answers with the sentinel's own message so internals stay hidden.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// detailHandler answers with the validation detail that follows the sentinel.
func detailHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := err.Error()
		if i := strings.Index(msg, sentinel.Error()); i >= 0 {
			msg = msg[i:]
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
