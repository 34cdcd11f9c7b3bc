package chi

import (
	"context"

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

// TriageService analyzes symptoms.
type TriageService interface {
	Analyze(ctx context.Context, req domtriage.Request) (triageuc.Assessment, error)
	Similar(symptoms string, threshold float64) ([]dedup.Match, error)
}

// ChatService runs chat sessions.
type ChatService interface {
	SendMessage(ctx context.Context, sessionID, message, language string) (chatuc.Reply, error)
	History(ctx context.Context, sessionID string, limit int) ([]domchat.Message, error)
	ClearSession(ctx context.Context, sessionID string) (int64, error)
}

// InventoryService reports stock levels.
type InventoryService interface {
	Status(ctx context.Context, facilityID string) (dominv.Status, error)
	PredictStockouts(ctx context.Context, facilityID, alertLevel string) (dominv.Report, error)
	FacilityAlerts(ctx context.Context, facilityID string) (dominv.Report, error)
	LowStock(ctx context.Context, facilityID string, limit int) ([]dominv.Item, error)
}

// DashboardService reports facility statistics.
type DashboardService interface {
	Stats(ctx context.Context) (domdash.Summary, error)
	SearchFacilities(ctx context.Context, flt domdash.Filter) (domdash.SearchResult, error)
	Facility(ctx context.Context, id string) (domdash.Facility, error)
	PatientStats(ctx context.Context, facilityID string, days int) (domdash.PatientReport, error)
	WorkerStats(ctx context.Context, facilityID string) (domdash.WorkerReport, error)
	DiseaseTrends(ctx context.Context, disease string, months int) (domdash.DiseaseTrend, error)
}

// CacheService administers the shared cache.
type CacheService interface {
	Stats() cache.Stats
	Save(ctx context.Context) (cacheadminuc.Result, error)
	Load(ctx context.Context) (cacheadminuc.Result, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
