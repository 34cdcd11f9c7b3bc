package chi

import (
	"time"

	domchat "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/chat"
	dominv "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
	domtriage "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/triage"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/dedup"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest            = "bad_request"
	CodeValidationFailed      = "validation_failed"
	CodeUnauthorized          = "unauthorized"
	CodeNotFound              = "not_found"
	CodeRateLimited           = "rate_limited"
	CodeDataSourceUnavailable = "data_source_unavailable"
	CodeCapacityExceeded      = "cache_capacity_exceeded"
	CodeSnapshotNotFound      = "snapshot_not_found"
	CodeLLMProviderError      = "llm_provider_error"
	CodePersistenceError      = "persistence_error"
	CodeInternalError         = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type triageRequest struct {
	Symptoms    string                 `json:"symptoms"`
	Language    string                 `json:"language"`
	PatientInfo *domtriage.PatientInfo `json:"patient_info"`
}

type similarResponse struct {
	Symptoms  string        `json:"symptoms"`
	Threshold float64       `json:"threshold"`
	Matches   []dedup.Match `json:"matches"`
	Total     int           `json:"total"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Language  string `json:"language"`
}

type historyResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []domchat.Message `json:"messages"`
	Total     int               `json:"total"`
}

type clearResponse struct {
	SessionID string `json:"session_id"`
	Deleted   int64  `json:"deleted"`
}

type lowStockResponse struct {
	FacilityID string        `json:"facility_id,omitempty"`
	Items      []dominv.Item `json:"items"`
	Total      int           `json:"total"`
	Timestamp  time.Time     `json:"timestamp"`
}
