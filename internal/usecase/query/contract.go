package query

import (
	"time"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/fingerprint"
)

// Index records which queries have been seen.
type Index interface {
	Namespace() string
	GetOrCreateQueryID(content map[string]any) (fingerprint.ID, bool, error)
	ResultKey(id fingerprint.ID) string
	Complete(id fingerprint.ID) error
	Release(id fingerprint.ID)
}

// ResultStore holds computed results.
type ResultStore interface {
	Get(key string) (payload.Value, bool)
	Set(key string, value payload.Value, ttl time.Duration) error
}
