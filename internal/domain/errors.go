package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a request that failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrLLMProviderError signals an LLM provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrDataSourceUnavailable signals that no configured data source could serve a read.
	ErrDataSourceUnavailable = errors.New("data source unavailable")

	// ErrEncoding signals content that cannot be canonically serialized for fingerprinting.
	ErrEncoding = errors.New("content encoding error")
	// ErrCapacity signals a full cache running with the reject policy.
	ErrCapacity = errors.New("cache capacity exceeded")
	// ErrPersistence signals a cache snapshot save/load failure.
	ErrPersistence = errors.New("cache persistence error")
	// ErrSnapshotNotFound signals that no snapshot blob exists under the requested name.
	ErrSnapshotNotFound = errors.New("cache snapshot not found")
	// ErrCompute signals a failure of the delegated expensive work behind the result cache.
	ErrCompute = errors.New("compute failed")
)

// ComputeError wraps a failure of the delegated computation for a given query id.
type ComputeError struct {
	QueryID string
	Err     error
}

func (e *ComputeError) Error() string {
	return ErrCompute.Error() + " for query " + e.QueryID + ": " + e.Err.Error()
}

// Unwrap exposes both ErrCompute and the underlying cause to errors.Is/As.
func (e *ComputeError) Unwrap() []error { return []error{ErrCompute, e.Err} }

// NewComputeError wraps err as a compute failure.
func NewComputeError(queryID string, err error) error {
	return &ComputeError{QueryID: queryID, Err: err}
}
