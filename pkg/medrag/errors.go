package medrag

import "github.com/kailas-cloud/medrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrInvalidDocument        = domain.ErrInvalidDocument
	ErrCollectionUnavailable  = domain.ErrCollectionUnavailable
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrIngestionFailed        = domain.ErrIngestionFailed
	ErrRateLimited            = domain.ErrRateLimited
)
