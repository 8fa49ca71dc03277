package simdex

import "github.com/kailas-cloud/simdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrDocumentNotFound       = domain.ErrDocumentNotFound
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrIndexNotBuilt          = domain.ErrIndexNotBuilt
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
