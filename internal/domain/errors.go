package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidInput signals a rejected target document or request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexNotBuilt signals a lexical search before the first build.
	ErrIndexNotBuilt = errors.New("lexical index not built")
	// ErrCollaboratorUnavailable signals a failed or timed-out external call
	// (embedding provider, dense index).
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// InputError wraps ErrInvalidInput with the reason the input was rejected.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// NewInputError creates an input rejection with a reason string.
func NewInputError(format string, args ...any) error {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}
