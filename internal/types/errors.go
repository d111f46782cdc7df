package types

import "errors"

var (
	// ErrInsufficientInput is returned when classification has nothing to count.
	ErrInsufficientInput = errors.New("insufficient input")
	// ErrInvalidArgument covers caller mistakes such as topN <= 0 or an unknown trait key.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmbeddingUnavailable wraps any failure of the embedding provider.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrProfileNotInitialized is returned for malformed profiles or profiles without an archetype.
	ErrProfileNotInitialized = errors.New("profile not initialized")
	// ErrConflict signals a lost optimistic-concurrency race. Callers retry.
	ErrConflict = errors.New("conflict")
	// ErrProfileNotFound is returned by repositories when no profile is stored.
	ErrProfileNotFound = errors.New("profile not found")
)
