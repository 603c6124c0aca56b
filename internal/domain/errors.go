package domain

import "errors"

// KeyPrefix namespaces every key ragdex writes to the store.
const KeyPrefix = "ragdex:"

var (
	// ErrSourceUnavailable signals that the document source directory cannot be read.
	ErrSourceUnavailable = errors.New("document source unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexCorrupt signals an unreadable or inconsistent index entry.
	ErrIndexCorrupt = errors.New("index corrupt")
	// ErrInvalidArgument signals malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrGenerationFailed signals a generative model failure.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrInvalidSession signals a malformed session identifier.
	ErrInvalidSession = errors.New("invalid session")
	// ErrVectorDimMismatch signals an embedding dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
