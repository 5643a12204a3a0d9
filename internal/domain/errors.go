package domain

import "errors"

var (
	// ErrNotFound signals a missing document.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a malformed request rejected at the transport boundary.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnsafePath signals a filename that resolves outside the data directory.
	ErrUnsafePath = errors.New("unsafe path")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationFailed signals a text generation provider failure.
	ErrGenerationFailed = errors.New("generation failed")
)
