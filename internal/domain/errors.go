package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument signals a caller-supplied value that is never valid
	// (zero topK, zero byte budget). These indicate misconfiguration rather
	// than a transient runtime condition and are surfaced as hard errors.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrProviderUnavailable signals that the embedding provider produced no
	// vector, so no meaningful similarity search can proceed.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrRateLimited signals a 429 from the embedding provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector whose length differs from the
	// provider's declared dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyVector signals an attempt to persist a zero-length vector.
	ErrEmptyVector = errors.New("empty vector")
)
