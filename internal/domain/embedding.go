package domain

import "context"

// TaskType tells the provider how the embedding will be used. Providers
// that have no notion of task types ignore it.
type TaskType string

// Embedding task types (Gemini wire values).
const (
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
	TaskSemanticSim       TaskType = "SEMANTIC_SIMILARITY"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string, task TaskType) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Vector       []float32
	PromptTokens int
	TotalTokens  int
}

// EmbeddingKey identifies one stored embedding. At most one row exists per key.
type EmbeddingKey struct {
	OwnerID     string // consultant / user identifier
	SecondaryID string // CV version identifier
	Provider    string
	Model       string
}
