package ingest

import (
	"context"

	"github.com/talentops/cvindex/internal/domain"
)

// Source lists and fetches CVs from the HR system.
type Source interface {
	ListCVRefs(ctx context.Context, limit int) ([]domain.CVRef, error)
	FetchCV(ctx context.Context, ref domain.CVRef) (domain.CV, error)
}

// VectorWriter checks for and persists document embeddings.
type VectorWriter interface {
	Exists(ctx context.Context, key domain.EmbeddingKey) (bool, error)
	Save(ctx context.Context, key domain.EmbeddingKey, vec []float32) error
}

// DocumentEmbedder turns document text into a vector. An empty vector
// means no embedding could be produced.
type DocumentEmbedder interface {
	Name() string
	Model() string
	EmbedDocument(ctx context.Context, text string) []float32
}
