package search

import (
	"context"

	"github.com/talentops/cvindex/internal/domain"
)

// Repository performs nearest-neighbor search over stored embeddings.
type Repository interface {
	SearchSimilar(ctx context.Context, queryVec []float32, provider, model string, topK int) ([]domain.SimilarityHit, error)
}

// QueryEmbedder turns query text into a vector. An empty vector means
// no embedding could be produced.
type QueryEmbedder interface {
	Name() string
	Model() string
	EmbedQuery(ctx context.Context, text string) []float32
}

// QualityScorer supplies a per-consultant quality signal for hybrid
// ranking. Scores are expected in [0,1].
type QualityScorer interface {
	Score(ctx context.Context, ownerID string) (float64, error)
}
