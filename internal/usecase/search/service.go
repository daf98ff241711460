// Package search ranks consultants against a free-text query using
// vector similarity, optionally blended with a quality signal.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/talentops/cvindex/internal/domain"
)

// Config carries the ranking knobs.
type Config struct {
	SemanticWeight float64
	QualityWeight  float64
	DefaultTopK    int
	MaxTopK        int
}

// Result is one ranked consultant.
type Result struct {
	OwnerID       string  `json:"owner_id"`
	CVID          string  `json:"cv_id"`
	Distance      float64 `json:"distance"`
	SemanticScore float64 `json:"semantic_score"`
	QualityScore  float64 `json:"quality_score,omitempty"`
	Score         float64 `json:"score"`
}

// Service executes semantic and hybrid searches.
type Service struct {
	repo   Repository
	embed  QueryEmbedder
	scorer QualityScorer // nil disables hybrid ranking
	cfg    Config
	logger *zap.Logger
}

// New creates a search service. Pass a nil scorer for pure semantic
// ranking.
func New(repo Repository, embed QueryEmbedder, scorer QualityScorer, cfg Config, logger *zap.Logger) *Service {
	return &Service{repo: repo, embed: embed, scorer: scorer, cfg: cfg, logger: logger}
}

// Search embeds the query and returns the topK closest consultants,
// ranked by combined score descending. topK == 0 selects the configured
// default; negative values are rejected; values above the configured
// maximum are clamped.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be blank: %w", domain.ErrInvalidArgument)
	}

	topK, err := s.normalizeTopK(topK)
	if err != nil {
		return nil, err
	}

	vec := s.embed.EmbedQuery(ctx, query)
	if len(vec) == 0 {
		return nil, fmt.Errorf("query embedding unavailable: %w", domain.ErrProviderUnavailable)
	}

	hits, err := s.repo.SearchSimilar(ctx, vec, s.embed.Name(), s.embed.Model(), topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, s.score(ctx, hit))
	}

	// Combined score descending; ownerID ascending keeps equal scores
	// deterministic.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].OwnerID < results[j].OwnerID
	})

	return results, nil
}

func (s *Service) normalizeTopK(topK int) (int, error) {
	switch {
	case topK < 0:
		return 0, fmt.Errorf("topK must not be negative, got %d: %w", topK, domain.ErrInvalidArgument)
	case topK == 0:
		return s.cfg.DefaultTopK, nil
	case s.cfg.MaxTopK > 0 && topK > s.cfg.MaxTopK:
		return s.cfg.MaxTopK, nil
	default:
		return topK, nil
	}
}

// score derives the combined score for one hit. Without a quality
// scorer the semantic similarity is the score. A failing scorer
// downgrades that hit to quality 0 rather than failing the search.
func (s *Service) score(ctx context.Context, hit domain.SimilarityHit) Result {
	res := Result{
		OwnerID:       hit.OwnerID,
		CVID:          hit.SecondaryID,
		Distance:      hit.Distance,
		SemanticScore: hit.Similarity,
	}

	if s.scorer == nil {
		res.Score = res.SemanticScore
		return res
	}

	qual, err := s.scorer.Score(ctx, hit.OwnerID)
	if err != nil {
		s.logger.Warn("quality score unavailable",
			zap.String("owner_id", hit.OwnerID), zap.Error(err))
		qual = 0
	}
	res.QualityScore = qual
	res.Score = s.cfg.SemanticWeight*res.SemanticScore + s.cfg.QualityWeight*qual
	return res
}
