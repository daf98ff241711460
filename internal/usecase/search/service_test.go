package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/talentops/cvindex/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	hits      []domain.SimilarityHit
	err       error
	lastTopK  int
	lastModel string
}

func (m *mockRepo) SearchSimilar(_ context.Context, _ []float32, _, model string, topK int) ([]domain.SimilarityHit, error) {
	m.lastTopK = topK
	m.lastModel = model
	return m.hits, m.err
}

type mockEmbedder struct {
	vec []float32
}

func (m *mockEmbedder) Name() string  { return "gemini" }
func (m *mockEmbedder) Model() string { return "text-embedding-004" }

func (m *mockEmbedder) EmbedQuery(_ context.Context, _ string) []float32 {
	return m.vec
}

type mockScorer struct {
	scores map[string]float64
	err    error
}

func (m *mockScorer) Score(_ context.Context, ownerID string) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.scores[ownerID], nil
}

func testConfig() Config {
	return Config{SemanticWeight: 0.7, QualityWeight: 0.3, DefaultTopK: 10, MaxTopK: 100}
}

func hit(owner string, distance float64) domain.SimilarityHit {
	return domain.NewSimilarityHit(owner, owner+"-cv", distance)
}

// --- Tests ---

func TestSearch_BlankQuery(t *testing.T) {
	svc := New(&mockRepo{}, &mockEmbedder{vec: []float32{1}}, nil, testConfig(), zap.NewNop())

	_, err := svc.Search(context.Background(), "   ", 10)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSearch_NegativeTopK(t *testing.T) {
	svc := New(&mockRepo{}, &mockEmbedder{vec: []float32{1}}, nil, testConfig(), zap.NewNop())

	_, err := svc.Search(context.Background(), "golang", -1)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSearch_ZeroTopKUsesDefault(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockEmbedder{vec: []float32{1}}, nil, testConfig(), zap.NewNop())

	if _, err := svc.Search(context.Background(), "golang", 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if repo.lastTopK != 10 {
		t.Errorf("expected default topK 10, got %d", repo.lastTopK)
	}
}

func TestSearch_TopKClampedToMax(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockEmbedder{vec: []float32{1}}, nil, testConfig(), zap.NewNop())

	if _, err := svc.Search(context.Background(), "golang", 5000); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if repo.lastTopK != 100 {
		t.Errorf("expected topK clamped to 100, got %d", repo.lastTopK)
	}
}

func TestSearch_EmptyQueryVector(t *testing.T) {
	svc := New(&mockRepo{}, &mockEmbedder{}, nil, testConfig(), zap.NewNop())

	_, err := svc.Search(context.Background(), "golang consultant", 10)
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestSearch_SemanticOrdering(t *testing.T) {
	repo := &mockRepo{hits: []domain.SimilarityHit{
		hit("u-close", 0.1),
		hit("u-mid", 0.3),
		hit("u-far", 0.8),
	}}
	svc := New(repo, &mockEmbedder{vec: []float32{1, 2}}, nil, testConfig(), zap.NewNop())

	results, err := svc.Search(context.Background(), "golang", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"u-close", "u-mid", "u-far"} {
		if results[i].OwnerID != want {
			t.Errorf("position %d: got %s, want %s", i, results[i].OwnerID, want)
		}
	}
	if math.Abs(results[0].Score-0.9) > 1e-9 {
		t.Errorf("semantic score: got %f, want 0.9", results[0].Score)
	}
	if repo.lastModel != "text-embedding-004" {
		t.Errorf("search must filter on the active model, got %q", repo.lastModel)
	}
}

func TestSearch_TieBrokenByOwnerID(t *testing.T) {
	repo := &mockRepo{hits: []domain.SimilarityHit{
		hit("u-b", 0.2),
		hit("u-a", 0.2),
	}}
	svc := New(repo, &mockEmbedder{vec: []float32{1}}, nil, testConfig(), zap.NewNop())

	results, _ := svc.Search(context.Background(), "golang", 10)
	if results[0].OwnerID != "u-a" || results[1].OwnerID != "u-b" {
		t.Fatalf("expected ownerID ascending tie-break, got %s then %s",
			results[0].OwnerID, results[1].OwnerID)
	}
}

func TestSearch_HybridReranks(t *testing.T) {
	// u-far is semantically weaker but carries a high quality score.
	repo := &mockRepo{hits: []domain.SimilarityHit{
		hit("u-close", 0.2), // sem 0.8, qual 0.0 -> 0.56
		hit("u-far", 0.4),   // sem 0.6, qual 1.0 -> 0.72
	}}
	scorer := &mockScorer{scores: map[string]float64{"u-far": 1.0}}
	svc := New(repo, &mockEmbedder{vec: []float32{1}}, scorer, testConfig(), zap.NewNop())

	results, err := svc.Search(context.Background(), "golang", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].OwnerID != "u-far" {
		t.Fatalf("expected quality to rerank u-far first, got %s", results[0].OwnerID)
	}
	if math.Abs(results[0].Score-0.72) > 1e-9 {
		t.Errorf("combined score: got %f, want 0.72", results[0].Score)
	}
	if math.Abs(results[1].Score-0.56) > 1e-9 {
		t.Errorf("combined score: got %f, want 0.56", results[1].Score)
	}
}

func TestSearch_ScorerFailureDowngradesHit(t *testing.T) {
	repo := &mockRepo{hits: []domain.SimilarityHit{hit("u1", 0.2)}}
	scorer := &mockScorer{err: errors.New("scoring backend down")}
	svc := New(repo, &mockEmbedder{vec: []float32{1}}, scorer, testConfig(), zap.NewNop())

	results, err := svc.Search(context.Background(), "golang", 10)
	if err != nil {
		t.Fatalf("scorer failure must not fail the search: %v", err)
	}
	if math.Abs(results[0].Score-0.7*0.8) > 1e-9 {
		t.Errorf("expected quality treated as 0, got score %f", results[0].Score)
	}
}

func TestSearch_RepositoryError(t *testing.T) {
	repo := &mockRepo{err: errors.New("db down")}
	svc := New(repo, &mockEmbedder{vec: []float32{1}}, nil, testConfig(), zap.NewNop())

	if _, err := svc.Search(context.Background(), "golang", 10); err == nil {
		t.Fatal("expected repository error to propagate")
	}
}
