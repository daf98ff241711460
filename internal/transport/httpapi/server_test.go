package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/talentops/cvindex/internal/domain"
	healthuc "github.com/talentops/cvindex/internal/usecase/health"
	ingestuc "github.com/talentops/cvindex/internal/usecase/ingest"
	searchuc "github.com/talentops/cvindex/internal/usecase/search"
)

// --- Stubs ---

type stubSource struct {
	refs []domain.CVRef
	cvs  map[string]domain.CV
}

func (s *stubSource) ListCVRefs(_ context.Context, _ int) ([]domain.CVRef, error) {
	return s.refs, nil
}

func (s *stubSource) FetchCV(_ context.Context, ref domain.CVRef) (domain.CV, error) {
	cv, ok := s.cvs[ref.OwnerID]
	if !ok {
		return domain.CV{}, domain.ErrNotFound
	}
	return cv, nil
}

type stubVectorStore struct {
	hits     []domain.SimilarityHit
	searchEr error
}

func (s *stubVectorStore) Exists(_ context.Context, _ domain.EmbeddingKey) (bool, error) {
	return false, nil
}

func (s *stubVectorStore) Save(_ context.Context, _ domain.EmbeddingKey, _ []float32) error {
	return nil
}

func (s *stubVectorStore) SearchSimilar(_ context.Context, _ []float32, _, _ string, _ int) ([]domain.SimilarityHit, error) {
	return s.hits, s.searchEr
}

type stubEmbedder struct {
	vec []float32
}

func (s *stubEmbedder) Name() string  { return "gemini" }
func (s *stubEmbedder) Model() string { return "text-embedding-004" }

func (s *stubEmbedder) EmbedDocument(_ context.Context, _ string) []float32 { return s.vec }
func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) []float32    { return s.vec }

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

type testDeps struct {
	source *stubSource
	store  *stubVectorStore
	embed  *stubEmbedder
	db     *stubPinger
}

func newTestRouter(d testDeps) http.Handler {
	log := zap.NewNop()
	cfg := searchuc.Config{SemanticWeight: 0.7, QualityWeight: 0.3, DefaultTopK: 10, MaxTopK: 100}

	srv := NewServer(
		ingestuc.New(d.source, d.store, d.embed, log),
		searchuc.New(d.store, d.embed, nil, cfg, log),
		healthuc.New(d.db, nil, nil),
		log,
	)
	return srv.Router(nil)
}

func defaultDeps() testDeps {
	return testDeps{
		source: &stubSource{cvs: map[string]domain.CV{}},
		store:  &stubVectorStore{},
		embed:  &stubEmbedder{vec: []float32{0.1, 0.2}},
		db:     &stubPinger{},
	}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestSearch_OK(t *testing.T) {
	deps := defaultDeps()
	deps.store.hits = []domain.SimilarityHit{
		domain.NewSimilarityHit("u1", "c1", 0.1),
		domain.NewSimilarityHit("u2", "c2", 0.4),
	}
	h := newTestRouter(deps)

	rr := doJSON(t, h, "POST", "/v1/search", `{"query":"golang consultant","top_k":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Items []searchuc.Result `json:"items"`
		Total int               `json:"total"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Items[0].OwnerID != "u1" {
		t.Errorf("expected closest hit first, got %s", resp.Items[0].OwnerID)
	}
}

func TestSearch_NoHitsYieldsEmptyList(t *testing.T) {
	h := newTestRouter(defaultDeps())

	rr := doJSON(t, h, "POST", "/v1/search", `{"query":"cobol"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"items":[]`) {
		t.Errorf("expected empty items array, got %s", rr.Body.String())
	}
}

func TestSearch_InvalidBody(t *testing.T) {
	h := newTestRouter(defaultDeps())

	rr := doJSON(t, h, "POST", "/v1/search", `{"query":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestSearch_BlankQuery(t *testing.T) {
	h := newTestRouter(defaultDeps())

	rr := doJSON(t, h, "POST", "/v1/search", `{"query":"  "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %s", rr.Code, rr.Body.String())
	}
}

func TestSearch_EmbeddingUnavailable(t *testing.T) {
	deps := defaultDeps()
	deps.embed.vec = nil
	h := newTestRouter(deps)

	rr := doJSON(t, h, "POST", "/v1/search", `{"query":"golang"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d, want 422: %s", rr.Code, rr.Body.String())
	}

	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeEmbeddingUnavailable {
		t.Errorf("error code: got %s, want %s", errResp.Code, codeEmbeddingUnavailable)
	}
}

func TestSearch_RateLimited(t *testing.T) {
	deps := defaultDeps()
	deps.store.searchEr = domain.ErrRateLimited
	h := newTestRouter(deps)

	rr := doJSON(t, h, "POST", "/v1/search", `{"query":"golang"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", rr.Code)
	}
}

func TestSearch_InternalError(t *testing.T) {
	deps := defaultDeps()
	deps.store.searchEr = errors.New("connection reset")
	h := newTestRouter(deps)

	rr := doJSON(t, h, "POST", "/v1/search", `{"query":"golang"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection reset") {
		t.Error("internal error details must not leak to clients")
	}
}

func TestIngestOne_OK(t *testing.T) {
	deps := defaultDeps()
	deps.source.cvs["u1"] = domain.CV{
		OwnerID:  "u1",
		CVID:     "c1",
		Sections: domain.Sections{Skills: []string{"Go"}},
	}
	h := newTestRouter(deps)

	rr := doJSON(t, h, "POST", "/v1/ingest/u1/c1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var res ingestuc.DocumentResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Status != ingestuc.StatusEmbedded {
		t.Errorf("expected EMBEDDED, got %+v", res)
	}
}

func TestIngestOne_UnknownCV404(t *testing.T) {
	h := newTestRouter(defaultDeps())

	rr := doJSON(t, h, "POST", "/v1/ingest/ghost/c1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404: %s", rr.Code, rr.Body.String())
	}
}

func TestIngestRun_ReportsFailuresWith200(t *testing.T) {
	deps := defaultDeps()
	deps.source.refs = []domain.CVRef{
		{OwnerID: "u1", CVID: "c1"},
		{OwnerID: "ghost", CVID: "c2"}, // fetch fails
	}
	deps.source.cvs["u1"] = domain.CV{
		OwnerID:  "u1",
		CVID:     "c1",
		Sections: domain.Sections{Skills: []string{"Go"}},
	}
	h := newTestRouter(deps)

	rr := doJSON(t, h, "POST", "/v1/ingest/run", `{"limit":10}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var report ingestuc.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Considered != 2 || report.Embedded != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.RunID == "" {
		t.Error("expected a run ID in the report")
	}
}

func TestIngestRun_NegativeLimit(t *testing.T) {
	h := newTestRouter(defaultDeps())

	rr := doJSON(t, h, "POST", "/v1/ingest/run", `{"limit":-5}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestHealthz_AlwaysOK(t *testing.T) {
	deps := defaultDeps()
	deps.db.err = errors.New("down")
	h := newTestRouter(deps)

	rr := doJSON(t, h, "GET", "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
}

func TestReadyz_DegradedIs503(t *testing.T) {
	deps := defaultDeps()
	deps.db.err = errors.New("conn refused")
	h := newTestRouter(deps)

	rr := doJSON(t, h, "GET", "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "degraded") {
		t.Errorf("expected degraded status, got %s", rr.Body.String())
	}
}

func TestReadyz_HealthyIs200(t *testing.T) {
	h := newTestRouter(defaultDeps())

	rr := doJSON(t, h, "GET", "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}
}
