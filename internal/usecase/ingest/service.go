// Package ingest walks the HR system and embeds CVs that are missing
// from the vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentops/cvindex/internal/domain"
	"github.com/talentops/cvindex/internal/metrics"
)

// Document outcomes within a run.
const (
	StatusEmbedded = "EMBEDDED"
	StatusSkipped  = "SKIPPED"
	StatusFailed   = "FAILED"
)

// DocumentResult is the outcome of ingesting a single CV.
type DocumentResult struct {
	OwnerID string `json:"owner_id"`
	CVID    string `json:"cv_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// Report summarizes one ingestion run with per-document outcomes.
type Report struct {
	RunID      string           `json:"run_id"`
	Considered int              `json:"considered"`
	Embedded   int              `json:"embedded"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	Documents  []DocumentResult `json:"documents"`
}

func (r *Report) add(res DocumentResult) {
	r.Considered++
	r.Documents = append(r.Documents, res)
	switch res.Status {
	case StatusEmbedded:
		r.Embedded++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// Service orchestrates ingestion. Documents are processed sequentially
// and in isolation: one failure never aborts the run.
type Service struct {
	source Source
	store  VectorWriter
	embed  DocumentEmbedder
	logger *zap.Logger
}

// New creates an ingestion service.
func New(source Source, store VectorWriter, embed DocumentEmbedder, logger *zap.Logger) *Service {
	return &Service{source: source, store: store, embed: embed, logger: logger}
}

// Run ingests up to limit CVs (limit <= 0 means no limit). The returned
// Report is complete even when individual documents failed; the error is
// non-nil only when the run itself could not proceed.
func (s *Service) Run(ctx context.Context, limit int) (Report, error) {
	started := time.Now()
	report := Report{RunID: uuid.NewString()}

	refs, err := s.source.ListCVRefs(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("list cv refs: %w", err)
	}

	log := s.logger.With(zap.String("run_id", report.RunID))
	log.Info("ingest run started", zap.Int("documents", len(refs)))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.add(s.ingestRef(ctx, ref))
	}

	metrics.IngestRunDuration.Observe(time.Since(started).Seconds())
	log.Info("ingest run finished",
		zap.Int("considered", report.Considered),
		zap.Int("embedded", report.Embedded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(started)))

	return report, nil
}

// IngestOne ingests a single CV by reference, bypassing the listing.
// Fetch failures (including unknown CVs) are returned as errors so the
// caller can map them; processing failures land in the result.
func (s *Service) IngestOne(ctx context.Context, ref domain.CVRef) (DocumentResult, error) {
	exists, err := s.store.Exists(ctx, s.key(ref))
	if err != nil {
		return DocumentResult{}, fmt.Errorf("check existing embedding: %w", err)
	}
	if exists {
		return s.skipped(ref), nil
	}

	cv, err := s.source.FetchCV(ctx, ref)
	if err != nil {
		return DocumentResult{}, fmt.Errorf("fetch cv: %w", err)
	}
	return s.embedAndSave(ctx, cv), nil
}

func (s *Service) ingestRef(ctx context.Context, ref domain.CVRef) DocumentResult {
	exists, err := s.store.Exists(ctx, s.key(ref))
	if err != nil {
		return s.failed(ref, fmt.Errorf("check existing embedding: %w", err))
	}
	if exists {
		return s.skipped(ref)
	}

	cv, err := s.source.FetchCV(ctx, ref)
	if err != nil {
		return s.failed(ref, fmt.Errorf("fetch cv: %w", err))
	}
	return s.embedAndSave(ctx, cv)
}

func (s *Service) embedAndSave(ctx context.Context, cv domain.CV) DocumentResult {
	ref := cv.Ref()

	text := cv.Text()
	if text == "" {
		return s.failed(ref, errors.New("cv has no textual content"))
	}

	vec := s.embed.EmbedDocument(ctx, text)
	if len(vec) == 0 {
		return s.failed(ref, errors.New("embedding unavailable"))
	}

	if err := s.store.Save(ctx, s.key(ref), vec); err != nil {
		return s.failed(ref, fmt.Errorf("save embedding: %w", err))
	}

	metrics.IngestDocumentsTotal.WithLabelValues("embedded").Inc()
	return DocumentResult{OwnerID: ref.OwnerID, CVID: ref.CVID, Status: StatusEmbedded}
}

func (s *Service) skipped(ref domain.CVRef) DocumentResult {
	metrics.IngestDocumentsTotal.WithLabelValues("skipped").Inc()
	return DocumentResult{OwnerID: ref.OwnerID, CVID: ref.CVID, Status: StatusSkipped}
}

func (s *Service) failed(ref domain.CVRef, err error) DocumentResult {
	metrics.IngestDocumentsTotal.WithLabelValues("failed").Inc()
	s.logger.Warn("document ingest failed",
		zap.String("owner_id", ref.OwnerID),
		zap.String("cv_id", ref.CVID),
		zap.Error(err))
	return DocumentResult{OwnerID: ref.OwnerID, CVID: ref.CVID, Status: StatusFailed, Reason: err.Error()}
}

func (s *Service) key(ref domain.CVRef) domain.EmbeddingKey {
	return domain.EmbeddingKey{
		OwnerID:     ref.OwnerID,
		SecondaryID: ref.CVID,
		Provider:    s.embed.Name(),
		Model:       s.embed.Model(),
	}
}
