// Package embedding implements the public embedding contract on top of a
// transport-level embedder: configuration gating, oversized-text fallback
// with per-dimension averaging, and the empty-vector failure convention.
package embedding

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/talentops/cvindex/internal/domain"
	"github.com/talentops/cvindex/internal/domain/chunk"
	"github.com/talentops/cvindex/internal/metrics"
)

// payloadOverhead approximates the JSON envelope around the text when
// estimating the serialized request size.
const payloadOverhead = 256

// Config holds the provider wrapper settings.
type Config struct {
	Provider         string
	Model            string
	Dimensions       int
	Enabled          bool
	HasCredential    bool
	RequestByteLimit int // payload ceiling before the chunked fallback kicks in
	ChunkByteBudget  int // per-chunk UTF-8 budget during fallback
}

// Provider turns text into vectors. Its public methods return an empty
// vector when no embedding could be produced — disabled provider, missing
// credential, and failed calls all collapse to the same empty result so
// bulk ingestion continues past individual failures. The reason behind
// each empty result is kept internally for logs and metrics.
type Provider struct {
	inner  domain.Embedder
	cfg    Config
	logger *zap.Logger
}

// NewProvider wraps a transport embedder with the public contract.
func NewProvider(inner domain.Embedder, cfg Config, logger *zap.Logger) *Provider {
	return &Provider{inner: inner, cfg: cfg, logger: logger}
}

// Name returns the provider identifier used in embedding keys.
func (p *Provider) Name() string { return p.cfg.Provider }

// Model returns the model identifier used in embedding keys.
func (p *Provider) Model() string { return p.cfg.Model }

// Dimensions returns the declared vector dimension.
func (p *Provider) Dimensions() int { return p.cfg.Dimensions }

// Enabled reports whether the provider can be called at all.
func (p *Provider) Enabled() bool { return p.cfg.Enabled && p.cfg.HasCredential }

// EmbedDocument embeds CV text for storage.
func (p *Provider) EmbedDocument(ctx context.Context, text string) []float32 {
	return p.embed(ctx, text, domain.TaskRetrievalDocument)
}

// EmbedQuery embeds a search query.
func (p *Provider) EmbedQuery(ctx context.Context, text string) []float32 {
	return p.embed(ctx, text, domain.TaskRetrievalQuery)
}

// HealthCheck delegates to the inner embedder when it supports checks.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // passthrough
	}
	return nil
}

// failure reasons, used as metric labels.
const (
	reasonDisabled        = "disabled"
	reasonNoCredential    = "no_credential"
	reasonBlankInput      = "blank_input"
	reasonAPIError        = "api_error"
	reasonRateLimited     = "rate_limited"
	reasonAllChunksFailed = "all_chunks_failed"
)

// outcome is the internal embedding result: a vector, or a reason why
// there is none. Only the public Embed* edge collapses it to an empty
// vector.
type outcome struct {
	vector []float32
	reason string
	err    error
}

func success(vec []float32) outcome { return outcome{vector: vec} }

func failure(reason string, err error) outcome { return outcome{reason: reason, err: err} }

func (o outcome) failed() bool { return len(o.vector) == 0 }

func (p *Provider) embed(ctx context.Context, text string, task domain.TaskType) []float32 {
	out := p.tryEmbed(ctx, text, task)
	if out.failed() {
		metrics.EmbeddingFailuresTotal.WithLabelValues(p.cfg.Provider, p.cfg.Model, out.reason).Inc()
		p.logger.Warn("No embedding produced",
			zap.String("provider", p.cfg.Provider),
			zap.String("model", p.cfg.Model),
			zap.String("reason", out.reason),
			zap.Int("text_bytes", len(text)),
			zap.Error(out.err),
		)
		return nil
	}
	return out.vector
}

func (p *Provider) tryEmbed(ctx context.Context, text string, task domain.TaskType) outcome {
	if !p.cfg.Enabled {
		return failure(reasonDisabled, nil)
	}
	if !p.cfg.HasCredential {
		return failure(reasonNoCredential, nil)
	}
	if len(text) == 0 || chunk.Normalize(text) == "" {
		return failure(reasonBlankInput, nil)
	}

	if len(text)+payloadOverhead > p.cfg.RequestByteLimit {
		return p.embedChunked(ctx, text, task)
	}

	result, err := p.inner.Embed(ctx, text, task)
	if err != nil {
		return failure(classify(err), err)
	}
	if len(result.Vector) == 0 {
		return failure(reasonAPIError, errors.New("provider returned no vector"))
	}
	p.checkDimensions(result.Vector)
	return success(result.Vector)
}

// embedChunked splits oversized text under the chunk byte budget, embeds
// each piece, and averages the successful vectors per dimension. Pieces
// with a deviating dimension are skipped; one bad piece never sinks the
// document.
func (p *Provider) embedChunked(ctx context.Context, text string, task domain.TaskType) outcome {
	pieces, err := chunk.SplitBytes(text, p.cfg.ChunkByteBudget)
	if err != nil {
		return failure(reasonAPIError, err)
	}
	if len(pieces) == 0 {
		return failure(reasonBlankInput, nil)
	}

	p.logger.Info("Text exceeds request limit, embedding in chunks",
		zap.Int("text_bytes", len(text)),
		zap.Int("chunks", len(pieces)),
	)

	var sums []float64
	var lastErr error
	embedded := 0

	for i, piece := range pieces {
		result, err := p.inner.Embed(ctx, piece, task)
		if err != nil {
			lastErr = err
			metrics.EmbeddingFallbackChunksTotal.WithLabelValues(p.cfg.Provider, p.cfg.Model, "error").Inc()
			p.logger.Warn("Chunk embedding failed",
				zap.Int("chunk", i),
				zap.Int("chunk_bytes", len(piece)),
				zap.Error(err),
			)
			continue
		}
		vec := result.Vector
		if len(vec) == 0 {
			metrics.EmbeddingFallbackChunksTotal.WithLabelValues(p.cfg.Provider, p.cfg.Model, "empty").Inc()
			continue
		}
		if sums == nil {
			if p.cfg.Dimensions > 0 && len(vec) != p.cfg.Dimensions {
				p.logger.Warn("Chunk vector dimension differs from declared",
					zap.Int("chunk", i),
					zap.Int("got", len(vec)),
					zap.Int("declared", p.cfg.Dimensions),
				)
			}
			sums = make([]float64, len(vec))
		} else if len(vec) != len(sums) {
			// Provider anomaly: inconsistent dimensionality across chunks.
			metrics.EmbeddingFallbackChunksTotal.WithLabelValues(p.cfg.Provider, p.cfg.Model, "dim_mismatch").Inc()
			p.logger.Warn("Skipping chunk with mismatched dimension",
				zap.Int("chunk", i),
				zap.Int("got", len(vec)),
				zap.Int("expected", len(sums)),
			)
			continue
		}
		for j, v := range vec {
			sums[j] += float64(v)
		}
		embedded++
		metrics.EmbeddingFallbackChunksTotal.WithLabelValues(p.cfg.Provider, p.cfg.Model, "success").Inc()
	}

	if embedded == 0 {
		return failure(reasonAllChunksFailed, lastErr)
	}

	avg := make([]float32, len(sums))
	for j, s := range sums {
		avg[j] = float32(s / float64(embedded))
	}
	return success(avg)
}

// checkDimensions warns on a declared-dimension mismatch. The vector is
// still returned as received; the store performs the authoritative check
// before persisting.
func (p *Provider) checkDimensions(vec []float32) {
	if p.cfg.Dimensions > 0 && len(vec) > 0 && len(vec) != p.cfg.Dimensions {
		p.logger.Warn("Embedding dimension differs from declared",
			zap.String("provider", p.cfg.Provider),
			zap.String("model", p.cfg.Model),
			zap.Int("got", len(vec)),
			zap.Int("declared", p.cfg.Dimensions),
		)
	}
}

func classify(err error) string {
	if errors.Is(err, domain.ErrRateLimited) {
		return reasonRateLimited
	}
	return reasonAPIError
}
