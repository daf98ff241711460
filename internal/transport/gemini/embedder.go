// Package gemini implements the embedding provider over the Gemini
// embedContent HTTP API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/talentops/cvindex/internal/domain"
	"github.com/talentops/cvindex/internal/metrics"
)

const providerName = "gemini"

// Config holds the Gemini embedding client settings.
type Config struct {
	APIKey         string
	BaseURL        string // e.g. https://generativelanguage.googleapis.com/v1beta
	Model          string
	MaxRetries     int // additional attempts after a 429
	RequestsPerSec float64
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Logger         *zap.Logger
}

// Embedder calls the Gemini embedContent endpoint.
type Embedder struct {
	client     *http.Client
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewEmbedder creates a Gemini embedding client with distinct connect and
// read timeouts. The read timeout is generous: large-text embedding calls
// are slow.
func NewEmbedder(cfg *Config) *Embedder {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	client := &http.Client{
		Timeout: cfg.ReadTimeout,
		Transport: &http.Transport{
			DialContext: dialer.DialContext,
		},
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	return &Embedder{
		client:     client,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		limiter:    limiter,
		logger:     cfg.Logger,
	}
}

// Wire format of the embedContent request.
type embedRequest struct {
	Content  content `json:"content"`
	TaskType string  `json:"taskType,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// Embed implements domain.Embedder. A 429 is retried with exponential
// backoff up to maxRetries, then surfaced as domain.ErrRateLimited.
func (e *Embedder) Embed(ctx context.Context, text string, task domain.TaskType) (domain.EmbeddingResult, error) {
	body, err := json.Marshal(embedRequest{
		Content:  content{Parts: []part{{Text: text}}},
		TaskType: string(task),
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()

	raw, err := e.post(ctx, body)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
		return domain.EmbeddingResult{}, err
	}

	vec, err := extractVector(raw)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
		return domain.EmbeddingResult{}, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.model).Observe(duration.Seconds())

	return domain.EmbeddingResult{Vector: vec}, nil
}

// post sends the request, retrying on 429.
func (e *Embedder) post(ctx context.Context, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/models/%s:embedContent", e.baseURL, e.model)
	backoff := 250 * time.Millisecond

	for attempt := 0; ; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		raw, status, err := e.doRequest(ctx, url, body)
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w: %w", err, domain.ErrEmbeddingProviderError)
		}

		switch {
		case status == http.StatusOK:
			return raw, nil
		case status == http.StatusTooManyRequests:
			if attempt >= e.maxRetries {
				return nil, fmt.Errorf("embedding API gave up after %d retries: %w", attempt, domain.ErrRateLimited)
			}
			e.logger.Warn("Embedding API rate limited, backing off",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("backoff interrupted: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		default:
			return nil, fmt.Errorf("embedding API error %d: %s: %w",
				status, truncate(raw, 200), domain.ErrEmbeddingProviderError)
		}
	}
}

func (e *Embedder) doRequest(ctx context.Context, url string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, err //nolint:wrapcheck // wrapped by caller with provider sentinel
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// HealthCheck verifies API reachability via the model metadata endpoint.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/models/%s", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("model metadata: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model metadata returned %d", resp.StatusCode)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
