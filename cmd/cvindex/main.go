package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/talentops/cvindex/internal/config"
	"github.com/talentops/cvindex/internal/domain"
	logpkg "github.com/talentops/cvindex/internal/logger"
	"github.com/talentops/cvindex/internal/metrics"
	"github.com/talentops/cvindex/internal/repository/embcache"
	"github.com/talentops/cvindex/internal/repository/vector"
	"github.com/talentops/cvindex/internal/scheduler"
	"github.com/talentops/cvindex/internal/transport/flowcase"
	geminiEmb "github.com/talentops/cvindex/internal/transport/gemini"
	"github.com/talentops/cvindex/internal/transport/httpapi"
	openaiEmb "github.com/talentops/cvindex/internal/transport/openai"
	embeddinguc "github.com/talentops/cvindex/internal/usecase/embedding"
	healthuc "github.com/talentops/cvindex/internal/usecase/health"
	ingestuc "github.com/talentops/cvindex/internal/usecase/ingest"
	searchuc "github.com/talentops/cvindex/internal/usecase/search"
	"github.com/talentops/cvindex/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cvindex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	ctx := context.Background()

	store, err := vector.New(ctx, cfg.Database.DSN, cfg.Embedding.Dimensions, logger)
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeoutSec)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure schema", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Embedding cache is optional — skipped when no addresses are configured.
	var cache *embcache.Client
	if len(cfg.Cache.Addrs) > 0 {
		cache, err = embcache.NewClient(embcache.ClientConfig{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to connect to embedding cache", zap.Error(err))
		}
		defer cache.Close()
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	provider := buildProvider(cfg, cache, logger)
	logger.Info("Embedding provider created",
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()),
		zap.Int("dimensions", provider.Dimensions()),
		zap.Bool("enabled", provider.Enabled()),
	)

	flow := flowcase.NewClient(&flowcase.Config{
		BaseURL: cfg.Flowcase.BaseURL,
		APIKey:  cfg.Flowcase.APIKey,
		Timeout: time.Duration(cfg.Flowcase.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	ingestSvc := ingestuc.New(flow, store, provider, logger)
	searchSvc := searchuc.New(store, provider, nil, searchuc.Config{
		SemanticWeight: cfg.Search.SemanticWeight,
		QualityWeight:  cfg.Search.QualityWeight,
		DefaultTopK:    cfg.Search.DefaultTopK,
		MaxTopK:        cfg.Search.MaxTopK,
	}, logger)

	// Pass nil interface (not typed nil pointer!) for absent components.
	var cachePinger healthuc.CachePinger
	if cache != nil {
		cachePinger = cache
	}
	var embChecker healthuc.EmbeddingChecker
	if provider.Enabled() {
		embChecker = provider
	}
	healthSvc := healthuc.New(store, cachePinger, embChecker)

	if cfg.Ingest.IntervalMinutes > 0 {
		sched := scheduler.New(logger)
		interval := time.Duration(cfg.Ingest.IntervalMinutes) * time.Minute
		if err := sched.ScheduleIngest(interval, cfg.Ingest.BatchSize, ingestSvc); err != nil {
			logger.Fatal("Failed to schedule ingest re-scan", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
		logger.Info("Scheduled ingest re-scan", zap.Duration("interval", interval))
	}

	server := httpapi.NewServer(ingestSvc, searchSvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildProvider assembles the embedder chain: transport -> cached -> provider wrapper.
func buildProvider(cfg config.Config, cache *embcache.Client, logger *zap.Logger) *embeddinguc.Provider {
	var base domain.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		})
	default:
		base = geminiEmb.NewEmbedder(&geminiEmb.Config{
			APIKey:         cfg.Embedding.APIKey,
			BaseURL:        cfg.Embedding.BaseURL,
			Model:          cfg.Embedding.Model,
			MaxRetries:     cfg.Embedding.MaxRetries,
			RequestsPerSec: cfg.Embedding.RequestsPerSecond,
			ConnectTimeout: time.Duration(cfg.Embedding.ConnectTimeoutSec) * time.Second,
			ReadTimeout:    time.Duration(cfg.Embedding.ReadTimeoutSec) * time.Second,
			Logger:         logger,
		})
	}

	embedder := base
	if cache != nil {
		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		embedder = embcache.New(base, cache, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewProvider(embedder, embeddinguc.Config{
		Provider:         cfg.Embedding.Provider,
		Model:            cfg.Embedding.Model,
		Dimensions:       cfg.Embedding.Dimensions,
		Enabled:          cfg.Embedding.Enabled,
		HasCredential:    cfg.Embedding.APIKey != "",
		RequestByteLimit: cfg.Embedding.RequestByteLimit,
		ChunkByteBudget:  cfg.Embedding.ChunkByteBudget,
	}, logger)
}
