// Package vector persists CV embeddings in Postgres with the pgvector
// extension and answers nearest-neighbor queries over them.
package vector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/talentops/cvindex/internal/domain"
)

// Store is the pgvector-backed embedding repository.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
	logger     *zap.Logger
}

// New connects to Postgres and registers the vector type codec.
func New(ctx context.Context, dsn string, dimensions int, logger *zap.Logger) (*Store, error) {
	if dimensions < 1 {
		return nil, fmt.Errorf("dimensions must be >= 1, got %d: %w", dimensions, domain.ErrInvalidArgument)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn) //nolint:wrapcheck // pool surfaces it with context
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	return &Store{pool: pool, dimensions: dimensions, logger: logger}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// EnsureSchema creates the embeddings table and its uniqueness constraint.
// The unique index is the only synchronization primitive concurrent
// ingestion relies on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cv_embeddings (
			id           BIGSERIAL PRIMARY KEY,
			owner_id     TEXT NOT NULL,
			secondary_id TEXT NOT NULL,
			provider     TEXT NOT NULL,
			model        TEXT NOT NULL,
			embedding    VECTOR(%d) NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT cv_embeddings_key UNIQUE (owner_id, secondary_id, provider, model)
		)`, s.dimensions),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Exists reports whether an embedding is already stored for the key.
func (s *Store) Exists(ctx context.Context, key domain.EmbeddingKey) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM cv_embeddings
		WHERE owner_id = $1 AND secondary_id = $2 AND provider = $3 AND model = $4
	)`

	var exists bool
	err := s.pool.QueryRow(ctx, q, key.OwnerID, key.SecondaryID, key.Provider, key.Model).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists %s/%s: %w", key.OwnerID, key.SecondaryID, err)
	}
	return exists, nil
}

// Save inserts a new embedding row. A key conflict is a silent no-op:
// the first stored embedding wins and re-ingestion never overwrites it.
// Empty and dimension-mismatched vectors are rejected before the write.
func (s *Store) Save(ctx context.Context, key domain.EmbeddingKey, vec []float32) error {
	if err := s.validateVector(vec); err != nil {
		return err
	}

	const q = `INSERT INTO cv_embeddings (owner_id, secondary_id, provider, model, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT cv_embeddings_key DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, key.OwnerID, key.SecondaryID, key.Provider, key.Model, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", key.OwnerID, key.SecondaryID, err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("Embedding already stored, insert skipped",
			zap.String("owner_id", key.OwnerID),
			zap.String("secondary_id", key.SecondaryID),
		)
	}
	return nil
}

// SearchSimilar returns at most topK hits for (provider, model) ordered by
// ascending cosine distance to the query vector. Ties are broken by
// owner_id so identical queries always return identical orderings.
func (s *Store) SearchSimilar(
	ctx context.Context, queryVec []float32, provider, model string, topK int,
) ([]domain.SimilarityHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be >= 1, got %d: %w", topK, domain.ErrInvalidArgument)
	}
	if err := s.validateVector(queryVec); err != nil {
		return nil, err
	}

	const q = `SELECT owner_id, secondary_id, embedding <=> $1 AS distance
		FROM cv_embeddings
		WHERE provider = $2 AND model = $3
		ORDER BY embedding <=> $1 ASC, owner_id ASC
		LIMIT $4`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(queryVec), provider, model, topK)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var hits []domain.SimilarityHit
	for rows.Next() {
		var ownerID, secondaryID string
		var distance float64
		if err := rows.Scan(&ownerID, &secondaryID, &distance); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, domain.NewSimilarityHit(ownerID, secondaryID, distance))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

// validateVector enforces the persistence invariants: non-empty, declared
// dimension, finite values.
func (s *Store) validateVector(vec []float32) error {
	if len(vec) == 0 {
		return domain.ErrEmptyVector
	}
	if len(vec) != s.dimensions {
		return fmt.Errorf("got %d dimensions, store declares %d: %w",
			len(vec), s.dimensions, domain.ErrVectorDimMismatch)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("vector component %d is not finite: %w", i, domain.ErrInvalidArgument)
		}
	}
	return nil
}
