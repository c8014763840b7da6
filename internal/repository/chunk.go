package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/halcyon-ai/graphrag/internal/domain"
)

// ChunkRepository is the vector index: a file-backed (Postgres + pgvector)
// store of chunk embeddings with similarity search.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// Add inserts a single chunk.
func (r *ChunkRepository) Add(ctx context.Context, c *domain.Chunk) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chunks (id, document_id, ordinal, content, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.DocumentID, c.Ordinal, c.Text, pgvector.NewVector(c.Embedding), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// AddBatch inserts chunks in order.
func (r *ChunkRepository) AddBatch(ctx context.Context, chunks []domain.Chunk) error {
	for i := range chunks {
		if err := r.Add(ctx, &chunks[i]); err != nil {
			return err
		}
	}
	return nil
}

// Query returns up to k chunks with cosine similarity >= minSimilarity to the
// probe vector, ordered descending by similarity. A corpus whose best match
// falls below minSimilarity yields an empty result, not the best available.
func (r *ChunkRepository) Query(ctx context.Context, vector []float32, k int, minSimilarity float32) ([]*domain.ScoredChunk, error) {
	probe := pgvector.NewVector(vector)
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, ordinal, content, embedding, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM chunks
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		probe, minSimilarity, k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []*domain.ScoredChunk
	for rows.Next() {
		var sc domain.ScoredChunk
		var embedding pgvector.Vector
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.DocumentID, &sc.Chunk.Ordinal,
			&sc.Chunk.Text, &embedding, &sc.Chunk.CreatedAt, &sc.Similarity); err != nil {
			return nil, err
		}
		sc.Chunk.Embedding = embedding.Slice()
		results = append(results, &sc)
	}
	return results, rows.Err()
}

// Count reflects all committed adds.
func (r *ChunkRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Reset clears the index.
func (r *ChunkRepository) Reset(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `TRUNCATE TABLE chunks`)
	return err
}
