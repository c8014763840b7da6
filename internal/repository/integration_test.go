//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyon-ai/graphrag/internal/testutil"
)

const embeddingDim = 1536

// setupTestDB starts a pgvector container, runs migrations and returns a
// connected pool. The container is torn down with the test.
func setupTestDB(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() {
		_ = pc.Terminate(context.Background())
	})

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)

	return ctx, pool
}

func truncate(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if err := testutil.TruncateAll(ctx, pool); err != nil {
		t.Fatalf("failed to truncate: %v", err)
	}
}

// testVector builds an embedding with the given non-zero components, all other
// dimensions zero. Unit vectors on distinct axes are orthogonal, which makes
// cosine similarities exact and easy to reason about.
func testVector(components map[int]float32) []float32 {
	v := make([]float32, embeddingDim)
	for i, x := range components {
		v[i] = x
	}
	return v
}

func axisVector(axis int) []float32 {
	return testVector(map[int]float32{axis: 1})
}
