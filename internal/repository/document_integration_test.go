//go:build integration

package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-ai/graphrag/internal/domain"
)

func TestDocumentRepository_Integration(t *testing.T) {
	ctx, pool := setupTestDB(t)
	repo := NewDocumentRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("save and load round trip", func(t *testing.T) {
		truncate(ctx, t, pool)

		doc := &domain.Document{ID: "doc-1", Name: "handbook", CreatedAt: now}
		require.NoError(t, repo.Save(ctx, doc, []string{"page one", "page two", "page three"}))

		got, err := repo.GetByID(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "handbook", got.Name)
		assert.Equal(t, 3, got.PageCount)

		pages, err := repo.GetPages(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"page one", "page two", "page three"}, pages)
	})

	t.Run("saving again replaces the pages", func(t *testing.T) {
		truncate(ctx, t, pool)

		doc := &domain.Document{ID: "doc-1", Name: "handbook", CreatedAt: now}
		require.NoError(t, repo.Save(ctx, doc, []string{"old page"}))

		doc.Name = "handbook v2"
		require.NoError(t, repo.Save(ctx, doc, []string{"new page one", "new page two"}))

		got, err := repo.GetByID(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "handbook v2", got.Name)
		assert.Equal(t, 2, got.PageCount)

		pages, err := repo.GetPages(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"new page one", "new page two"}, pages)
	})

	t.Run("rejects invalid documents", func(t *testing.T) {
		err := repo.Save(ctx, &domain.Document{Name: "no id"}, nil)
		var de *domain.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.ErrCodeValidation, de.Code)
	})

	t.Run("missing document yields not found", func(t *testing.T) {
		truncate(ctx, t, pool)
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("count and reset", func(t *testing.T) {
		truncate(ctx, t, pool)

		require.NoError(t, repo.Save(ctx, &domain.Document{ID: "doc-1", Name: "a", CreatedAt: now}, []string{"p"}))
		require.NoError(t, repo.Save(ctx, &domain.Document{ID: "doc-2", Name: "b", CreatedAt: now}, []string{"p"}))

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		require.NoError(t, repo.Reset(ctx))
		n, err = repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}
