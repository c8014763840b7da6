package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyon-ai/graphrag/internal/domain"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

// Save upserts the document row and replaces its pages. Pages are stored so
// a restarted worker can re-run ingestion without the original upload.
func (r *DocumentRepository) Save(ctx context.Context, doc *domain.Document, pages []string) error {
	if err := domain.ValidateDocument(doc); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, name, page_count, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, page_count = EXCLUDED.page_count`,
		doc.ID, doc.Name, len(pages), doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM document_pages WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("failed to clear document pages: %w", err)
	}
	for i, page := range pages {
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_pages (document_id, page_number, content) VALUES ($1, $2, $3)`,
			doc.ID, i+1, page,
		)
		if err != nil {
			return fmt.Errorf("failed to save page %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, name, page_count, created_at FROM documents WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.Name, &doc.PageCount, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// GetPages returns a document's page texts in page order.
func (r *DocumentRepository) GetPages(ctx context.Context, documentID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT content FROM document_pages WHERE document_id = $1 ORDER BY page_number ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query document pages: %w", err)
	}
	defer rows.Close()

	var pages []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		pages = append(pages, content)
	}
	return pages, rows.Err()
}

func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *DocumentRepository) Reset(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `TRUNCATE TABLE document_pages`); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `TRUNCATE TABLE documents CASCADE`)
	return err
}
