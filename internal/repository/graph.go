package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/halcyon-ai/graphrag/internal/domain"
	"github.com/halcyon-ai/graphrag/internal/pagination"
)

const pgForeignKeyViolation = "23503"

// GraphRepository is the graph store: entities and relations with similarity
// search over entity embeddings.
type GraphRepository struct {
	db dbtx
}

func NewGraphRepository(pool *pgxpool.Pool) *GraphRepository {
	return &GraphRepository{db: pool}
}

func NewGraphRepositoryWithTx(tx pgx.Tx) *GraphRepository {
	return &GraphRepository{db: tx}
}

// InsertEntity appends a new entity. Entities are never updated: the
// first-seen embedding stays authoritative.
func (r *GraphRepository) InsertEntity(ctx context.Context, e *domain.Entity) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO entities (id, surface_form, entity_type, embedding, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.SurfaceForm, e.Type, pgvector.NewVector(e.Embedding), e.Confidence, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	return nil
}

// InsertRelation appends a relation row. Duplicate (head, tail, type) rows
// are accepted; a reference to a nonexistent entity fails with
// DanglingReference.
func (r *GraphRepository) InsertRelation(ctx context.Context, rel *domain.Relation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO relations (id, head_entity_id, tail_entity_id, relation_type, confidence, source_document, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rel.ID, rel.HeadEntityID, rel.TailEntityID, rel.RelationType, rel.Confidence, rel.SourceDocument, rel.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return domain.ErrDanglingReference.WithCause(err)
		}
		return fmt.Errorf("failed to insert relation: %w", err)
	}
	return nil
}

// RelationsTouching returns every relation in which the entity appears as
// head or tail, joined with both endpoints' surface forms.
func (r *GraphRepository) RelationsTouching(ctx context.Context, entityID string) ([]*domain.RelationFact, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.head_entity_id, r.tail_entity_id, r.relation_type, r.confidence, r.source_document, r.created_at,
		        h.surface_form, h.entity_type, t.surface_form, t.entity_type
		 FROM relations r
		 JOIN entities h ON h.id = r.head_entity_id
		 JOIN entities t ON t.id = r.tail_entity_id
		 WHERE r.head_entity_id = $1 OR r.tail_entity_id = $1
		 ORDER BY r.created_at ASC, r.id ASC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	var facts []*domain.RelationFact
	for rows.Next() {
		var f domain.RelationFact
		if err := rows.Scan(&f.ID, &f.HeadEntityID, &f.TailEntityID, &f.RelationType,
			&f.Confidence, &f.SourceDocument, &f.CreatedAt,
			&f.HeadSurface, &f.HeadType, &f.TailSurface, &f.TailType); err != nil {
			return nil, err
		}
		facts = append(facts, &f)
	}
	return facts, rows.Err()
}

// EntitiesByTypeSimilarity returns entities of the given type with cosine
// similarity >= minSimilarity, ordered by similarity descending. Equal
// similarities order by creation so the earliest entity wins ties.
func (r *GraphRepository) EntitiesByTypeSimilarity(ctx context.Context, entityType string, vector []float32, minSimilarity float32, limit int) ([]*domain.EntityMatch, error) {
	probe := pgvector.NewVector(vector)
	rows, err := r.db.Query(ctx,
		`SELECT id, surface_form, entity_type, embedding, confidence, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM entities
		 WHERE entity_type = $2 AND 1 - (embedding <=> $1) >= $3
		 ORDER BY similarity DESC, created_at ASC, id ASC
		 LIMIT $4`,
		probe, entityType, minSimilarity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()
	return scanEntityMatches(rows)
}

// EntitiesBySimilarity is the untyped variant used for query-time graph
// expansion, where extracted nouns carry no type.
func (r *GraphRepository) EntitiesBySimilarity(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*domain.EntityMatch, error) {
	probe := pgvector.NewVector(vector)
	rows, err := r.db.Query(ctx,
		`SELECT id, surface_form, entity_type, embedding, confidence, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM entities
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY similarity DESC, created_at ASC, id ASC
		 LIMIT $3`,
		probe, minSimilarity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()
	return scanEntityMatches(rows)
}

func scanEntityMatches(rows pgx.Rows) ([]*domain.EntityMatch, error) {
	var matches []*domain.EntityMatch
	for rows.Next() {
		var m domain.EntityMatch
		var embedding pgvector.Vector
		if err := rows.Scan(&m.Entity.ID, &m.Entity.SurfaceForm, &m.Entity.Type,
			&embedding, &m.Entity.Confidence, &m.Entity.CreatedAt, &m.Similarity); err != nil {
			return nil, err
		}
		m.Entity.Embedding = embedding.Slice()
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

// CountEntities returns the number of entity rows.
func (r *GraphRepository) CountEntities(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM entities`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CountRelations returns the number of relation rows.
func (r *GraphRepository) CountRelations(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM relations`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// EntityPageResult is one page of an entity listing.
type EntityPageResult struct {
	Items      []*domain.Entity
	NextCursor string
	HasMore    bool
}

// ListEntities returns entities newest-first with keyset pagination,
// optionally filtered by type.
func (r *GraphRepository) ListEntities(ctx context.Context, entityType string, cursor *pagination.Cursor, limit int) (*EntityPageResult, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, surface_form, entity_type, confidence, created_at FROM entities`
	args := []any{}
	where := ""
	if entityType != "" {
		args = append(args, entityType)
		where = fmt.Sprintf(" WHERE entity_type = $%d", len(args))
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		cond := fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args))
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}
	args = append(args, limit+1)
	query += where + fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var items []*domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.SurfaceForm, &e.Type, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var next string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		next = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &EntityPageResult{Items: items, NextCursor: next, HasMore: hasMore}, nil
}

// Reset clears relations and entities, in that order.
func (r *GraphRepository) Reset(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `TRUNCATE TABLE relations`); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `TRUNCATE TABLE entities CASCADE`)
	return err
}
