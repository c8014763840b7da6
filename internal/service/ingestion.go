package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halcyon-ai/graphrag/internal/domain"
	"github.com/halcyon-ai/graphrag/internal/telemetry"
)

// ChunkIndexInterface defines the vector index operations the pipelines need
type ChunkIndexInterface interface {
	AddBatch(ctx context.Context, chunks []domain.Chunk) error
	Query(ctx context.Context, vector []float32, k int, minSimilarity float32) ([]*domain.ScoredChunk, error)
	Count(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
}

// GraphStoreInterface defines the graph store operations the pipelines need
type GraphStoreInterface interface {
	InsertEntity(ctx context.Context, e *domain.Entity) error
	InsertRelation(ctx context.Context, rel *domain.Relation) error
	RelationsTouching(ctx context.Context, entityID string) ([]*domain.RelationFact, error)
	EntitiesByTypeSimilarity(ctx context.Context, entityType string, vector []float32, minSimilarity float32, limit int) ([]*domain.EntityMatch, error)
	EntitiesBySimilarity(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*domain.EntityMatch, error)
	Reset(ctx context.Context) error
}

// IngestionConfig controls the ingestion orchestrator.
type IngestionConfig struct {
	// ExtractionConcurrency caps simultaneous in-flight extraction calls.
	ExtractionConcurrency int
	// RelationBatchSize is the number of relation writes committed per
	// transaction.
	RelationBatchSize int
}

func (c IngestionConfig) withDefaults() IngestionConfig {
	if c.ExtractionConcurrency <= 0 {
		c.ExtractionConcurrency = 4
	}
	if c.RelationBatchSize <= 0 {
		c.RelationBatchSize = 100
	}
	return c
}

// IngestionPipeline turns document pages into chunks, embeddings and graph
// facts. Per-chunk extraction failures are logged and skipped; partial
// knowledge extraction is strictly better than none. Store failures abort the
// run without committing the in-flight relation batch.
type IngestionPipeline struct {
	chunker   *SemanticChunker
	embedder  EmbeddingClient
	chunks    ChunkIndexInterface
	extractor *RelationExtractor
	resolver  *EntityResolver
	graph     GraphStoreInterface
	txRunner  TxRunner
	uuidGen   UUIDGenerator
	cfg       IngestionConfig
}

// NewIngestionPipeline creates a new IngestionPipeline instance
func NewIngestionPipeline(
	chunker *SemanticChunker,
	embedder EmbeddingClient,
	chunks ChunkIndexInterface,
	extractor *RelationExtractor,
	resolver *EntityResolver,
	graph GraphStoreInterface,
	txRunner TxRunner,
	cfg IngestionConfig,
) *IngestionPipeline {
	return &IngestionPipeline{
		chunker:   chunker,
		embedder:  embedder,
		chunks:    chunks,
		extractor: extractor,
		resolver:  resolver,
		graph:     graph,
		txRunner:  txRunner,
		uuidGen:   &DefaultUUIDGenerator{},
		cfg:       cfg.withDefaults(),
	}
}

// Ingest processes one document's pages end to end.
func (p *IngestionPipeline) Ingest(ctx context.Context, documentID string, pages []string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionPipeline.Ingest", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest",
	})
	defer span.End()

	var texts []string
	for _, page := range pages {
		pageChunks, err := p.chunker.Split(ctx, page)
		if err != nil {
			span.SetError(err)
			return err
		}
		texts = append(texts, pageChunks...)
	}
	if len(texts) == 0 {
		log.Printf("document %s produced no chunks", documentID)
		return nil
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		span.SetError(err)
		return err
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:         p.uuidGen.NewString(),
			DocumentID: documentID,
			Ordinal:    i,
			Text:       text,
			Embedding:  embeddings[i],
			CreatedAt:  now,
		}
	}
	if err := p.chunks.AddBatch(ctx, chunks); err != nil {
		err = domain.ErrStoreUnavailable.WithCause(err)
		span.SetError(err)
		return err
	}
	log.Printf("document %s: indexed %d chunks", documentID, len(chunks))

	triples, err := p.extractTriples(ctx, chunks)
	if err != nil {
		span.SetError(err)
		return err
	}

	if err := p.writeGraph(ctx, documentID, triples); err != nil {
		span.SetError(err)
		return err
	}
	return nil
}

// extractTriples fans extraction out over the chunks with bounded
// concurrency. A chunk whose extraction fails contributes zero triples.
func (p *IngestionPipeline) extractTriples(ctx context.Context, chunks []domain.Chunk) ([]domain.Triple, error) {
	var mu sync.Mutex
	results := make([][]domain.Triple, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ExtractionConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			triples, err := p.extractor.Extract(gctx, chunk.Text)
			if err != nil {
				log.Printf("extraction failed for chunk %s: %v", chunk.ID, err)
				return nil
			}
			mu.Lock()
			results[i] = triples
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Chunk order is preserved so repeated ingestion stays deterministic.
	var all []domain.Triple
	for _, triples := range results {
		all = append(all, triples...)
	}
	return all, nil
}

// writeGraph resolves triple endpoints to entity ids and writes relations in
// batches, one transaction per batch.
func (p *IngestionPipeline) writeGraph(ctx context.Context, documentID string, triples []domain.Triple) error {
	var pending []*domain.Relation
	for _, t := range triples {
		headID, err := p.resolver.Resolve(ctx, t.Head, t.HeadType, t.Confidence)
		if err != nil {
			if skippableResolveError(err) {
				log.Printf("skipping triple %q -[%s]-> %q: %v", t.Head, t.Relation, t.Tail, err)
				continue
			}
			return err
		}
		tailID, err := p.resolver.Resolve(ctx, t.Tail, t.TailType, t.Confidence)
		if err != nil {
			if skippableResolveError(err) {
				log.Printf("skipping triple %q -[%s]-> %q: %v", t.Head, t.Relation, t.Tail, err)
				continue
			}
			return err
		}

		pending = append(pending, &domain.Relation{
			ID:             p.uuidGen.NewString(),
			HeadEntityID:   headID,
			TailEntityID:   tailID,
			RelationType:   t.Relation,
			Confidence:     t.Confidence,
			SourceDocument: documentID,
			CreatedAt:      time.Now().UTC(),
		})
		if len(pending) >= p.cfg.RelationBatchSize {
			if err := p.flushRelations(ctx, pending); err != nil {
				return err
			}
			pending = nil
		}
	}
	return p.flushRelations(ctx, pending)
}

// flushRelations commits one relation batch in a single transaction. When the
// batch fails on a dangling reference, the rows are retried individually so
// the one bad row does not discard the rest.
func (p *IngestionPipeline) flushRelations(ctx context.Context, batch []*domain.Relation) error {
	if len(batch) == 0 {
		return nil
	}

	err := p.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		graph := repos.Graph()
		for _, rel := range batch {
			if err := graph.InsertRelation(ctx, rel); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrDanglingReference) {
		return domain.ErrStoreUnavailable.WithCause(err)
	}

	for _, rel := range batch {
		if err := p.graph.InsertRelation(ctx, rel); err != nil {
			if errors.Is(err, domain.ErrDanglingReference) {
				log.Printf("skipping relation %s: %v", rel.ID, err)
				continue
			}
			return domain.ErrStoreUnavailable.WithCause(err)
		}
	}
	return nil
}

// skippableResolveError reports whether a resolution failure is local to one
// triple (validation) rather than a store or model failure.
func skippableResolveError(err error) bool {
	var de *domain.DomainError
	return errors.As(err, &de) && de.Code == domain.ErrCodeValidation
}
