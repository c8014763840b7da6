package service

import (
	"context"
	"log"

	"github.com/halcyon-ai/graphrag/internal/domain"
	"github.com/halcyon-ai/graphrag/internal/telemetry"
)

// graphExpansionLimit caps the entities matched per extracted noun.
const graphExpansionLimit = 5

// RetrievalConfig controls the retrieval orchestrator.
type RetrievalConfig struct {
	TopK                     int
	TopKRerank               int
	ChunkSimilarity          float32
	GraphExpansionSimilarity float32
	MaxContextTokens         int
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.TopK <= 0 {
		c.TopK = 100
	}
	if c.TopKRerank <= 0 {
		c.TopKRerank = 15
	}
	if c.ChunkSimilarity == 0 {
		c.ChunkSimilarity = 0.85
	}
	if c.GraphExpansionSimilarity == 0 {
		c.GraphExpansionSimilarity = 0.95
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = 51200
	}
	return c
}

// RetrievalPipeline answers a query with a token-bounded context package.
// Retrieval never partially succeeds silently: vector search, reranking and
// graph traversal failures fail the whole call, since an answer generated
// from no evidence is worse than an explicit failure. An empty corpus is not
// a failure; it yields an empty package.
type RetrievalPipeline struct {
	normalizer *LanguageNormalizer
	embedder   EmbeddingClient
	chunks     ChunkIndexInterface
	reranker   *Reranker
	nouns      NounExtractor
	graph      GraphStoreInterface
	assembler  *ContextAssembler
	cfg        RetrievalConfig
}

// NewRetrievalPipeline creates a new RetrievalPipeline instance
func NewRetrievalPipeline(
	normalizer *LanguageNormalizer,
	embedder EmbeddingClient,
	chunks ChunkIndexInterface,
	reranker *Reranker,
	nouns NounExtractor,
	graph GraphStoreInterface,
	assembler *ContextAssembler,
	cfg RetrievalConfig,
) *RetrievalPipeline {
	return &RetrievalPipeline{
		normalizer: normalizer,
		embedder:   embedder,
		chunks:     chunks,
		reranker:   reranker,
		nouns:      nouns,
		graph:      graph,
		assembler:  assembler,
		cfg:        cfg.withDefaults(),
	}
}

// RetrieveContext runs the full query path: normalize, vector search, rerank,
// graph expansion, assemble.
func (p *RetrievalPipeline) RetrieveContext(ctx context.Context, queryText string) (*domain.ContextPackage, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalPipeline.RetrieveContext", telemetry.SpanAttributes{
		Operation: "retrieve_context",
	})
	defer span.End()

	nq, err := p.normalizer.Normalize(ctx, queryText)
	if err != nil {
		// Translation failure degrades to the original text, flagged
		// uncertain; the query is never silently dropped.
		log.Printf("language normalization degraded: %v", err)
	}
	if nq.Text == "" {
		return &domain.ContextPackage{
			Language:          nq.Language,
			LanguageUncertain: nq.Uncertain,
			Chunks:            []domain.Chunk{},
			Triples:           []domain.RelationFact{},
		}, nil
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, []string{nq.Text})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	queryVector := embeddings[0]

	candidates, err := p.chunks.Query(ctx, queryVector, p.cfg.TopK, p.cfg.ChunkSimilarity)
	if err != nil {
		err = domain.ErrStoreUnavailable.WithCause(err)
		span.SetError(err)
		return nil, err
	}

	ranked := []*domain.ScoredChunk{}
	if len(candidates) > 0 {
		ranked, err = p.reranker.Rerank(ctx, nq.Text, candidates, p.cfg.TopKRerank)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	facts, err := p.expandGraph(ctx, nq.Text)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	pkg := p.assembler.Assemble(ranked, facts, p.cfg.MaxContextTokens)
	pkg.Language = nq.Language
	pkg.LanguageUncertain = nq.Uncertain
	return pkg, nil
}

// expandGraph extracts nouns from the normalized query, matches them against
// graph entities under the strict expansion threshold and collects every
// relation touching a matched entity. Noun extraction failures degrade to no
// expansion; store failures fail the call.
func (p *RetrievalPipeline) expandGraph(ctx context.Context, english string) ([]*domain.RelationFact, error) {
	nouns, err := p.nouns.Nouns(english)
	if err != nil {
		log.Printf("noun extraction failed, skipping graph expansion: %v", err)
		return nil, nil
	}
	if len(nouns) == 0 {
		return nil, nil
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, nouns)
	if err != nil {
		return nil, err
	}

	seenEntities := make(map[string]struct{})
	seenRelations := make(map[string]struct{})
	var facts []*domain.RelationFact
	for i := range nouns {
		matches, err := p.graph.EntitiesBySimilarity(ctx, embeddings[i], p.cfg.GraphExpansionSimilarity, graphExpansionLimit)
		if err != nil {
			return nil, domain.ErrStoreUnavailable.WithCause(err)
		}
		for _, m := range matches {
			if _, ok := seenEntities[m.Entity.ID]; ok {
				continue
			}
			seenEntities[m.Entity.ID] = struct{}{}

			touching, err := p.graph.RelationsTouching(ctx, m.Entity.ID)
			if err != nil {
				return nil, domain.ErrStoreUnavailable.WithCause(err)
			}
			for _, f := range touching {
				if _, ok := seenRelations[f.ID]; ok {
					continue
				}
				seenRelations[f.ID] = struct{}{}
				facts = append(facts, f)
			}
		}
	}
	return facts, nil
}
