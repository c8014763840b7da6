package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-ai/graphrag/internal/domain"
	"github.com/halcyon-ai/graphrag/internal/llm"
	"github.com/halcyon-ai/graphrag/internal/tokens"
)

// selectiveCompletion fails calls whose user prompt contains failSubstr and
// answers the rest with a canned response.
type selectiveCompletion struct {
	response   string
	failSubstr string
	calls      int
}

func (s *selectiveCompletion) Complete(ctx context.Context, system, user string) (string, error) {
	s.calls++
	if s.failSubstr != "" && strings.Contains(user, s.failSubstr) {
		return "", errors.New("model refused")
	}
	return s.response, nil
}

// danglingGraph makes relation inserts of one relation type fail as dangling,
// to exercise the row-by-row batch fallback.
type danglingGraph struct {
	*memoryGraphStore
	badRelationType string
}

func (g *danglingGraph) InsertRelation(ctx context.Context, rel *domain.Relation) error {
	if rel.RelationType == g.badRelationType {
		return domain.ErrDanglingReference
	}
	return g.memoryGraphStore.InsertRelation(ctx, rel)
}

func newTestPipeline(client CompletionClient, graph GraphStoreInterface, chunks *memoryChunkIndex, embedder *fakeEmbedder, cfg IngestionConfig) *IngestionPipeline {
	counter := tokens.NewCounter()
	chunker := NewSemanticChunker(embedder, counter, DefaultChunkerConfig())
	extractor := NewRelationExtractor(client, llm.NewGuard(llm.GuardConfig{MaxInFlight: 4}), counter, 1000)
	resolver := NewEntityResolver(graph, embedder, 0.90)
	txRunner := &fakeTxRunner{chunks: chunks, graph: graph}
	return NewIngestionPipeline(chunker, embedder, chunks, extractor, resolver, graph, txRunner, cfg)
}

func TestIngestionPipeline_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("single sentence produces two entities and one relation", func(t *testing.T) {
		graph := &memoryGraphStore{}
		chunks := &memoryChunkIndex{}
		pipeline := newTestPipeline(&fakeCompletion{response: tripleJSON}, graph, chunks, newFakeEmbedder(), IngestionConfig{})

		err := pipeline.Ingest(ctx, "doc-1", []string{"Alice works for Acme Corp."})
		require.NoError(t, err)

		count, err := chunks.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, 0, chunks.chunks[0].Ordinal)
		assert.Equal(t, "doc-1", chunks.chunks[0].DocumentID)

		assert.Equal(t, 2, graph.entityCount())
		assert.Equal(t, 1, graph.relationCount())

		facts, err := graph.RelationsTouching(ctx, graph.entities[0].ID)
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, "Alice -[WORKS_FOR]-> Acme Corp", facts[0].String())
		assert.Equal(t, "doc-1", facts[0].SourceDocument)
	})

	t.Run("empty pages are a no-op", func(t *testing.T) {
		graph := &memoryGraphStore{}
		chunks := &memoryChunkIndex{}
		client := &fakeCompletion{response: tripleJSON}
		pipeline := newTestPipeline(client, graph, chunks, newFakeEmbedder(), IngestionConfig{})

		err := pipeline.Ingest(ctx, "doc-1", []string{"   ", ""})
		require.NoError(t, err)
		assert.Equal(t, 0, client.calls)
		assert.Equal(t, 0, graph.entityCount())
	})

	t.Run("ingesting the same document twice does not duplicate entities", func(t *testing.T) {
		graph := &memoryGraphStore{}
		chunks := &memoryChunkIndex{}
		pipeline := newTestPipeline(&fakeCompletion{response: tripleJSON}, graph, chunks, newFakeEmbedder(), IngestionConfig{})

		require.NoError(t, pipeline.Ingest(ctx, "doc-1", []string{"Alice works for Acme Corp."}))
		require.NoError(t, pipeline.Ingest(ctx, "doc-1", []string{"Alice works for Acme Corp."}))

		// Resolution deduplicates entities; relations keep one row per
		// source chunk.
		assert.Equal(t, 2, graph.entityCount())
		assert.Equal(t, 2, graph.relationCount())
	})

	t.Run("extraction failure on one chunk skips it without failing the run", func(t *testing.T) {
		graph := &memoryGraphStore{}
		chunks := &memoryChunkIndex{}
		client := &selectiveCompletion{response: tripleJSON, failSubstr: "ocean"}
		pipeline := newTestPipeline(client, graph, chunks, newFakeEmbedder(), IngestionConfig{ExtractionConcurrency: 1})

		err := pipeline.Ingest(ctx, "doc-1", []string{
			"Alice works for Acme Corp.",
			"The ocean is home to coral and fish.",
		})
		require.NoError(t, err)

		count, err := chunks.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		assert.Equal(t, 2, graph.entityCount())
		assert.Equal(t, 1, graph.relationCount())
	})

	t.Run("all extractions failing still indexes the chunks", func(t *testing.T) {
		graph := &memoryGraphStore{}
		chunks := &memoryChunkIndex{}
		pipeline := newTestPipeline(&fakeCompletion{err: errors.New("model down")}, graph, chunks, newFakeEmbedder(), IngestionConfig{})

		err := pipeline.Ingest(ctx, "doc-1", []string{"Alice works for Acme Corp."})
		require.NoError(t, err)

		count, err := chunks.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, 0, graph.entityCount())
	})

	t.Run("index failure aborts the run", func(t *testing.T) {
		graph := &memoryGraphStore{}
		chunks := &memoryChunkIndex{addErr: errors.New("connection refused")}
		client := &fakeCompletion{response: tripleJSON}
		pipeline := newTestPipeline(client, graph, chunks, newFakeEmbedder(), IngestionConfig{})

		err := pipeline.Ingest(ctx, "doc-1", []string{"Alice works for Acme Corp."})
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.Equal(t, 0, client.calls)
	})

	t.Run("unresolvable triple endpoints are skipped", func(t *testing.T) {
		response := `[
			{"head":"   ","head_type":"PERSON","relation":"WORKS_FOR","tail":"Acme Corp","tail_type":"ORG","confidence":0.9},
			{"head":"Alice","head_type":"PERSON","relation":"WORKS_FOR","tail":"Acme Corp","tail_type":"ORG","confidence":0.9}
		]`
		graph := &memoryGraphStore{}
		chunks := &memoryChunkIndex{}
		pipeline := newTestPipeline(&fakeCompletion{response: response}, graph, chunks, newFakeEmbedder(), IngestionConfig{})

		err := pipeline.Ingest(ctx, "doc-1", []string{"Alice works for Acme Corp."})
		require.NoError(t, err)
		assert.Equal(t, 2, graph.entityCount())
		assert.Equal(t, 1, graph.relationCount())
	})

	t.Run("dangling batch falls back to row-by-row inserts", func(t *testing.T) {
		// The dangling row comes first so the batch transaction fails
		// before writing anything; the fallback then lands the good row.
		response := `[
			{"head":"Bob","head_type":"PERSON","relation":"BAD_REL","tail":"Acme Corp","tail_type":"ORG","confidence":0.5},
			{"head":"Alice","head_type":"PERSON","relation":"WORKS_FOR","tail":"Acme Corp","tail_type":"ORG","confidence":0.9}
		]`
		graph := &danglingGraph{memoryGraphStore: &memoryGraphStore{}, badRelationType: "BAD_REL"}
		chunks := &memoryChunkIndex{}
		pipeline := newTestPipeline(&fakeCompletion{response: response}, graph, chunks, newFakeEmbedder(), IngestionConfig{})

		err := pipeline.Ingest(ctx, "doc-1", []string{"Alice works for Acme Corp."})
		require.NoError(t, err)
		assert.Equal(t, 1, graph.relationCount())
	})
}
