package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-ai/graphrag/internal/domain"
	"github.com/halcyon-ai/graphrag/internal/tokens"
)

func fact(head, relation, tail string) *domain.RelationFact {
	return &domain.RelationFact{
		Relation:    domain.Relation{ID: head + "-" + tail, RelationType: relation},
		HeadSurface: head,
		TailSurface: tail,
	}
}

func TestContextAssembler_Assemble(t *testing.T) {
	counter := tokens.NewCounter()
	assembler := NewContextAssembler(counter)

	t.Run("everything fits under a generous budget", func(t *testing.T) {
		chunks := scoredChunks("the first piece of evidence", "the second piece of evidence")
		facts := []*domain.RelationFact{fact("Alice", "WORKS_FOR", "Acme Corp")}

		pkg := assembler.Assemble(chunks, facts, 10000)
		assert.Len(t, pkg.Chunks, 2)
		assert.Len(t, pkg.Triples, 1)
		assert.Greater(t, pkg.TokenCount, 0)
		assert.LessOrEqual(t, pkg.TokenCount, 10000)
	})

	t.Run("token count never exceeds the budget", func(t *testing.T) {
		chunks := scoredChunks(
			"a somewhat longer piece of chunk text with several words in it",
			"another somewhat longer piece of chunk text with several words",
			"and a third somewhat longer piece of chunk text to overflow",
		)
		budget := counter.Count(chunks[0].Chunk.Text) + counter.Count(chunks[1].Chunk.Text)

		pkg := assembler.Assemble(chunks, nil, budget)
		assert.Len(t, pkg.Chunks, 2)
		assert.LessOrEqual(t, pkg.TokenCount, budget)
	})

	t.Run("stops at the first overflowing chunk without skipping ahead", func(t *testing.T) {
		chunks := scoredChunks(
			"this is a fairly long chunk of text that occupies quite a few tokens overall",
			"tiny",
		)
		budget := counter.Count(chunks[0].Chunk.Text) - 1

		pkg := assembler.Assemble(chunks, []*domain.RelationFact{fact("a", "R", "b")}, budget)
		// The first chunk overflows, so nothing is packed, not even the
		// smaller items behind it.
		assert.Empty(t, pkg.Chunks)
		assert.Empty(t, pkg.Triples)
		assert.Equal(t, 0, pkg.TokenCount)
	})

	t.Run("chunks take precedence over triples", func(t *testing.T) {
		chunks := scoredChunks("evidence chunk number one", "evidence chunk number two")
		facts := []*domain.RelationFact{
			fact("Alice", "WORKS_FOR", "Acme Corp"),
			fact("Acme Corp", "LOCATED_IN", "Berlin"),
		}
		budget := counter.Count(chunks[0].Chunk.Text) + counter.Count(chunks[1].Chunk.Text) +
			counter.Count(facts[0].String())

		pkg := assembler.Assemble(chunks, facts, budget)
		assert.Len(t, pkg.Chunks, 2)
		assert.Len(t, pkg.Triples, 1)
		assert.Equal(t, "Alice -[WORKS_FOR]-> Acme Corp", pkg.Triples[0].String())
	})

	t.Run("preserves relative order within each group", func(t *testing.T) {
		chunks := scoredChunks("first ranked", "second ranked", "third ranked")
		facts := []*domain.RelationFact{fact("a", "R1", "b"), fact("c", "R2", "d")}

		pkg := assembler.Assemble(chunks, facts, 10000)
		require.Len(t, pkg.Chunks, 3)
		assert.Equal(t, "first ranked", pkg.Chunks[0].Text)
		assert.Equal(t, "second ranked", pkg.Chunks[1].Text)
		assert.Equal(t, "third ranked", pkg.Chunks[2].Text)
		require.Len(t, pkg.Triples, 2)
		assert.Equal(t, "R1", pkg.Triples[0].RelationType)
	})

	t.Run("empty input yields an empty package", func(t *testing.T) {
		pkg := assembler.Assemble(nil, nil, 100)
		assert.Empty(t, pkg.Chunks)
		assert.Empty(t, pkg.Triples)
		assert.Equal(t, 0, pkg.TokenCount)
	})
}
