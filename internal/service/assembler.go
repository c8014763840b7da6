package service

import (
	"github.com/halcyon-ai/graphrag/internal/domain"
	"github.com/halcyon-ai/graphrag/internal/tokens"
)

// ContextAssembler merges ranked chunks and graph facts under a token budget.
type ContextAssembler struct {
	counter *tokens.Counter
}

// NewContextAssembler creates a new ContextAssembler instance
func NewContextAssembler(counter *tokens.Counter) *ContextAssembler {
	return &ContextAssembler{counter: counter}
}

// Assemble walks chunks first, then facts, preserving relative order within
// each group. Chunks come first because they are higher-precision evidence.
// Accumulation stops at the first item that would overflow maxTokens; later,
// smaller items are not packed in, preserving rank order over packing
// efficiency.
func (a *ContextAssembler) Assemble(chunks []*domain.ScoredChunk, facts []*domain.RelationFact, maxTokens int) *domain.ContextPackage {
	pkg := &domain.ContextPackage{
		Chunks:  []domain.Chunk{},
		Triples: []domain.RelationFact{},
	}

	total := 0
	for _, sc := range chunks {
		n := a.counter.Count(sc.Chunk.Text)
		if total+n > maxTokens {
			pkg.TokenCount = total
			return pkg
		}
		pkg.Chunks = append(pkg.Chunks, sc.Chunk)
		total += n
	}
	for _, f := range facts {
		n := a.counter.Count(f.String())
		if total+n > maxTokens {
			break
		}
		pkg.Triples = append(pkg.Triples, *f)
		total += n
	}

	pkg.TokenCount = total
	return pkg
}
