package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/halcyon-ai/graphrag/internal/domain"
)

// Reranker orders retrieval candidates by cross-encoder relevance score.
type Reranker struct {
	scorer ScoringClient
}

// NewReranker creates a new Reranker instance
func NewReranker(scorer ScoringClient) *Reranker {
	return &Reranker{scorer: scorer}
}

// Rerank scores every candidate against the query, sorts descending by score
// and truncates to keep. The sort is stable, so ties keep their original
// retrieval-similarity order. An empty candidate list returns empty without a
// scoring call.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []*domain.ScoredChunk, keep int) ([]*domain.ScoredChunk, error) {
	if len(candidates) == 0 {
		return []*domain.ScoredChunk{}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Text
	}

	scores, err := r.scorer.ScorePairs(ctx, query, texts)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("scorer returned %d scores for %d candidates", len(scores), len(candidates))
	}

	ranked := make([]*domain.ScoredChunk, len(candidates))
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	for i, idx := range order {
		ranked[i] = candidates[idx]
	}

	if keep > 0 && keep < len(ranked) {
		ranked = ranked[:keep]
	}
	return ranked, nil
}
