package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/halcyon-ai/graphrag/internal/llm"
)

// ScoringClient scores (query, text) pairs for relevance, cross-encoder
// style: each pair is judged jointly, not via precomputed vectors.
type ScoringClient interface {
	ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error)
}

const scoringSystemPrompt = `You judge how relevant a passage is to a question. Respond with a single decimal number between 0 and 1, where 1 means the passage directly answers the question and 0 means it is unrelated. Respond with the number only.`

// LLMScorer implements ScoringClient over the completion model. Pairs are
// scored independently; the guard bounds in-flight calls.
type LLMScorer struct {
	client CompletionClient
	guard  *llm.Guard
}

// NewLLMScorer creates a new LLMScorer instance
func NewLLMScorer(client CompletionClient, guard *llm.Guard) *LLMScorer {
	return &LLMScorer{client: client, guard: guard}
}

// ScorePairs scores every (query, text) pair and returns scores in input
// order. Any failed call fails the whole batch.
func (s *LLMScorer) ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	for i, text := range texts {
		g.Go(func() error {
			return s.guard.Do(gctx, func(callCtx context.Context) error {
				prompt := fmt.Sprintf("Question: %s\n\nPassage: %s", query, text)
				raw, err := s.client.Complete(callCtx, scoringSystemPrompt, prompt)
				if err != nil {
					return err
				}
				score, err := parseScore(raw)
				if err != nil {
					return err
				}
				scores[i] = score
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// parseScore reads the first parseable float in the response.
func parseScore(raw string) (float64, error) {
	for _, field := range strings.Fields(raw) {
		field = strings.Trim(field, ",:;")
		if v, err := strconv.ParseFloat(field, 64); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("no numeric score in response %q", raw)
}
