package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/halcyon-ai/graphrag/internal/domain"
	"github.com/halcyon-ai/graphrag/internal/llm"
	"github.com/halcyon-ai/graphrag/internal/tokens"
)

// CompletionClient defines the structured-generation interface backing
// relation extraction, translation and relevance scoring.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const extractionSystemPrompt = `You extract knowledge graph triples from text.

Given a passage, return a JSON array of relationships. Each element must have
exactly these fields:
  "head": the subject entity surface form
  "head_type": the subject entity type (PERSON, ORG, LOCATION, PRODUCT, EVENT or CONCEPT)
  "relation": the relationship type in UPPER_SNAKE_CASE (e.g. WORKS_FOR, LOCATED_IN)
  "tail": the object entity surface form
  "tail_type": the object entity type
  "confidence": a number between 0 and 1

Return only the JSON array. If the passage contains no relationships, return [].`

var errNoParseableTriples = errors.New("no parseable JSON array in extraction response")

// RelationExtractor turns a chunk into candidate triples via one structured
// generation call per chunk.
type RelationExtractor struct {
	client         CompletionClient
	guard          *llm.Guard
	counter        *tokens.Counter
	maxChunkTokens int
}

// NewRelationExtractor creates a new RelationExtractor instance
func NewRelationExtractor(client CompletionClient, guard *llm.Guard, counter *tokens.Counter, maxChunkTokens int) *RelationExtractor {
	if maxChunkTokens <= 0 {
		maxChunkTokens = 1000
	}
	return &RelationExtractor{
		client:         client,
		guard:          guard,
		counter:        counter,
		maxChunkTokens: maxChunkTokens,
	}
}

// Extract returns the valid triples found in chunkText. Chunks over the token
// ceiling are rejected before the model call with ChunkTooLarge; malformed or
// timed-out responses fail with ExtractionFailed after the fallback parsers
// have been tried.
func (e *RelationExtractor) Extract(ctx context.Context, chunkText string) ([]domain.Triple, error) {
	if e.counter.Count(chunkText) > e.maxChunkTokens {
		return nil, domain.ErrChunkTooLarge
	}

	var raw string
	err := e.guard.Do(ctx, func(callCtx context.Context) error {
		var callErr error
		raw, callErr = e.client.Complete(callCtx, extractionSystemPrompt, chunkText)
		return callErr
	})
	if err != nil {
		return nil, domain.ErrExtractionFailed.WithCause(err)
	}

	triples, err := parseTriples(raw)
	if err != nil {
		return nil, domain.ErrExtractionFailed.WithCause(err)
	}

	valid := triples[:0]
	for _, t := range triples {
		if t.Valid() {
			valid = append(valid, t)
		}
	}
	return valid, nil
}

// parseTriples parses the model response as an ordered list of attempts:
// the raw text, the text with markdown code fences stripped, and the first
// balanced JSON array substring.
func parseTriples(raw string) ([]domain.Triple, error) {
	attempts := []func(string) string{
		func(s string) string { return s },
		stripCodeFences,
		firstBalancedArray,
	}

	lastErr := errNoParseableTriples
	for _, attempt := range attempts {
		candidate := strings.TrimSpace(attempt(raw))
		if candidate == "" {
			continue
		}
		var triples []domain.Triple
		if err := json.Unmarshal([]byte(candidate), &triples); err != nil {
			lastErr = err
			continue
		}
		return triples, nil
	}
	return nil, lastErr
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return ""
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line ("json" etc.).
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// firstBalancedArray returns the first balanced JSON array substring,
// tracking string literals so brackets inside values do not miscount.
func firstBalancedArray(s string) string {
	start := strings.Index(s, "[")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
