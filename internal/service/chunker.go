package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/halcyon-ai/graphrag/internal/tokens"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkerConfig controls semantic chunking.
type ChunkerConfig struct {
	// MinTokens and MaxTokens bound the target chunk length band.
	MinTokens int
	MaxTokens int

	// BreakpointPercentile is the sensitivity knob: a chunk boundary is placed
	// where the semantic distance between adjacent sentences reaches this
	// percentile of all adjacent distances on the page. Higher values yield
	// fewer, longer chunks.
	BreakpointPercentile float64
}

// DefaultChunkerConfig provides sane defaults for semantic chunking.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MinTokens:            40,
		MaxTokens:            120,
		BreakpointPercentile: 0.9,
	}
}

// SemanticChunker splits page text into semantically coherent chunks. Breaks
// happen only at sentence boundaries, never mid-sentence, and the output is
// deterministic for identical input and configuration.
type SemanticChunker struct {
	embedder EmbeddingClient
	counter  *tokens.Counter
	cfg      ChunkerConfig
}

// NewSemanticChunker creates a new SemanticChunker instance
func NewSemanticChunker(embedder EmbeddingClient, counter *tokens.Counter, cfg ChunkerConfig) *SemanticChunker {
	if cfg.MaxTokens <= 0 {
		cfg = DefaultChunkerConfig()
	}
	return &SemanticChunker{embedder: embedder, counter: counter, cfg: cfg}
}

// Split chunks one page of text. Empty and whitespace-only input yields no
// chunks. A page with a single sentence yields that sentence as one chunk
// without an embedding call.
func (c *SemanticChunker) Split(ctx context.Context, pageText string) ([]string, error) {
	sentences := splitSentences(pageText)
	if len(sentences) == 0 {
		return nil, nil
	}
	if len(sentences) == 1 {
		return sentences, nil
	}

	embeddings, err := c.embedder.EmbedBatch(ctx, sentences)
	if err != nil {
		return nil, err
	}

	// Semantic distance between each adjacent sentence pair; a boundary
	// candidate is a pair whose distance clears the percentile threshold.
	distances := make([]float64, len(sentences)-1)
	for i := range distances {
		distances[i] = 1 - cosineSimilarity(embeddings[i], embeddings[i+1])
	}
	threshold := percentile(distances, c.cfg.BreakpointPercentile)

	var chunks []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, " "))
		current = nil
		currentTokens = 0
	}

	for i, sentence := range sentences {
		sentenceTokens := c.counter.Count(sentence)

		// A sentence that would push the chunk past the band closes the
		// current chunk first; a single oversized sentence becomes its own
		// chunk rather than being split mid-sentence.
		if currentTokens > 0 && currentTokens+sentenceTokens > c.cfg.MaxTokens {
			flush()
		}

		current = append(current, sentence)
		currentTokens += sentenceTokens

		if i < len(distances) && distances[i] >= threshold && currentTokens >= c.cfg.MinTokens {
			flush()
		}
	}
	flush()

	return chunks, nil
}

// splitSentences splits text at sentence-final punctuation. Newlines count as
// sentence boundaries so headings and list items chunk on their own.
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "! ", "!|")
	text = strings.ReplaceAll(text, "? ", "?|")
	text = strings.ReplaceAll(text, ". ", ".|")
	text = strings.ReplaceAll(text, "\n", "|")

	parts := strings.Split(text, "|")
	var sentences []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// percentile returns the p-th percentile of values using nearest-rank on a
// sorted copy. Deterministic for identical input.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
