package domain

import "time"

// Chunk is a contiguous, semantically coherent span of document text stored
// together with its embedding. Chunks are immutable after creation; re-ingesting
// a document produces new chunk ids rather than updating old rows.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredChunk pairs a chunk with its cosine similarity to a query vector.
type ScoredChunk struct {
	Chunk      Chunk
	Similarity float32
}
