package domain

import "time"

// Entity is a deduplicated named entity in the knowledge graph. The first-seen
// embedding is authoritative; entities are append-only and never updated.
type Entity struct {
	ID          string
	SurfaceForm string
	Type        string
	Embedding   []float32
	Confidence  float32
	CreatedAt   time.Time
}

// EntityMatch pairs an entity with its cosine similarity to a probe vector.
type EntityMatch struct {
	Entity     Entity
	Similarity float32
}

// Relation is a directed edge between two entities, extracted from a chunk.
// Duplicate (head, tail, type) rows are accepted: each originates from a
// different source chunk and carries independent evidence.
type Relation struct {
	ID             string
	HeadEntityID   string
	TailEntityID   string
	RelationType   string
	Confidence     float32
	SourceDocument string
	CreatedAt      time.Time
}

// RelationFact is a relation joined with the surface forms of both endpoints,
// as handed to the context assembler.
type RelationFact struct {
	Relation
	HeadSurface string
	HeadType    string
	TailSurface string
	TailType    string
}

// String renders the fact for inclusion in an assembled context.
func (f RelationFact) String() string {
	return f.HeadSurface + " -[" + f.RelationType + "]-> " + f.TailSurface
}

// Triple is a candidate (head, relation, tail) extracted from a single chunk,
// before entity resolution has assigned ids.
type Triple struct {
	Head       string  `json:"head"`
	HeadType   string  `json:"head_type"`
	Relation   string  `json:"relation"`
	Tail       string  `json:"tail"`
	TailType   string  `json:"tail_type"`
	Confidence float32 `json:"confidence,omitempty"`
}

// Valid reports whether the triple carries every field the resolver needs.
func (t Triple) Valid() bool {
	return t.Head != "" && t.HeadType != "" && t.Relation != "" && t.Tail != "" && t.TailType != ""
}
