package domain

// ContextPackage is the final bundle of evidence handed to the downstream
// answer generator. It is built fresh per query, never mutated after
// construction and never persisted.
type ContextPackage struct {
	// Language is the detected language of the original query (ISO 639-1).
	Language string `json:"language"`
	// LanguageUncertain is set when translation failed and retrieval
	// proceeded with the untranslated query text.
	LanguageUncertain bool `json:"language_uncertain,omitempty"`

	Chunks  []Chunk        `json:"chunks"`
	Triples []RelationFact `json:"triples"`

	// TokenCount is the number of tokens the assembled context occupies,
	// always <= the configured budget.
	TokenCount int `json:"token_count"`
}
