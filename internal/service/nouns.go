package service

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// NounExtractor pulls candidate entity mentions out of a query for graph
// expansion.
type NounExtractor interface {
	Nouns(text string) ([]string, error)
}

// ProseNounExtractor tags the query with a statistical part-of-speech model
// and merges consecutive noun tokens into phrases, so "Acme Corp" surfaces as
// one candidate rather than two.
type ProseNounExtractor struct{}

// NewProseNounExtractor creates a new ProseNounExtractor instance
func NewProseNounExtractor() *ProseNounExtractor {
	return &ProseNounExtractor{}
}

// Nouns returns noun phrases in query order, deduplicated case-insensitively.
func (e *ProseNounExtractor) Nouns(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil, err
	}

	var phrases []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			phrases = append(phrases, strings.Join(current, " "))
			current = nil
		}
	}

	for _, tok := range doc.Tokens() {
		if isNounTag(tok.Tag) {
			current = append(current, tok.Text)
			continue
		}
		flush()
	}
	flush()

	seen := make(map[string]struct{}, len(phrases))
	unique := phrases[:0]
	for _, p := range phrases {
		key := strings.ToLower(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, p)
	}
	return unique, nil
}

// isNounTag matches the Penn Treebank noun tags: NN, NNS, NNP, NNPS.
func isNounTag(tag string) bool {
	return strings.HasPrefix(tag, "NN")
}
