package service

import (
	"context"
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/halcyon-ai/graphrag/internal/domain"
	"github.com/halcyon-ai/graphrag/internal/llm"
)

// Language detection on very short inputs is unreliable; below this many
// whitespace tokens the query is treated as English without detection, to
// avoid mistranslating short fragments.
const minDetectionTokens = 4

const translationSystemPrompt = `You are a translation engine. Translate the user message to English. Respond with the English translation only, no commentary.`

// NormalizedQuery is the result of language normalization.
type NormalizedQuery struct {
	// Language is the detected ISO 639-1 code of the original text.
	Language string
	// Text is the English text retrieval operates on.
	Text string
	// Uncertain is set when translation failed and Text is the untranslated
	// original.
	Uncertain bool
}

// LanguageNormalizer detects query language and translates non-English
// queries to English.
type LanguageNormalizer struct {
	detector lingua.LanguageDetector
	client   CompletionClient
	guard    *llm.Guard
}

// NewLanguageNormalizer creates a new LanguageNormalizer instance. Building
// the detector loads language models once; construct at process start.
func NewLanguageNormalizer(client CompletionClient, guard *llm.Guard) *LanguageNormalizer {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllSpokenLanguages().
		Build()
	return &LanguageNormalizer{detector: detector, client: client, guard: guard}
}

// Normalize detects the language of text and translates it to English when
// needed. Translation failures never drop the query: the original text is
// returned with Uncertain set, together with TranslationUnavailable so the
// caller can log the degradation.
func (n *LanguageNormalizer) Normalize(ctx context.Context, text string) (*NormalizedQuery, error) {
	trimmed := strings.TrimSpace(text)

	if len(strings.Fields(trimmed)) < minDetectionTokens {
		return &NormalizedQuery{Language: "en", Text: trimmed}, nil
	}

	lang, ok := n.detector.DetectLanguageOf(trimmed)
	if !ok {
		return &NormalizedQuery{Language: "en", Text: trimmed, Uncertain: true}, nil
	}
	code := strings.ToLower(lang.IsoCode639_1().String())
	if code == "en" {
		return &NormalizedQuery{Language: "en", Text: trimmed}, nil
	}

	var translated string
	err := n.guard.Do(ctx, func(callCtx context.Context) error {
		var callErr error
		translated, callErr = n.client.Complete(callCtx, translationSystemPrompt, trimmed)
		return callErr
	})
	translated = strings.TrimSpace(translated)
	if err != nil || translated == "" {
		return &NormalizedQuery{Language: code, Text: trimmed, Uncertain: true},
			domain.ErrTranslationUnavailable.WithCause(err)
	}

	return &NormalizedQuery{Language: code, Text: translated}, nil
}
