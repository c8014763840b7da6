// Package tokens provides the single tokenization rule used for the chunk
// length band, the extraction pre-flight ceiling and the context token budget.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// Counter counts language-model tokens. Loading the encoding is deferred to
// the first call; if it cannot be loaded, Count falls back to a character
// heuristic so ingestion keeps working offline.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewCounter() *Counter {
	return &Counter{}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		// ~4 characters per token is the usual BPE approximation.
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
