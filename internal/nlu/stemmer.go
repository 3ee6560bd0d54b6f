package nlu

import (
	"fmt"

	"github.com/kljensen/snowball"
)

// SnowballStemmer adapts the snowball library to the Stemmer interface.
type SnowballStemmer struct {
	language string
}

func NewSnowballStemmer(lang string) (*SnowballStemmer, error) {
	// Probe once so an unsupported language fails at startup, not per token.
	if _, err := snowball.Stem("test", lang, false); err != nil {
		return nil, fmt.Errorf("snowball stemmer for %q: %w", lang, err)
	}
	return &SnowballStemmer{language: lang}, nil
}

// Stem returns the token unchanged when snowball cannot handle it.
func (s *SnowballStemmer) Stem(token string) string {
	stemmed, err := snowball.Stem(token, s.language, false)
	if err != nil || stemmed == "" {
		return token
	}
	return stemmed
}
