package nlu

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultStopWords covers Russian and English function words.
var DefaultStopWords = []string{
	"и", "в", "на", "с", "по", "для", "не", "ни", "но", "а", "или", "что", "как",
	"the", "a", "an", "in", "of", "on", "at", "to", "for", "with", "and", "or", "is",
}

// Stemmer reduces a single token to its stem.
type Stemmer interface {
	Stem(token string) string
}

type NormalizerConfig struct {
	Language      language.Tag
	PreserveChars string
	StopWords     []string
	Stemmer       Stemmer
}

func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		Language:      language.Russian,
		PreserveChars: "-",
		StopWords:     DefaultStopWords,
	}
}

// Normalizer turns raw user text into the canonical form every later stage
// works on. It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	lang      language.Tag
	preserve  map[rune]bool
	stopWords map[string]bool
	stemmer   Stemmer
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	preserve := make(map[rune]bool, len(cfg.PreserveChars))
	for _, r := range cfg.PreserveChars {
		preserve[r] = true
	}
	stops := make(map[string]bool, len(cfg.StopWords))
	for _, w := range cfg.StopWords {
		stops[w] = true
	}
	return &Normalizer{
		lang:      cfg.Language,
		preserve:  preserve,
		stopWords: stops,
		stemmer:   cfg.Stemmer,
	}
}

// Normalize never fails: malformed input degrades to the lower-cased,
// trimmed original.
func (n *Normalizer) Normalize(raw string) string {
	out, err := n.NormalizeStrict(raw)
	if err != nil {
		return strings.TrimSpace(strings.ToLower(raw))
	}
	return out
}

// NormalizeStrict is Normalize with the malformed-input error exposed.
func (n *Normalizer) NormalizeStrict(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", fmt.Errorf("%w: invalid utf-8", ErrMalformedInput)
	}
	if raw == "" {
		return "", nil
	}

	// cases.Caser keeps state between calls, so one is built per call.
	lowered := cases.Lower(n.lang).String(raw)

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || n.preserve[r] {
			return r
		}
		return ' '
	}, lowered)

	words := strings.Fields(cleaned)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if n.stopWords[w] {
			continue
		}
		if n.stemmer != nil {
			w = n.stemmer.Stem(w)
			if w == "" {
				continue
			}
		}
		tokens = append(tokens, w)
	}
	return strings.Join(tokens, " "), nil
}

// Tokens splits an already normalized string.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}
