package nlu

import (
	"fmt"
	"math"

	"github.com/shubhsaxena/directory-assistant/internal/models"
)

// Heuristic confidence contributions.
const (
	entityConfidence = 0.4
	guessConfidence  = 0.3
	lengthConfidence = 0.3
	lengthMinTokens  = 2
)

// Extraction is the extractor's result. Entities always carries every
// category as a key.
type Extraction struct {
	Entities   models.EntityBag
	Guess      models.Intent
	HasGuess   bool
	Confidence float64
}

func emptyExtraction() Extraction {
	return Extraction{Entities: models.NewEntityBag(), Guess: models.IntentUnclassified}
}

type Extractor struct {
	lex *Lexicon
}

func NewExtractor(lex *Lexicon) *Extractor {
	return &Extractor{lex: lex}
}

// Extract scans a normalized query for date buckets, trigger words, lexicon
// concepts and context-word values. It never panics; an internal failure
// yields an empty extraction together with ErrExtractionFailed.
func (e *Extractor) Extract(query string) (ext Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			ext = emptyExtraction()
			err = fmt.Errorf("%w: %v", ErrExtractionFailed, r)
		}
	}()

	ext = emptyExtraction()
	tokens := Tokens(query)

	for _, p := range e.lex.Periods {
		if matchesForms(query, tokens, p.Forms) {
			ext.Entities.Add(models.EntityDates, p.Name)
		}
	}

	// First intent in priority order with a trigger hit wins.
	for _, intent := range models.IntentPriority {
		if matchesForms(query, tokens, e.lex.Triggers[intent]) {
			ext.Guess = intent
			ext.HasGuess = true
			break
		}
	}

	for _, cat := range models.AllEntityCategories {
		for _, c := range e.lex.Concepts[cat] {
			if matchesForms(query, tokens, c.Forms) {
				ext.Entities.Add(cat, c.Name)
			}
		}
	}

	// Only the single token after a context word is taken.
	for _, cat := range models.AllEntityCategories {
		words := e.lex.ContextWords[cat]
		if len(words) == 0 {
			continue
		}
		for i := 0; i < len(tokens)-1; i++ {
			if hasToken(words, tokens[i]) {
				ext.Entities.Add(cat, tokens[i+1])
			}
		}
	}

	if !ext.Entities.Empty() {
		ext.Confidence += entityConfidence
	}
	if ext.HasGuess {
		ext.Confidence += guessConfidence
	}
	if len(tokens) > lengthMinTokens {
		ext.Confidence += lengthConfidence
	}
	ext.Confidence = clamp(ext.Confidence)

	return ext, nil
}

func matchesForms(query string, tokens []string, forms []string) bool {
	for _, f := range forms {
		if formMatches(query, tokens, f) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
