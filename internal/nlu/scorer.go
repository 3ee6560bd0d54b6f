package nlu

import (
	"strings"
	"unicode/utf8"

	"github.com/shubhsaxena/directory-assistant/internal/models"
)

// Rule weights. A full match and a partial match of the same entry are
// mutually exclusive.
const (
	keywordExact   = 0.4
	keywordPartial = 0.2
	synonymExact   = 0.3
	synonymPartial = 0.15
	exampleExact   = 0.6
	exampleToken   = 0.3
	categoryBonus  = 1.0
)

// Scorer computes weighted lexical scores of a normalized query against
// every intent's pattern. Scores are raw sums, not clamped.
type Scorer struct {
	lex *Lexicon
}

func NewScorer(lex *Lexicon) *Scorer {
	return &Scorer{lex: lex}
}

// Score returns the raw rule score of query for one intent. Unknown intents
// and IntentUnclassified score zero.
func (s *Scorer) Score(query string, intent models.Intent) float64 {
	p, ok := s.lex.Patterns[intent]
	if !ok {
		return 0
	}
	tokens := Tokens(query)
	var score float64

	for _, kw := range p.Keywords {
		if strings.Contains(query, kw) {
			score += keywordExact
		} else if prefixMatch(tokens, kw) {
			score += keywordPartial
		}
	}

	for _, syn := range p.Synonyms {
		if strings.Contains(query, syn) {
			score += synonymExact
		} else if prefixMatch(tokens, syn) {
			score += synonymPartial
		}
	}

	for _, ex := range p.Examples {
		if strings.Contains(query, ex) {
			score += exampleExact
		} else if tokenInside(tokens, ex) {
			score += exampleToken
		}
	}

	for _, b := range s.lex.Bonuses[intent] {
		if hasToken(tokens, b) {
			score += categoryBonus
			break
		}
	}

	return score
}

// ScoreAll scores every classifiable intent, in priority order.
func (s *Scorer) ScoreAll(query string) []models.ScoredIntent {
	scores := make([]models.ScoredIntent, 0, len(models.IntentPriority))
	for _, intent := range models.IntentPriority {
		scores = append(scores, models.ScoredIntent{Intent: intent, Score: s.Score(query, intent)})
	}
	return scores
}

// Best picks the strict maximum. Because scores arrive in priority order and
// only a strictly greater score replaces the current best, exact ties go to
// the higher priority intent.
func Best(scores []models.ScoredIntent) models.ScoredIntent {
	if len(scores) == 0 {
		return models.ScoredIntent{Intent: models.IntentUnclassified}
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best
}

// Tokens shorter than this earn no partial credit.
const minPartialRunes = 2

func prefixMatch(tokens []string, entry string) bool {
	for _, t := range tokens {
		if utf8.RuneCountInString(t) < minPartialRunes {
			continue
		}
		if strings.HasPrefix(t, entry) || strings.HasPrefix(entry, t) {
			return true
		}
	}
	return false
}

func tokenInside(tokens []string, text string) bool {
	for _, t := range tokens {
		if utf8.RuneCountInString(t) < minPartialRunes {
			continue
		}
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func hasToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}
