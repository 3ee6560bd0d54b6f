// Package fuzzy ranks records by approximate string similarity. It is used
// to suggest "maybe you meant" results when an exact lookup finds nothing.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	phraseWeight     = 1.0
	tokenWeight      = 0.5
	similarityWeight = 0.3

	DefaultTopK       = 5
	DefaultSimilarity = 0.8
)

// Field names one searchable attribute of R and how to read it.
type Field[R any] struct {
	Name  string
	Value func(R) string
}

// Match is a ranked record. Index is the record's position in the input.
type Match[R any] struct {
	Record R
	Score  float64
	Index  int
}

type Options struct {
	TopK int
	// Similarity is the exclusive lower bound on normalized edit
	// similarity for a token pair to count.
	Similarity float64
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Similarity <= 0 {
		o.Similarity = DefaultSimilarity
	}
	return o
}

// Search ranks records against a normalized query using its own tokens.
func Search[R any](records []R, query string, fields []Field[R], opts Options) []Match[R] {
	return SearchTokens(records, query, strings.Fields(query), fields, opts)
}

// SearchTokens ranks records against phrase and an explicit token list,
// which may include expansions of the phrase's own tokens. Records scoring
// zero are dropped, equal scores keep input order, and at most TopK matches
// are returned. The input slice is never modified.
func SearchTokens[R any](records []R, phrase string, tokens []string, fields []Field[R], opts Options) []Match[R] {
	if len(records) == 0 || len(fields) == 0 {
		return nil
	}
	opts = opts.withDefaults()
	phrase = strings.ToLower(strings.TrimSpace(phrase))

	lowered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.ToLower(t); t != "" {
			lowered = append(lowered, t)
		}
	}

	matches := make([]Match[R], 0, len(records))
	for i, r := range records {
		var score float64
		for _, f := range fields {
			score += scoreField(fieldValue(f, r), phrase, lowered, opts.Similarity)
		}
		if score > 0 {
			matches = append(matches, Match[R]{Record: r, Score: score, Index: i})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}
	return matches
}

// Records unwraps matches in rank order.
func Records[R any](matches []Match[R]) []R {
	out := make([]R, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Record)
	}
	return out
}

func fieldValue[R any](f Field[R], r R) string {
	if f.Value == nil {
		return ""
	}
	return strings.ToLower(f.Value(r))
}

func scoreField(value, phrase string, tokens []string, threshold float64) float64 {
	if value == "" {
		return 0
	}
	if phrase != "" && strings.Contains(value, phrase) {
		return phraseWeight
	}

	var score float64
	var words []string
	for _, qt := range tokens {
		if strings.Contains(value, qt) {
			score += tokenWeight
			continue
		}
		if words == nil {
			words = splitWords(value)
		}
		for _, w := range words {
			if sim := Similarity(qt, w); sim > threshold {
				score += sim * similarityWeight
			}
		}
	}
	return score
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)), measured in
// runes. Two empty strings are not similar.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
