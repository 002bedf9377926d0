package analysis

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

const DefaultKeywordLimit = 10

// KeywordExtractor implements ports.KeywordExtractor for a fixed domain vocabulary.
// Vocabulary entries must be lower-case: tokens are lower-cased before lookup.
type KeywordExtractor struct {
	vocabulary []string
	limit      int
}

func NewKeywordExtractor(vocabulary []string, limit int) *KeywordExtractor {
	if limit <= 0 || limit > DefaultKeywordLimit {
		limit = DefaultKeywordLimit
	}
	vocab := make([]string, len(vocabulary))
	copy(vocab, vocabulary)
	return &KeywordExtractor{vocabulary: vocab, limit: limit}
}

func (e *KeywordExtractor) ExtractKeywords(text string) []string {
	return topTerms(ScoreTerms(text, e.vocabulary), e.limit)
}

// ExtractKeywords returns up to ten distinct vocabulary terms of text, ordered by weight.
func ExtractKeywords(text string, vocabulary []string) []string {
	return topTerms(ScoreTerms(text, vocabulary), DefaultKeywordLimit)
}

// ScoreTerms weights every token of text that is not a stopword and appears in
// vocabulary. Weights are tf-idf over a corpus holding only text itself, so the
// idf factor is the same for every term and the ranking follows term frequency.
// Ties keep first-occurrence order.
func ScoreTerms(text string, vocabulary []string) []domain.TermScore {
	allowed := toSet(vocabulary)
	tokens := tokenizeWords(strings.ToLower(text))

	positions := make(map[string]int, len(tokens))
	terms := make([]string, 0, len(tokens))
	freq := make(map[string]int, len(tokens))
	for _, token := range tokens {
		if IsStopword(token) {
			continue
		}
		if _, ok := allowed[token]; !ok {
			continue
		}
		if _, seen := positions[token]; !seen {
			positions[token] = len(terms)
			terms = append(terms, token)
		}
		freq[token]++
	}

	idf := inverseDocumentFrequency(1, 1)
	scores := make([]domain.TermScore, 0, len(terms))
	for _, term := range terms {
		scores = append(scores, domain.TermScore{
			Term:   term,
			Weight: float64(freq[term]) * idf,
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Weight > scores[j].Weight
	})
	return scores
}

// inverseDocumentFrequency uses the smoothed form 1 + ln(N / (1 + df)).
func inverseDocumentFrequency(documents, documentsWithTerm int) float64 {
	return 1 + math.Log(float64(documents)/float64(1+documentsWithTerm))
}

func topTerms(scores []domain.TermScore, limit int) []string {
	if limit > len(scores) {
		limit = len(scores)
	}
	out := make([]string, 0, limit)
	for _, s := range scores[:limit] {
		out = append(out, s.Term)
	}
	return out
}

// tokenizeWords splits on every rune that is not a letter, digit or underscore.
func tokenizeWords(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 64)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
