package analysis

import (
	"sort"
	"strings"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

const (
	sentenceDelimiter = ". "

	// Sentences before leadSentences get leadBonus; openings usually carry the abstract.
	leadSentences = 5
	leadBonus     = 1.5
)

// Summarizer implements ports.Summarizer.
type Summarizer struct{}

func NewSummarizer() *Summarizer {
	return &Summarizer{}
}

func (Summarizer) Summarize(text string, length domain.SummaryLength) string {
	return Summarize(text, length)
}

// Summarize joins the highest scoring sentences of text, best first, and ends
// the result with a period. Empty text yields ".".
func Summarize(text string, length domain.SummaryLength) string {
	scored := ScoreSentences(text)

	n := length.SentenceCount()
	if n > len(scored) {
		n = len(scored)
	}
	selected := make([]string, 0, n)
	for _, s := range scored[:n] {
		selected = append(selected, s.Text)
	}
	return strings.Join(selected, sentenceDelimiter) + "."
}

// ScoreSentences splits text on ". " and scores each sentence by its count of
// non-stopword tokens, boosted for the opening sentences. Identical sentences
// collapse into one entry holding the score of the last occurrence at the
// position of the first. The result is sorted by score, ties in insertion order.
func ScoreSentences(text string) []domain.ScoredSentence {
	sentences := strings.Split(text, sentenceDelimiter)

	positions := make(map[string]int, len(sentences))
	scored := make([]domain.ScoredSentence, 0, len(sentences))
	for i, sentence := range sentences {
		score := float64(significantWords(sentence))
		if i < leadSentences {
			score *= leadBonus
		}

		if pos, ok := positions[sentence]; ok {
			scored[pos].Score = score
			continue
		}
		positions[sentence] = len(scored)
		scored = append(scored, domain.ScoredSentence{Text: sentence, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// significantWords counts space-separated tokens that are not stopwords.
// Empty tokens from repeated spaces count, as they are not stopwords either.
func significantWords(sentence string) int {
	count := 0
	for _, word := range strings.Split(sentence, " ") {
		if !IsStopword(strings.ToLower(word)) {
			count++
		}
	}
	return count
}
