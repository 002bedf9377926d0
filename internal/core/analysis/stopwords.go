// Package analysis holds the text scoring used by the pipeline: extractive
// sentence summaries and vocabulary-restricted keyword ranking.
package analysis

var stopwords = toSet([]string{
	"the", "is", "in", "and", "a", "an", "of", "to", "it", "with",
	"for", "on", "that", "this", "as", "by", "at", "from", "or", "but",
	"not", "be", "are", "was", "were", "will", "has", "have", "had", "if",
	"then", "so", "such", "can", "all", "any", "do", "does", "did", "no",
	"yes", "you", "we", "they", "he", "she", "him", "her", "them", "our",
	"their", "its", "my", "your", "me",
})

// IsStopword reports whether word is in the stopword set. Lookups are exact;
// callers lower-case tokens first.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

func toSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
