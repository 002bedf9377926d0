package analysis

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
)

var aiVocabulary = []string{"artificial", "intelligence", "machine", "learning", "data", "science"}

func TestExtractKeywordsDomainVocabulary(t *testing.T) {
	text := "Artificial intelligence and machine learning are crucial fields in data science."
	got := ExtractKeywords(text, aiVocabulary)

	want := []string{"artificial", "intelligence", "machine", "learning", "data", "science"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractKeywordsNoMatches(t *testing.T) {
	got := ExtractKeywords("Hello world!", aiVocabulary)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}

func TestExtractKeywordsRanksByFrequency(t *testing.T) {
	text := "machine. data science, data! science data"
	got := ExtractKeywords(text, []string{"machine", "science", "data"})

	want := []string{"data", "science", "machine"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractKeywordsExcludesStopwordsInVocabulary(t *testing.T) {
	got := ExtractKeywords("The data is in the table", []string{"the", "data", "in", "table"})
	want := []string{"data", "table"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractKeywordsVocabularyIsCaseSensitive(t *testing.T) {
	got := ExtractKeywords("Data matters", []string{"Data"})
	if len(got) != 0 {
		t.Fatalf("expected upper-case vocabulary entry to never match, got %v", got)
	}
}

func TestExtractKeywordsCapsAtTen(t *testing.T) {
	vocab := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		vocab = append(vocab, fmt.Sprintf("term%d", i))
	}
	got := ExtractKeywords(strings.Join(vocab, " "), vocab)
	if len(got) != DefaultKeywordLimit {
		t.Fatalf("expected %d keywords, got %d", DefaultKeywordLimit, len(got))
	}
}

func TestExtractKeywordsSubsetOfVocabulary(t *testing.T) {
	text := "Neural networks learn data representations; data drives learning, and networks scale."
	vocab := []string{"networks", "data", "learning", "gpu"}
	allowed := toSet(vocab)

	got := ExtractKeywords(text, vocab)
	seen := make(map[string]bool, len(got))
	for _, kw := range got {
		if _, ok := allowed[kw]; !ok {
			t.Fatalf("keyword %q not in vocabulary", kw)
		}
		if IsStopword(kw) {
			t.Fatalf("keyword %q is a stopword", kw)
		}
		if seen[kw] {
			t.Fatalf("keyword %q repeated", kw)
		}
		seen[kw] = true
	}
}

func TestExtractKeywordsDeterministic(t *testing.T) {
	text := "data science and data engineering meet machine learning and science"
	vocab := []string{"data", "science", "engineering", "machine", "learning"}

	first := ExtractKeywords(text, vocab)
	second := ExtractKeywords(text, vocab)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output, got %v and %v", first, second)
	}
}

func TestScoreTermsSingleDocumentWeight(t *testing.T) {
	scores := ScoreTerms("data data science", []string{"data", "science"})
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %+v", scores)
	}
	idf := 1 - math.Ln2
	if scores[0].Term != "data" || math.Abs(scores[0].Weight-2*idf) > 1e-9 {
		t.Fatalf("unexpected data score %+v", scores[0])
	}
	if scores[1].Term != "science" || math.Abs(scores[1].Weight-idf) > 1e-9 {
		t.Fatalf("unexpected science score %+v", scores[1])
	}
}

func TestTokenizeWordsSplitsPunctuation(t *testing.T) {
	got := tokenizeWords("machine-learning, data_science! v2")
	want := []string{"machine", "learning", "data_science", "v2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestKeywordExtractorLimit(t *testing.T) {
	extractor := NewKeywordExtractor(aiVocabulary, 2)
	got := extractor.ExtractKeywords("data science data machine")
	want := []string{"data", "science"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
