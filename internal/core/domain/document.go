package domain

import (
	"time"
	"unicode/utf16"
)

// DocumentMetadata is what the text extractor knows about the source file.
type DocumentMetadata struct {
	Path      string            `json:"path"`
	SizeBytes uint64            `json:"size_bytes"`
	PageCount uint32            `json:"page_count"`
	Info      map[string]string `json:"info,omitempty"`
}

// ParsedDocument is produced once per input file and is not mutated afterwards.
type ParsedDocument struct {
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
}

type SummaryLength string

const (
	SummaryShort  SummaryLength = "short"
	SummaryMedium SummaryLength = "medium"
	SummaryLong   SummaryLength = "long"
)

const (
	ShortTextThreshold  = 1000
	MediumTextThreshold = 5000
)

// SentenceCount returns how many sentences a summary of this length keeps.
func (l SummaryLength) SentenceCount() int {
	switch l {
	case SummaryShort:
		return 3
	case SummaryMedium:
		return 5
	default:
		return 10
	}
}

// SummaryLengthFor picks the summary length from the extracted text size in
// UTF-16 code units. Characters outside the Basic Multilingual Plane count twice.
func SummaryLengthFor(text string) SummaryLength {
	n := TextLength(text)
	switch {
	case n < ShortTextThreshold:
		return SummaryShort
	case n < MediumTextThreshold:
		return SummaryMedium
	default:
		return SummaryLong
	}
}

// TextLength counts s in UTF-16 code units.
func TextLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

type ScoredSentence struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type TermScore struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// DocumentRecord is the persisted view of a document keyed by its path.
type DocumentRecord struct {
	Path        string     `json:"path"`
	SizeBytes   uint64     `json:"size_bytes"`
	Summary     string     `json:"summary,omitempty"`
	Keywords    []string   `json:"keywords"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
