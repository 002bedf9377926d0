package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

// TextExtractor turns a file on disk into plain text and metadata.
// Failures are reported with domain.ErrExtraction.
type TextExtractor interface {
	Parse(ctx context.Context, path string) (*domain.ParsedDocument, error)
}

// SummaryStore persists document results keyed by path.
// Failures are reported with domain.ErrPersistence.
type SummaryStore interface {
	UpsertSummary(ctx context.Context, path, summary string, keywords []string) error
	StoreInitialMetadata(ctx context.Context, path string, sizeBytes uint64) error
	GetByPath(ctx context.Context, path string) (*domain.DocumentRecord, error)
}

// MemoryProbe reports memory available to the pipeline.
type MemoryProbe interface {
	FreeSystemMemoryBytes() uint64
	ProcessHeapHeadroomBytes() uint64
	UsedSystemMemoryBytes() uint64
}

type Summarizer interface {
	Summarize(text string, length domain.SummaryLength) string
}

type KeywordExtractor interface {
	ExtractKeywords(text string) []string
}

// ProgressSink observes orchestrator state transitions. Implementations must not block.
type ProgressSink interface {
	Notify(event domain.ProgressEvent)
}

// PipelineMetrics records per-document processing metrics.
type PipelineMetrics interface {
	StartDocument()
	FinishDocument(outcome domain.ProcessingOutcome)
	ObserveGateDeferral()
}

// ObjectStorage stores downloaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (path string, size uint64, err error)
	Remove(ctx context.Context, key string) error
}

// Fetcher downloads a remote document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// MessageQueue publishes and consumes document paths awaiting processing.
type MessageQueue interface {
	PublishDocumentPath(ctx context.Context, path string) error
	SubscribeDocumentPaths(ctx context.Context, handler func(context.Context, string) error) error
}
