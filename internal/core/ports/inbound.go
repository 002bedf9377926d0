package ports

import (
	"context"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

// DocumentProcessor drives one document through the pipeline. It never returns an error;
// the outcome carries success and the last failure.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, path string) domain.ProcessingOutcome
}

// DatasetRunner downloads a manifest of documents and processes or enqueues them.
type DatasetRunner interface {
	Run(ctx context.Context, entries []domain.DatasetEntry) domain.RunReport
	Enqueue(ctx context.Context, entries []domain.DatasetEntry) (domain.RunReport, error)
}
