package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/resilience"
)

// DBProvider hands out the shared database handle. *Connector implements it.
type DBProvider interface {
	Acquire(ctx context.Context) (*sql.DB, error)
}

// DocumentRepository stores one row per document path.
type DocumentRepository struct {
	provider DBProvider
	executor *resilience.Executor
	now      func() time.Time
}

func NewDocumentRepository(provider DBProvider, executor *resilience.Executor) *DocumentRepository {
	return &DocumentRepository{
		provider: provider,
		executor: executor,
		now:      time.Now,
	}
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	db, err := r.provider.Acquire(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "acquire db", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent pipeline and worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS pdf_documents (
	path TEXT PRIMARY KEY,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	summary TEXT,
	keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	processed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pdf_documents_processed ON pdf_documents(processed);
CREATE INDEX IF NOT EXISTS idx_pdf_documents_created_at ON pdf_documents(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// UpsertSummary creates or replaces the result for path and marks it processed.
func (r *DocumentRepository) UpsertSummary(ctx context.Context, path, summary string, keywords []string) error {
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "marshal keywords", err)
	}
	now := r.now().UTC()

	err = r.exec(ctx, "postgres.upsert_summary", `
INSERT INTO pdf_documents (path, summary, keywords, processed, processed_at, created_at)
VALUES ($1, $2, $3, TRUE, $4, $4)
ON CONFLICT (path) DO UPDATE
SET summary = EXCLUDED.summary,
	keywords = EXCLUDED.keywords,
	processed = TRUE,
	processed_at = EXCLUDED.processed_at
`, path, summary, keywordsJSON, now)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "upsert summary", err)
	}
	return nil
}

// StoreInitialMetadata records a freshly downloaded document as unprocessed.
// An existing row keeps its result; only the size is refreshed.
func (r *DocumentRepository) StoreInitialMetadata(ctx context.Context, path string, sizeBytes uint64) error {
	err := r.exec(ctx, "postgres.store_initial_metadata", `
INSERT INTO pdf_documents (path, size_bytes, processed, created_at)
VALUES ($1, $2, FALSE, $3)
ON CONFLICT (path) DO UPDATE
SET size_bytes = EXCLUDED.size_bytes
`, path, int64(sizeBytes), r.now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "store initial metadata", err)
	}
	return nil
}

func (r *DocumentRepository) GetByPath(ctx context.Context, path string) (*domain.DocumentRecord, error) {
	db, err := r.provider.Acquire(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "acquire db", err)
	}
	row := db.QueryRowContext(ctx, `
SELECT path, size_bytes, summary, keywords, processed, processed_at, created_at
FROM pdf_documents
WHERE path = $1
`, path)

	var (
		rec         domain.DocumentRecord
		size        int64
		summary     sql.NullString
		keywordsRaw []byte
		processedAt sql.NullTime
	)
	err = row.Scan(&rec.Path, &size, &summary, &keywordsRaw, &rec.Processed, &processedAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("path %s", path))
		}
		return nil, domain.WrapError(domain.ErrPersistence, "scan document", err)
	}

	rec.SizeBytes = uint64(size)
	rec.Summary = summary.String
	rec.Keywords = []string{}
	if len(keywordsRaw) > 0 {
		if err := json.Unmarshal(keywordsRaw, &rec.Keywords); err != nil {
			return nil, domain.WrapError(domain.ErrPersistence, "unmarshal keywords", err)
		}
	}
	if processedAt.Valid {
		t := processedAt.Time
		rec.ProcessedAt = &t
	}
	return &rec, nil
}

func (r *DocumentRepository) exec(ctx context.Context, operation, query string, args ...any) error {
	call := func(callCtx context.Context) error {
		db, err := r.provider.Acquire(callCtx)
		if err != nil {
			return fmt.Errorf("acquire db: %w", err)
		}
		if _, err := db.ExecContext(callCtx, query, args...); err != nil {
			return err
		}
		return nil
	}
	if r.executor == nil {
		return call(ctx)
	}
	return r.executor.Execute(ctx, operation, call, classifyDBError)
}

var classifyDBError = resilience.TransientClassifier(func(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || pgconn.SafeToRetry(err) || pgconn.Timeout(err)
})
