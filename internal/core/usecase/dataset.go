package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
	"github.com/kirillkom/pdf-digest/internal/core/ports"
)

const DefaultDatasetConcurrency = 3

type DatasetOptions struct {
	Concurrency        int
	DeleteAfterProcess bool

	Sink   ports.ProgressSink
	Logger *slog.Logger
}

type DatasetUseCase struct {
	fetcher   ports.Fetcher
	storage   ports.ObjectStorage
	store     ports.SummaryStore
	processor ports.DocumentProcessor
	queue     ports.MessageQueue
	opts      DatasetOptions

	mu        sync.Mutex
	processed map[string]struct{}
	now       func() time.Time
}

// NewDatasetUseCase wires a dataset runner. queue may be nil when Enqueue is not used.
func NewDatasetUseCase(
	fetcher ports.Fetcher,
	storage ports.ObjectStorage,
	store ports.SummaryStore,
	processor ports.DocumentProcessor,
	queue ports.MessageQueue,
	opts DatasetOptions,
) *DatasetUseCase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultDatasetConcurrency
	}
	if opts.Sink == nil {
		opts.Sink = noopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &DatasetUseCase{
		fetcher:   fetcher,
		storage:   storage,
		store:     store,
		processor: processor,
		queue:     queue,
		opts:      opts,
		processed: make(map[string]struct{}),
		now:       time.Now,
	}
}

type stagedDocument struct {
	key  string
	path string
	size uint64
}

type entryResult struct {
	outcome    domain.ProcessingOutcome
	downloaded bool
	skipped    bool
}

// Run downloads every entry and processes it, at most Concurrency documents at
// a time. Entries whose storage key repeats within the manifest, or whose path
// was already processed by this runner, are skipped.
func (uc *DatasetUseCase) Run(ctx context.Context, entries []domain.DatasetEntry) domain.RunReport {
	runID := uuid.NewString()
	logger := uc.opts.Logger.With("run_id", runID)
	start := uc.now()
	logger.Info("dataset_run_started", "entries", len(entries), "concurrency", uc.opts.Concurrency)

	results := make([]entryResult, len(entries))
	keys := make(map[string]struct{}, len(entries))

	var g errgroup.Group
	g.SetLimit(uc.opts.Concurrency)
	for i, entry := range entries {
		key := storageKeyFor(entry)
		if _, dup := keys[key]; dup {
			results[i] = entryResult{skipped: true, outcome: domain.ProcessingOutcome{Path: key}}
			logger.Warn("dataset_entry_duplicate", "key", entry.Key, "url", entry.URL)
			continue
		}
		keys[key] = struct{}{}

		g.Go(func() error {
			results[i] = uc.runEntry(ctx, logger, entry, key)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.RunReport{
		RunID:    runID,
		Outcomes: make([]domain.ProcessingOutcome, 0, len(entries)),
	}
	for _, res := range results {
		if res.downloaded {
			report.Downloaded++
		}
		switch {
		case res.skipped:
			report.Skipped++
			continue
		case res.outcome.Succeeded:
			report.Processed++
		default:
			report.Failed++
		}
		report.Outcomes = append(report.Outcomes, res.outcome)
	}
	report.Elapsed = uc.now().Sub(start)

	logger.Info("dataset_run_completed",
		"downloaded", report.Downloaded,
		"processed", report.Processed,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"total_ms", report.Elapsed.Milliseconds(),
	)
	return report
}

func (uc *DatasetUseCase) runEntry(ctx context.Context, logger *slog.Logger, entry domain.DatasetEntry, key string) entryResult {
	staged, err := uc.stage(ctx, logger, entry, key)
	if err != nil {
		logger.Error("dataset_download_failed", "key", entry.Key, "url", entry.URL, "error", err)
		uc.notify("download_failed", key, domain.StateFailed)
		return entryResult{outcome: domain.ProcessingOutcome{
			Path:     key,
			Keywords: []string{},
			State:    domain.StateFailed,
			Err:      err,
		}}
	}

	if uc.alreadyProcessed(staged.path) {
		logger.Info("dataset_entry_already_processed", "path", staged.path)
		return entryResult{downloaded: true, skipped: true}
	}

	outcome := uc.processor.ProcessDocument(ctx, staged.path)
	if outcome.Succeeded {
		uc.markProcessed(staged.path)
		if uc.opts.DeleteAfterProcess {
			if err := uc.storage.Remove(ctx, staged.key); err != nil {
				logger.Warn("dataset_cleanup_failed", "path", staged.path, "error", err)
			}
		}
	}
	return entryResult{outcome: outcome, downloaded: true}
}

// stage downloads entry into object storage and records its initial metadata.
// A metadata failure is logged and does not stop processing.
func (uc *DatasetUseCase) stage(ctx context.Context, logger *slog.Logger, entry domain.DatasetEntry, key string) (stagedDocument, error) {
	if strings.TrimSpace(entry.URL) == "" {
		return stagedDocument{}, domain.WrapError(domain.ErrInvalidInput, "stage document", fmt.Errorf("entry %q has no url", entry.Key))
	}

	body, err := uc.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		return stagedDocument{}, fmt.Errorf("fetch %s: %w", entry.URL, err)
	}
	defer body.Close()

	storedPath, size, err := uc.storage.Save(ctx, key, body)
	if err != nil {
		return stagedDocument{}, fmt.Errorf("save to object storage: %w", err)
	}
	uc.notify("downloaded", storedPath, domain.StatePending)
	logger.Info("dataset_document_downloaded", "key", entry.Key, "path", storedPath, "size_bytes", size)

	if err := uc.store.StoreInitialMetadata(ctx, storedPath, size); err != nil {
		logger.Warn("initial_metadata_failed", "path", storedPath, "error", err)
	}
	return stagedDocument{key: key, path: storedPath, size: size}, nil
}

// Enqueue downloads every entry and publishes its stored path for queue workers
// instead of processing in-process.
func (uc *DatasetUseCase) Enqueue(ctx context.Context, entries []domain.DatasetEntry) (domain.RunReport, error) {
	if uc.queue == nil {
		return domain.RunReport{}, domain.WrapError(domain.ErrInvalidInput, "enqueue dataset", errors.New("message queue is not configured"))
	}

	runID := uuid.NewString()
	logger := uc.opts.Logger.With("run_id", runID)
	start := uc.now()

	var (
		mu        sync.Mutex
		published int
		errs      []error
	)
	var g errgroup.Group
	g.SetLimit(uc.opts.Concurrency)
	for _, entry := range entries {
		key := storageKeyFor(entry)
		g.Go(func() error {
			staged, err := uc.stage(ctx, logger, entry, key)
			if err == nil {
				err = uc.queue.PublishDocumentPath(ctx, staged.path)
				if err != nil {
					err = fmt.Errorf("publish %s: %w", staged.path, err)
				}
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			published++
			return nil
		})
	}
	_ = g.Wait()

	report := domain.RunReport{
		RunID:      runID,
		Downloaded: published,
		Failed:     len(errs),
		Elapsed:    uc.now().Sub(start),
	}
	logger.Info("dataset_enqueued", "published", published, "failed", len(errs), "total_ms", report.Elapsed.Milliseconds())
	return report, errors.Join(errs...)
}

func (uc *DatasetUseCase) alreadyProcessed(path string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	_, ok := uc.processed[path]
	return ok
}

func (uc *DatasetUseCase) markProcessed(path string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.processed[path] = struct{}{}
}

func (uc *DatasetUseCase) notify(event, path string, state domain.ProcessingState) {
	uc.opts.Sink.Notify(domain.ProgressEvent{
		Event:     event,
		Path:      path,
		State:     state,
		Timestamp: uc.now().UTC(),
	})
}

// storageKeyFor names the local copy after the manifest key, or after the URL
// basename behind a random prefix when the key is empty.
func storageKeyFor(entry domain.DatasetEntry) string {
	name := entry.Key
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("%s_%s", uuid.NewString(), path.Base(entry.URL))
	}
	name = sanitizeFilename(name)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "document"
	}
	return base
}
