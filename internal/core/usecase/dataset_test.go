package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

type fetcherFake struct {
	bodies map[string]string
	err    error
}

func (f *fetcherFake) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type datasetStorageFake struct {
	mu      sync.Mutex
	saved   map[string]string
	removed []string
}

func (f *datasetStorageFake) Save(_ context.Context, key string, data io.Reader) (string, uint64, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[key] = string(raw)
	return "/store/" + key, uint64(len(raw)), nil
}

func (f *datasetStorageFake) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	return nil
}

type metadataStoreFake struct {
	summaryStoreFake
	mu sync.Mutex
}

func (f *metadataStoreFake) StoreInitialMetadata(ctx context.Context, path string, sizeBytes uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaryStoreFake.StoreInitialMetadata(ctx, path, sizeBytes)
}

type processorFake struct {
	mu       sync.Mutex
	paths    []string
	failFor  map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *processorFake) ProcessDocument(_ context.Context, path string) domain.ProcessingOutcome {
	n := f.inFlight.Add(1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	f.inFlight.Add(-1)

	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()

	if f.failFor[path] {
		return domain.ProcessingOutcome{Path: path, State: domain.StateFailed, Attempts: 5, Err: errors.New("persist failed")}
	}
	return domain.ProcessingOutcome{Path: path, State: domain.StateSucceeded, Succeeded: true, Attempts: 1}
}

type queueFake struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (f *queueFake) PublishDocumentPath(_ context.Context, path string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, path)
	return nil
}

func (f *queueFake) SubscribeDocumentPaths(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func manifest(n int) ([]domain.DatasetEntry, map[string]string) {
	entries := make([]domain.DatasetEntry, 0, n)
	bodies := make(map[string]string, n)
	for i := 0; i < n; i++ {
		key := string(rune('a' + i))
		url := "https://example.org/" + key + ".pdf"
		entries = append(entries, domain.DatasetEntry{Key: key, URL: url})
		bodies[url] = "%PDF-" + key
	}
	return entries, bodies
}

func TestDatasetRunProcessesEveryEntry(t *testing.T) {
	entries, bodies := manifest(7)
	storage := &datasetStorageFake{}
	store := &metadataStoreFake{}
	processor := &processorFake{}
	uc := NewDatasetUseCase(&fetcherFake{bodies: bodies}, storage, store, processor, nil, DatasetOptions{Concurrency: 3})

	report := uc.Run(context.Background(), entries)
	if report.Downloaded != 7 || report.Processed != 7 || report.Failed != 0 || report.Skipped != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.RunID == "" || len(report.Outcomes) != 7 {
		t.Fatalf("expected run id and 7 outcomes, got %+v", report)
	}
	if peak := processor.peak.Load(); peak > 3 {
		t.Fatalf("expected at most 3 concurrent documents, got %d", peak)
	}
	if storage.saved["a.pdf"] != "%PDF-a" {
		t.Fatalf("expected a.pdf to be stored, got %v", storage.saved)
	}
	if size, ok := store.initial["/store/a.pdf"]; !ok || size != uint64(len("%PDF-a")) {
		t.Fatalf("expected initial metadata for /store/a.pdf, got %v", store.initial)
	}
	if len(storage.removed) != 0 {
		t.Fatalf("expected no removals without cleanup, got %v", storage.removed)
	}
}

func TestDatasetRunCountsFailuresAndCleansUpSuccesses(t *testing.T) {
	entries, bodies := manifest(3)
	delete(bodies, entries[2].URL)
	storage := &datasetStorageFake{}
	processor := &processorFake{failFor: map[string]bool{"/store/b.pdf": true}}
	uc := NewDatasetUseCase(&fetcherFake{bodies: bodies}, storage, &metadataStoreFake{}, processor, nil,
		DatasetOptions{Concurrency: 2, DeleteAfterProcess: true})

	report := uc.Run(context.Background(), entries)
	if report.Downloaded != 2 || report.Processed != 1 || report.Failed != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(storage.removed) != 1 || storage.removed[0] != "a.pdf" {
		t.Fatalf("expected only the processed document removed, got %v", storage.removed)
	}
}

func TestDatasetRunSkipsDuplicatesAndProcessedPaths(t *testing.T) {
	entries, bodies := manifest(2)
	entries = append(entries, domain.DatasetEntry{Key: "a", URL: entries[0].URL})
	processor := &processorFake{}
	uc := NewDatasetUseCase(&fetcherFake{bodies: bodies}, &datasetStorageFake{}, &metadataStoreFake{}, processor, nil, DatasetOptions{})

	first := uc.Run(context.Background(), entries)
	if first.Processed != 2 || first.Skipped != 1 {
		t.Fatalf("unexpected first report %+v", first)
	}

	second := uc.Run(context.Background(), entries[:2])
	if second.Processed != 0 || second.Skipped != 2 {
		t.Fatalf("expected already processed paths to be skipped, got %+v", second)
	}
	if len(processor.paths) != 2 {
		t.Fatalf("expected 2 processing calls overall, got %v", processor.paths)
	}
}

func TestDatasetRunRejectsEntryWithoutURL(t *testing.T) {
	uc := NewDatasetUseCase(&fetcherFake{}, &datasetStorageFake{}, &metadataStoreFake{}, &processorFake{}, nil, DatasetOptions{})

	report := uc.Run(context.Background(), []domain.DatasetEntry{{Key: "empty"}})
	if report.Failed != 1 || len(report.Outcomes) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !errors.Is(report.Outcomes[0].Err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", report.Outcomes[0].Err)
	}
}

func TestDatasetEnqueuePublishesStoredPaths(t *testing.T) {
	entries, bodies := manifest(3)
	queue := &queueFake{}
	processor := &processorFake{}
	uc := NewDatasetUseCase(&fetcherFake{bodies: bodies}, &datasetStorageFake{}, &metadataStoreFake{}, processor, queue, DatasetOptions{})

	report, err := uc.Enqueue(context.Background(), entries)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if report.Downloaded != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	sort.Strings(queue.published)
	want := []string{"/store/a.pdf", "/store/b.pdf", "/store/c.pdf"}
	for i := range want {
		if queue.published[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, queue.published)
		}
	}
	if len(processor.paths) != 0 {
		t.Fatalf("enqueue must not process in-process, got %v", processor.paths)
	}
}

func TestDatasetEnqueueJoinsPublishErrors(t *testing.T) {
	entries, bodies := manifest(2)
	queue := &queueFake{err: errors.New("nats: no responders")}
	uc := NewDatasetUseCase(&fetcherFake{bodies: bodies}, &datasetStorageFake{}, &metadataStoreFake{}, &processorFake{}, queue, DatasetOptions{})

	report, err := uc.Enqueue(context.Background(), entries)
	if err == nil || !strings.Contains(err.Error(), "no responders") {
		t.Fatalf("expected publish error, got %v", err)
	}
	if report.Failed != 2 {
		t.Fatalf("expected 2 failures, got %+v", report)
	}
}

func TestDatasetEnqueueRequiresQueue(t *testing.T) {
	uc := NewDatasetUseCase(&fetcherFake{}, &datasetStorageFake{}, &metadataStoreFake{}, &processorFake{}, nil, DatasetOptions{})
	if _, err := uc.Enqueue(context.Background(), nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestStorageKeyFor(t *testing.T) {
	cases := map[domain.DatasetEntry]string{
		{Key: "paper 1", URL: "https://x/y.pdf"}:   "paper_1.pdf",
		{Key: "report.PDF", URL: "https://x/y.pdf"}: "report.PDF",
		{Key: "../etc/passwd"}:                      "passwd.pdf",
	}
	for entry, want := range cases {
		if got := storageKeyFor(entry); got != want {
			t.Fatalf("%+v: expected %q, got %q", entry, want, got)
		}
	}

	generated := storageKeyFor(domain.DatasetEntry{URL: "https://x/files/thesis.pdf"})
	if !strings.HasSuffix(generated, "_thesis.pdf") {
		t.Fatalf("expected url basename in generated key, got %q", generated)
	}
}
