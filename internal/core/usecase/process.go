package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
	"github.com/kirillkom/pdf-digest/internal/core/ports"
)

const (
	DefaultMaxAttempts   = 5
	DefaultInitialDelay  = 5 * time.Second
	DefaultMinFreeMemory = uint64(10 * 1024 * 1024)
)

type ProcessOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// MinFreeMemory is the system memory floor; the heap floor is half of it.
	MinFreeMemory uint64

	Sink    ports.ProgressSink
	Metrics ports.PipelineMetrics
	Logger  *slog.Logger
}

func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{
		MaxAttempts:   DefaultMaxAttempts,
		InitialDelay:  DefaultInitialDelay,
		MinFreeMemory: DefaultMinFreeMemory,
	}
}

func (o ProcessOptions) normalize() ProcessOptions {
	out := o
	def := DefaultProcessOptions()
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialDelay < 0 {
		out.InitialDelay = def.InitialDelay
	}
	if out.MinFreeMemory == 0 {
		out.MinFreeMemory = def.MinFreeMemory
	}
	if out.Sink == nil {
		out.Sink = noopSink{}
	}
	if out.Metrics == nil {
		out.Metrics = noopMetrics{}
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

type ProcessDocumentUseCase struct {
	extractor  ports.TextExtractor
	store      ports.SummaryStore
	probe      ports.MemoryProbe
	summarizer ports.Summarizer
	keywords   ports.KeywordExtractor
	opts       ProcessOptions

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

func NewProcessDocumentUseCase(
	extractor ports.TextExtractor,
	store ports.SummaryStore,
	probe ports.MemoryProbe,
	summarizer ports.Summarizer,
	keywords ports.KeywordExtractor,
	opts ProcessOptions,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		extractor:  extractor,
		store:      store,
		probe:      probe,
		summarizer: summarizer,
		keywords:   keywords,
		opts:       opts.normalize(),
		sleep:      sleepContext,
		now:        time.Now,
	}
}

// ProcessDocument runs the pipeline with the configured attempt budget and delay.
func (uc *ProcessDocumentUseCase) ProcessDocument(ctx context.Context, path string) domain.ProcessingOutcome {
	return uc.ProcessDocumentWithPolicy(ctx, path, uc.opts.MaxAttempts, uc.opts.InitialDelay)
}

// ProcessDocumentWithPolicy drives path through parse, summarize, extract and
// persist. Every loop iteration consumes one attempt: either a memory-gated wait
// (followed by a doubled delay) or a processing try (retried without delay on
// failure). The final attempt skips the memory gate. Failures are logged and
// reported in the outcome, never returned.
func (uc *ProcessDocumentUseCase) ProcessDocumentWithPolicy(
	ctx context.Context,
	path string,
	maxAttempts int,
	initialDelay time.Duration,
) domain.ProcessingOutcome {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := uc.opts.Logger.With("path", path)
	start := uc.now()
	usedBefore := uc.probe.UsedSystemMemoryBytes()

	outcome := domain.ProcessingOutcome{
		Path:     path,
		Keywords: []string{},
		State:    domain.StatePending,
	}
	uc.opts.Metrics.StartDocument()
	uc.emit("queued", path, domain.StatePending, 0)

	delay := initialDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			outcome.Err = err
			logger.Warn("document_cancelled", "attempt", attempt, "error", err)
			break
		}
		outcome.Attempts = attempt
		finalAttempt := attempt == maxAttempts

		if !finalAttempt && !uc.memoryAvailable() {
			outcome.State = domain.StateMemoryGated
			outcome.GateDeferrals++
			uc.opts.Metrics.ObserveGateDeferral()
			uc.emit("memory_gated", path, domain.StateMemoryGated, attempt)
			logger.Warn("memory_gate_deferred",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"delay_ms", delay.Milliseconds(),
				"error", domain.ErrResourceExhausted,
			)
			if err := uc.sleep(ctx, delay); err != nil {
				outcome.Err = err
				logger.Warn("document_cancelled", "attempt", attempt, "error", err)
				break
			}
			delay = doubleDelay(delay)
			continue
		}

		summary, keywords, err := uc.runAttempt(ctx, path, attempt)
		if err == nil {
			outcome.Summary = summary
			outcome.Keywords = keywords
			outcome.Succeeded = true
			outcome.Err = nil
			break
		}
		outcome.Err = err
		logger.Error("document_attempt_failed",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)
	}

	outcome.Elapsed = uc.now().Sub(start)
	outcome.MemoryDelta = int64(uc.probe.UsedSystemMemoryBytes()) - int64(usedBefore)

	if outcome.Succeeded {
		outcome.State = domain.StateSucceeded
		uc.emit("processed", path, domain.StateSucceeded, outcome.Attempts)
		logger.Info("document_processed",
			"attempts", outcome.Attempts,
			"elapsed_ms", float64(outcome.Elapsed.Microseconds())/1000.0,
			"memory_used_mb", float64(uc.probe.UsedSystemMemoryBytes())/(1024*1024),
			"memory_delta_bytes", outcome.MemoryDelta,
		)
	} else {
		outcome.State = domain.StateFailed
		uc.emit("failed", path, domain.StateFailed, outcome.Attempts)
		logger.Error("document_failed",
			"attempts", outcome.Attempts,
			"max_attempts", maxAttempts,
			"elapsed_ms", float64(outcome.Elapsed.Microseconds())/1000.0,
			"error", outcome.Err,
		)
	}
	uc.opts.Metrics.FinishDocument(outcome)
	return outcome
}

func (uc *ProcessDocumentUseCase) runAttempt(ctx context.Context, path string, attempt int) (summary string, keywords []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("attempt %d panicked: %v", attempt, r)
		}
	}()

	uc.emit("parsing", path, domain.StateParsing, attempt)
	doc, err := uc.parse(ctx, path)
	if err != nil {
		return "", nil, err
	}

	uc.emit("summarizing", path, domain.StateSummarizing, attempt)
	summary = uc.summarizer.Summarize(doc.Text, domain.SummaryLengthFor(doc.Text))

	uc.emit("extracting", path, domain.StateExtracting, attempt)
	keywords = uc.keywords.ExtractKeywords(doc.Text)

	uc.emit("persisting", path, domain.StatePersisting, attempt)
	storePath := doc.Metadata.Path
	if storePath == "" {
		storePath = path
	}
	if err := uc.persist(ctx, storePath, summary, keywords); err != nil {
		return "", nil, err
	}
	return summary, keywords, nil
}

func (uc *ProcessDocumentUseCase) parse(ctx context.Context, path string) (*domain.ParsedDocument, error) {
	doc, err := uc.extractor.Parse(ctx, path)
	if err != nil {
		if domain.IsKind(err, domain.ErrExtraction) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrExtraction, "parse document", err)
	}
	if doc == nil {
		return nil, domain.WrapError(domain.ErrExtraction, "parse document", fmt.Errorf("no document returned for %s", path))
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) persist(ctx context.Context, path, summary string, keywords []string) error {
	if err := uc.store.UpsertSummary(ctx, path, summary, keywords); err != nil {
		if domain.IsKind(err, domain.ErrPersistence) {
			return err
		}
		return domain.WrapError(domain.ErrPersistence, "upsert summary", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) memoryAvailable() bool {
	floor := uc.opts.MinFreeMemory
	free := uc.probe.FreeSystemMemoryBytes()
	headroom := uc.probe.ProcessHeapHeadroomBytes()
	uc.opts.Logger.Debug("memory_probe",
		"free_system_bytes", free,
		"heap_headroom_bytes", headroom,
	)
	return free > floor && headroom > floor/2
}

func (uc *ProcessDocumentUseCase) emit(event, path string, state domain.ProcessingState, attempt int) {
	uc.opts.Sink.Notify(domain.ProgressEvent{
		Event:     event,
		Path:      path,
		State:     state,
		Attempt:   attempt,
		Timestamp: uc.now().UTC(),
	})
}

// doubleDelay doubles d, saturating at the largest representable duration.
func doubleDelay(d time.Duration) time.Duration {
	if d > math.MaxInt64/2 {
		return math.MaxInt64
	}
	return d * 2
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopSink struct{}

func (noopSink) Notify(domain.ProgressEvent) {}

type noopMetrics struct{}

func (noopMetrics) StartDocument()                           {}
func (noopMetrics) FinishDocument(domain.ProcessingOutcome) {}
func (noopMetrics) ObserveGateDeferral()                     {}
