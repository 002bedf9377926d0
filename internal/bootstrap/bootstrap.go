package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/pdf-digest/internal/config"
	"github.com/kirillkom/pdf-digest/internal/core/analysis"
	"github.com/kirillkom/pdf-digest/internal/core/ports"
	"github.com/kirillkom/pdf-digest/internal/core/usecase"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/fetch"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/manifest"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/repository/firestore"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/sysmem"
	"github.com/kirillkom/pdf-digest/internal/observability/logging"
	"github.com/kirillkom/pdf-digest/internal/observability/metrics"
)

type Options struct {
	Service string
	// WithQueue connects to NATS; needed by the worker and by enqueue runs.
	WithQueue bool
}

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.PipelineMetrics

	Store     ports.SummaryStore
	Queue     ports.MessageQueue
	ProcessUC *usecase.ProcessDocumentUseCase
	DatasetUC *usecase.DatasetUseCase

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := logging.NewJSONLogger(opts.Service, cfg.LogLevel)
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewPipelineMetrics(opts.Service),
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		RetryMaxBackoff:     cfg.RetryMaxBackoff,
		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerMinRequests:  uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio: cfg.BreakerFailureRatio,
		BreakerOpenTimeout:  cfg.BreakerOpenTimeout,
		Logger:              logger,
	})

	store, metadataStore, err := app.openStores(ctx, cfg, executor)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var queue *nats.Queue
	if opts.WithQueue {
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closeFns = append(app.closeFns, queue.Close)
	}

	vocabulary, err := manifest.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}

	progress := logging.NewProgressLogger(logger)
	app.ProcessUC = usecase.NewProcessDocumentUseCase(
		pdf.NewExtractor(logger),
		store,
		sysmem.NewProbe(logger),
		analysis.NewSummarizer(),
		analysis.NewKeywordExtractor(vocabulary, cfg.KeywordLimit),
		usecase.ProcessOptions{
			MaxAttempts:   cfg.ProcessMaxAttempts,
			InitialDelay:  cfg.ProcessInitialDelay,
			MinFreeMemory: cfg.MinFreeMemoryBytes,
			Sink:          progress,
			Metrics:       app.Metrics,
			Logger:        logger,
		},
	)

	fetcher := fetch.New(fetch.Options{
		Timeout:            cfg.DownloadTimeout,
		RequestsPerSecond:  cfg.DownloadRPS,
		InsecureSkipVerify: cfg.DownloadInsecureTLS,
		MaxBytes:           cfg.DownloadMaxBytes,
		ResilienceExecutor: executor,
	})

	var mq ports.MessageQueue
	if queue != nil {
		mq = queue
	}
	app.DatasetUC = usecase.NewDatasetUseCase(fetcher, storage, metadataStore, app.ProcessUC, mq, usecase.DatasetOptions{
		Concurrency:        cfg.WorkerConcurrency,
		DeleteAfterProcess: cfg.DeleteAfterProcess,
		Sink:               progress,
		Logger:             logger,
	})

	logger.Info("bootstrap_complete",
		"store_driver", cfg.StoreDriver,
		"vocabulary_terms", len(vocabulary),
		"max_attempts", cfg.ProcessMaxAttempts,
		"queue", opts.WithQueue,
	)
	return app, nil
}

// openStores returns two stores over one connection. The first serves the
// orchestrator and makes exactly one call per attempt, leaving retries to the
// attempt loop. The second records download metadata through the executor.
func (a *App) openStores(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.SummaryStore, ports.SummaryStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		connector := postgres.NewConnector(cfg.PostgresDSN, postgres.DefaultPoolOptions())
		a.closeFns = append(a.closeFns, func() { _ = connector.Close() })
		repo := postgres.NewDocumentRepository(connector, nil)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, postgres.NewDocumentRepository(connector, executor), nil
	case config.StoreDriverFirestore:
		connector := firestore.NewConnector(cfg.FirestoreProjectID)
		a.closeFns = append(a.closeFns, func() { _ = connector.Close() })
		return firestore.NewStore(connector, cfg.FirestoreCollection, nil),
			firestore.NewStore(connector, cfg.FirestoreCollection, executor), nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
