package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-digest/internal/bootstrap"
	"github.com/kirillkom/pdf-digest/internal/config"
	"github.com/kirillkom/pdf-digest/internal/core/domain"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/manifest"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/report"
)

func main() {
	cfg := config.Load()

	datasetPath := flag.String("dataset", cfg.DatasetPath, "dataset manifest (JSON or YAML)")
	reportPath := flag.String("report", cfg.ReportPath, "write an XLSX run report to this path")
	publish := flag.Bool("publish", false, "download and enqueue documents for workers instead of processing them")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "pdf-pipeline", WithQueue: *publish})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	logger := app.Logger
	slog.SetDefault(logger)

	if !cfg.WorkerMetricsDisabled && !*publish {
		srv := serveMetrics(app, cfg.WorkerMetricsPort)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var (
		runReport domain.RunReport
		runErr    error
	)
	switch {
	case flag.NArg() > 0:
		// Local files skip the manifest and go straight to processing.
		runReport = processLocal(ctx, app, flag.Args())
	default:
		entries, err := manifest.LoadDataset(*datasetPath)
		if err != nil {
			logger.Error("dataset_load_failed", "path", *datasetPath, "error", err)
			app.Close()
			os.Exit(1)
		}
		logger.Info("dataset_loaded", "path", *datasetPath, "entries", len(entries))
		if *publish {
			runReport, runErr = app.DatasetUC.Enqueue(ctx, entries)
		} else {
			runReport = app.DatasetUC.Run(ctx, entries)
		}
	}

	if runErr != nil {
		logger.Error("dataset_enqueue_failed", "error", runErr)
	}
	if *reportPath != "" {
		if err := report.WriteXLSX(*reportPath, runReport); err != nil {
			logger.Error("report_write_failed", "path", *reportPath, "error", err)
		} else {
			logger.Info("report_written", "path", *reportPath)
		}
	}

	logger.Info("pipeline_finished",
		"run_id", runReport.RunID,
		"downloaded", runReport.Downloaded,
		"processed", runReport.Processed,
		"failed", runReport.Failed,
		"skipped", runReport.Skipped,
		"total_ms", runReport.Elapsed.Milliseconds(),
	)
	if runErr != nil || runReport.Failed > 0 {
		app.Close()
		os.Exit(2)
	}
}

func processLocal(ctx context.Context, app *bootstrap.App, paths []string) domain.RunReport {
	started := time.Now()
	runReport := domain.RunReport{RunID: uuid.NewString()}
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		outcome := app.ProcessUC.ProcessDocument(ctx, path)
		runReport.Outcomes = append(runReport.Outcomes, outcome)
		if outcome.Succeeded {
			runReport.Processed++
		} else {
			runReport.Failed++
		}
	}
	runReport.Elapsed = time.Since(started)
	return runReport
}

func serveMetrics(app *bootstrap.App, port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Warn("metrics_server_failed", "error", err)
		}
	}()
	return srv
}
