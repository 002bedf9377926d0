package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/pdf-digest/internal/bootstrap"
	"github.com/kirillkom/pdf-digest/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "pdf-worker", WithQueue: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	logger := app.Logger
	slog.SetDefault(logger)

	var metricsServer *http.Server
	if !cfg.WorkerMetricsDisabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.Metrics.Handler())
		metricsServer = &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics_listening", "port", cfg.WorkerMetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics_server_failed", "error", err)
			}
		}()
	}

	// Documents in flight outlive the signal by up to ShutdownTimeout.
	processCtx, cancelProcessing := context.WithCancel(context.Background())
	defer cancelProcessing()

	var workers errgroup.Group
	workers.SetLimit(max(cfg.WorkerConcurrency, 1))

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "concurrency", cfg.WorkerConcurrency)
	err = app.Queue.SubscribeDocumentPaths(ctx, func(_ context.Context, path string) error {
		workers.Go(func() error {
			outcome := app.ProcessUC.ProcessDocument(processCtx, path)
			if outcome.Succeeded && cfg.DeleteAfterProcess {
				if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
					logger.Warn("worker_cleanup_failed", "path", path, "error", err)
				}
			}
			return nil
		})
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	done := make(chan struct{})
	go func() {
		_ = workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("worker_shutdown_timeout", "timeout_ms", cfg.ShutdownTimeout.Milliseconds())
		cancelProcessing()
		<-done
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics_shutdown_failed", "error", err)
		}
	}
	logger.Info("worker_stopped")
}
