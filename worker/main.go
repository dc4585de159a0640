package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/sirupsen/logrus"
)

func main() {
	log := internal.NewLogger("worker")
	if err := run(log); err != nil {
		log.WithError(err).Fatal("worker error")
	}
}

func run(log *logrus.Entry) error {
	// Create context that listens for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := internal.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg := internal.NewWorkerConfigFromEnv()

	pool, err := internal.NewDBPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	if err := internal.MigrateUp(ctx, pool, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	catalog, err := internal.OpenCatalog(ctx, cfg.Catalog, pool)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}

	awsCfg, err := internal.LoadAWSConfig(ctx)
	if err != nil {
		return err
	}
	submitter := internal.NewMediaConvertClient(awsCfg, cfg.Transcode.Endpoint)
	orchestrator, err := internal.NewOrchestrator(submitter, cfg.Transcode, cfg.RawPrefix, log)
	if err != nil {
		return err
	}

	reconcileWorker := &ReconcileWorker{
		Reconciler: internal.NewReconciler(catalog, log),
		WebhookURL: cfg.WebhookURL,
		Log:        log,
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &IngestWorker{Orchestrator: orchestrator})
	river.AddWorker(workers, reconcileWorker)
	river.AddWorker(workers, &WebhookWorker{})

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 4},
		},
		Workers:      workers,
		ErrorHandler: &ErrorHandler{Log: log},
	})
	if err != nil {
		return fmt.Errorf("failed to create river client: %w", err)
	}
	reconcileWorker.Inserter = riverClient

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start river client: %w", err)
	}

	log.Info("Worker started, waiting for jobs...")

	<-ctx.Done()
	log.Info("Shutdown signal received, shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := riverClient.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("river client shutdown error: %w", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown error: %w", err)
	}

	log.Info("Worker shutdown complete")
	return nil
}

func metricsRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
