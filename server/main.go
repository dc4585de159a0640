package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/krelinga/lesson-video-pipeline/internal"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/sirupsen/logrus"
)

func main() {
	log := internal.NewLogger("server")
	if err := run(log); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func run(log *logrus.Entry) error {
	// Create context that listens for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := internal.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg := internal.NewServerConfigFromEnv()

	pool, err := internal.NewDBPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	if err := internal.MigrateUp(ctx, pool, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Insert-only river client; jobs are worked by the worker binary.
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Workers: nil,
	})
	if err != nil {
		return fmt.Errorf("failed to create river client: %w", err)
	}

	catalog, err := internal.OpenCatalog(ctx, cfg.Catalog, pool)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}

	key, err := internal.LoadSigningKey(cfg.Access.PrivateKeyPath)
	if err != nil {
		return err
	}
	access, err := internal.NewAccessIssuer(cfg.Access, key)
	if err != nil {
		return err
	}

	awsCfg, err := internal.LoadAWSConfig(ctx)
	if err != nil {
		return err
	}
	uploads := internal.NewUploadURLIssuer(internal.NewS3Presigner(awsCfg), cfg.Upload, cfg.RawPrefix)

	validator, err := internal.NewEventValidator(ctx)
	if err != nil {
		return err
	}

	server := NewServer(ServerDeps{
		Inserter:   riverClient,
		Lessons:    catalog,
		Access:     access,
		Uploads:    uploads,
		Verifier:   internal.NewTokenVerifier(cfg.Auth),
		Validator:  validator,
		EventToken: cfg.EventToken,
		Log:        log,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start HTTP server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting HTTP server on port %d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Shutdown signal received, shutting down gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	log.Info("Server shutdown complete")
	return nil
}
