package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"finca/internal/amqp"
	"finca/internal/backend"
	"finca/internal/config"
	"finca/internal/core"
	applog "finca/internal/log"
	"finca/internal/metrics"
	"finca/internal/worker"
)

// storeSource joins the two record stores the reconciler compares against.
type storeSource struct {
	*backend.BackendResult
}

func (s storeSource) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.Expenses.ListExpenses(ctx)
}

func (s storeSource) ListContributions(ctx context.Context) ([]core.Contribution, error) {
	return s.Contributions.ListContributions(ctx)
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentWorker,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)

	logger.Info("Starting finca-worker")

	if err := errors.Join(cfg.Validate(), cfg.ValidateWorker()); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	mirror, err := backend.NewMirror(ctx, backendCfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize sheet mirror", "error", err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRecordsQueue, cfg.AMQPOrphansQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.New(mirror, store.Blobs, metrics.New(), logger.Logger)

	// A memory store in this process never sees the server's records, so
	// reconciling against it would empty the sheet.
	var reconciler *worker.Reconciler
	if cfg.DataBackend == config.BackendSQLite && !cfg.SessionLocalContributions {
		reconciler = worker.NewReconciler(w, storeSource{store}, worker.DefaultReconcilerConfig())
		if err := reconciler.Start(ctx); err != nil {
			logger.Error("Failed to start reconciler", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("Skipping periodic reconciliation - store is not durable", "backend", cfg.DataBackend)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeRecordEvents(gctx, w.HandleRecordEvent)
	})
	g.Go(func() error {
		return amqpClient.ConsumeOrphanedBlobs(gctx, w.HandleOrphanedBlob)
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	consuming := true
	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-done:
		consuming = false
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down worker...")
	if reconciler != nil {
		if err := reconciler.Stop(shutdownCtx); err != nil {
			logger.Error("Failed to stop reconciler", "error", err)
		}
		logger.Info("Reconciler stopped", "passes", reconciler.Passes())
	}
	cancel()

	if consuming {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
			return
		}
	}
	logger.Info("Worker shutdown complete")
}
