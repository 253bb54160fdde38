package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finca/internal/amqp"
	"finca/internal/auth"
	"finca/internal/backend"
	"finca/internal/cache"
	"finca/internal/config"
	"finca/internal/core"
	apphttp "finca/internal/http"
	applog "finca/internal/log"
	"finca/internal/metrics"
	"finca/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

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
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	}()

	checks := []apphttp.ReadinessCheck{{Name: "store", Check: store.Ready}}

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRecordsQueue, cfg.AMQPOrphansQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, record events disabled", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			checks = append(checks, apphttp.ReadinessCheck{
				Name:  "amqp",
				Check: func(context.Context) error { return amqpClient.Ping() },
			})
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - records will not be mirrored")
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL)
	provider := auth.NewProvider(jwtManager)
	unsubscribe := provider.OnSignedOut(func(u auth.User) {
		logger.Info("User signed out", applog.FieldUserID, u.ID)
	})
	defer unsubscribe()

	dashboards := cache.NewLRUCache[core.Dashboard](32, cfg.DashboardCacheTTL)
	cacheManager := cache.NewManager(logger.Logger.With(applog.FieldComponent, applog.ComponentCache))
	cacheManager.Register(dashboards)
	go cacheManager.Run(ctx, cfg.DashboardCacheTTL)

	ledger := services.NewLedgerService(services.LedgerDeps{
		Expenses:      store.Expenses,
		Contributions: store.Contributions,
		Blobs:         store.Blobs,
		Gate:          auth.NewGate(cfg.SignInURL),
		Publisher:     publisher,
		Cache:         dashboards,
		Metrics:       m,
		Logger:        logger,
		RecentLimit:   cfg.DashboardRecentLimit,
	})
	attachments := services.NewAttachmentService(ledger, store.Blobs)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:             ledger,
		Attachments:        attachments,
		Provider:           provider,
		Metrics:            m,
		Logger:             logger,
		Checks:             checks,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		logger.Info("Shutdown signal received", "signal", s.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
		cancel()
	}()

	logger.Info("Server starting",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"blobs", cfg.BlobBackend,
		"log_format", cfg.LogFormat)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped")
}
