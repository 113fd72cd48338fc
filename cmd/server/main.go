// Package main is the entry point for the Fire Blue closing API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"fireblue/internal/config"
	"fireblue/internal/domain/closing"
	"fireblue/internal/domain/events"
	"fireblue/internal/domain/production"
	v1 "fireblue/internal/infrastructure/http/v1"
	"fireblue/internal/infrastructure/http/v1/handlers"
	"fireblue/internal/infrastructure/messaging/kafka"
	"fireblue/internal/infrastructure/metrics"
	"fireblue/internal/infrastructure/storage/postgres"
	"fireblue/internal/infrastructure/storage/postgres/closing_repo"
	"fireblue/internal/infrastructure/storage/postgres/production_repo"
	"fireblue/internal/infrastructure/tracing"
	"fireblue/pkg/logger"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Development(),
		Service:     cfg.Tracing.ServiceName,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting fireblue server", "env", cfg.App.Env, "timezone", cfg.App.Location.String())

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, serviceVersion)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database, cfg.App.Location))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	m := metrics.New()
	m.RegisterPoolStats(func() (total, idle, acquired int32) {
		s := pool.Stats()
		return s.TotalConns, s.IdleConns, s.AcquiredConns
	})

	// --- Events ---
	bus := events.NewLocalBus()
	bus.Subscribe(events.Wildcard, events.LogHandler(log.WithComponent("events")))
	var (
		publisher events.Publisher = bus
		broker    handlers.Pinger
	)
	if cfg.Kafka.Enabled() {
		kp := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Source:  cfg.Tracing.ServiceName,
		}, m)
		defer func() { _ = kp.Close() }()
		publisher = events.Fanout{publisher, kp}
		broker = kp
		log.Infow("kafka publisher enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	txManager := postgres.NewTxManager(pool)

	audit, err := postgres.NewAuditService(txManager, cfg.Audit.CompressThreshold)
	if err != nil {
		log.Fatalw("failed to initialize audit log", "error", err)
	}

	// --- Services ---
	closingService := closing.NewService(
		closing_repo.NewRepo(txManager),
		closing_repo.NewSource(txManager),
		txManager,
		closing.ServiceConfig{
			Publisher: publisher,
			Audit:     audit,
			Metrics:   m,
			Location:  cfg.App.Location,
		},
	)
	productionService := production.NewService(
		production_repo.NewTicketRepo(txManager),
		production_repo.NewMovementRepo(txManager),
		txManager,
		publisher,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:      log,
		Metrics:     m,
		DB:          pool,
		Broker:      broker,
		Closings:    closingService,
		Production:  productionService,
		Audit:       audit,
		Location:    cfg.App.Location,
		CORSOrigins: cfg.App.CORSOrigins,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     serviceVersion,
		Development: cfg.App.Development(),
	})

	server := v1.NewServer(":"+cfg.App.Port, router)

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnw("tracing shutdown failed", "error", err)
	}

	log.Info("server stopped")
}
