package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/panjf2000/ants/v2"

	"github.com/finrecon/bank-reconciliation/internal/api"
	"github.com/finrecon/bank-reconciliation/internal/api/service"
	"github.com/finrecon/bank-reconciliation/internal/config"
	"github.com/finrecon/bank-reconciliation/internal/data/mongo"
	"github.com/finrecon/bank-reconciliation/internal/data/postgres"
	"github.com/finrecon/bank-reconciliation/internal/events"
	"github.com/finrecon/bank-reconciliation/internal/logger"
	"github.com/finrecon/bank-reconciliation/internal/matching"
	"github.com/finrecon/bank-reconciliation/internal/platform/messaging/producers"
	"github.com/finrecon/bank-reconciliation/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("reconciliation_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers for outbox publishing
	eventProducer, err := producers.NewReconciliationEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize reconciliation event producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	lineRepo := postgres.NewBankLineRepository(log, postgresDB)
	matchRepo := postgres.NewMatchRepository(log, postgresDB)
	ruleRepo := postgres.NewRuleRepository(log, postgresDB, cfg.Matching)
	recordProvider := postgres.NewRecordProvider(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	runRepo := mongo.NewRunRepository(log, mongoDB.Database())

	// Initialize the matching engine
	ledger := matching.NewMatchLedger(postgresDB, lineRepo, matchRepo, outboxRepo, log)
	autoMatcher := matching.NewAutoMatcher(ledger, log)

	// Worker pool for concurrent auto-match partitions
	workerPool, err := ants.NewPool(cfg.WorkerPool.Size)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize services
	reconciliationService := service.NewReconciliationService(log, lineRepo, matchRepo, recordProvider, ruleRepo, ledger)
	autoMatchService := service.NewAutoMatchService(log, lineRepo, recordProvider, ruleRepo, runRepo, autoMatcher, workerPool)

	// Start the outbox poller in the background
	var dlqPublisher producers.DeadLetterPublisher
	if dlqProducer != nil {
		dlqPublisher = dlqProducer
	}
	poller := events.NewPoller(&cfg.Outbox, outboxRepo, eventProducer, dlqPublisher, log)
	go poller.Start(appCtx)

	// Initialize REST server
	server := api.NewServer(log, cfg, reconciliationService, autoMatchService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context; this also stops the outbox poller
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	workerPool.Release()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing Kafka event producer", "error", err)
	}
	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ producer", "error", err)
		}
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
