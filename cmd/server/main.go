package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/quantfolio/internal/clients/ibmq"
	"github.com/aristath/quantfolio/internal/clients/yahoo"
	"github.com/aristath/quantfolio/internal/config"
	"github.com/aristath/quantfolio/internal/database"
	"github.com/aristath/quantfolio/internal/modules/analytics"
	"github.com/aristath/quantfolio/internal/modules/market_data"
	"github.com/aristath/quantfolio/internal/modules/optimization"
	"github.com/aristath/quantfolio/internal/modules/quantum"
	"github.com/aristath/quantfolio/internal/scheduler"
	"github.com/aristath/quantfolio/internal/server"
	"github.com/aristath/quantfolio/pkg/logger"
)

func main() {
	// Configuration loads before the logger so LOG_LEVEL and LOG_PRETTY
	// apply from the first line.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("version", server.Version).Msg("Starting Quantfolio")

	// Single database: daily prices plus the optimization run history
	db, err := database.New(database.Config{
		Path: cfg.DataDir + "/quantfolio.db",
		Name: "quantfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Clients
	yahooClient := yahoo.NewClient(log)
	ibmqClient := ibmq.NewClient(cfg.IBMQBaseURL, cfg.IBMQToken, log)

	// Market data module
	priceRepo := market_data.NewPriceRepository(db.Conn(), log)
	preparer := market_data.NewPreparer(yahooClient, priceRepo, log)
	marketDataHandler := market_data.NewHandler(yahooClient, priceRepo, log)

	// Optimization module: quantum backend routing, the QAOA engine, and
	// the classical comparator share one seed so runs are reproducible.
	backendRouter := quantum.NewRouter(ibmqClient, cfg.QAOASeed, log)
	engine := quantum.NewEngine(quantum.Config{
		Depth: cfg.QAOADepth,
		Shots: cfg.QAOAShots,
		Seed:  cfg.QAOASeed,
	}, log)
	solver := optimization.NewMVSolver(uint64(cfg.QAOASeed), log)
	analyticsService := analytics.NewService(yahooClient, solver, log)
	runRepo := optimization.NewRunRepository(db.Conn(), log)
	optimizationService := optimization.NewService(
		preparer,
		backendRouter,
		engine,
		solver,
		analyticsService,
		runRepo,
		log,
	)
	optimizationHandler := optimization.NewHandler(optimizationService, runRepo, log)

	// Initialize scheduler and register background jobs
	sched := scheduler.New(log)
	if cfg.PriceSyncEnabled {
		priceSync := scheduler.NewPriceSyncJob(priceRepo, yahooClient, log)
		if err := sched.AddJob(cfg.PriceSyncCron, priceSync); err != nil {
			log.Fatal().Err(err).Msg("Failed to register price_sync job")
		}
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DB:           db,
		MarketData:   marketDataHandler,
		Optimization: optimizationHandler,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
