package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/nftpass/service/checkout"
	"github.com/brojonat/nftpass/service/config"
	"github.com/brojonat/nftpass/service/db"
	"github.com/brojonat/nftpass/service/metrics"
	natspkg "github.com/brojonat/nftpass/service/nats"
	"github.com/brojonat/nftpass/service/server"
	"github.com/brojonat/nftpass/service/solana"
	"github.com/brojonat/nftpass/service/temporal"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"simulation_policy", cfg.SimulationPolicy,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil)

	// Initialize Solana RPC client
	// Note: for premium RPC endpoints the API key is part of HELIUS_URL, so it is never logged
	solanaClient := solana.NewClient(solana.NewRPCClient(cfg.RPCURL), solana.EndpointLabel(cfg.RPCURL), metricsCollector, logger)

	// The builder refuses to start without a valid shop key
	checkoutCfg, err := checkout.NewConfig(cfg)
	if err != nil {
		logger.Error("invalid checkout configuration", "error", err)
		os.Exit(1)
	}
	builder, err := checkout.NewBuilder(checkoutCfg, solanaClient, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create transaction builder", "error", err)
		os.Exit(1)
	}
	logger.Info("transaction builder ready",
		"seller", builder.Seller().String(),
		"price", builder.Price().String(),
		"usdc_mint", cfg.USDCMint,
	)

	trackerCfg := server.TrackerConfig{
		PollInterval: cfg.ConfirmPollInterval,
		MaxPolls:     cfg.ConfirmMaxPolls,
		Logger:       logger,
	}

	// Purchase journal (optional)
	var purchases server.PurchaseReader
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := db.NewStore(pool).WithMetrics(metricsCollector)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		purchases = store
		trackerCfg.Journal = store
		logger.Info("connected to database")
	}

	// Purchase events (optional)
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		trackerCfg.Publisher = publisher
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	// Confirmation tracking (optional)
	if cfg.TemporalHost != "" {
		temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
		if err != nil {
			logger.Error("failed to create temporal client", "error", err)
			os.Exit(1)
		}
		defer temporalClient.Close()
		trackerCfg.Starter = temporalClient
		logger.Info("connected to temporal",
			"host", cfg.TemporalHost,
			"namespace", cfg.TemporalNamespace,
			"task_queue", cfg.TemporalTaskQueue,
		)
	}

	// A nil *PurchaseTracker must not become a non-nil checkout.Tracker
	var tracker checkout.Tracker
	if t := server.NewPurchaseTracker(trackerCfg); t != nil {
		tracker = t
	}

	service := checkout.NewService(builder, checkout.NewRelay(metricsCollector, logger), tracker, logger)
	httpServer := server.New(cfg, service, purchases, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"journal", cfg.DatabaseURL != "",
		"events", cfg.NATSURL != "",
		"confirmation_tracking", cfg.TemporalHost != "",
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
