// Package main is the entry point for the LabWatch alerting service.
// It initializes all components and starts the HTTP server, the feed
// consumer, and the rule evaluation loop.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"labwatch/internal/alerting"
	"labwatch/internal/api"
	"labwatch/internal/banner"
	"labwatch/internal/clock"
	"labwatch/internal/config"
	"labwatch/internal/dispatch"
	"labwatch/internal/domain"
	"labwatch/internal/evaluator"
	"labwatch/internal/feed"
	"labwatch/internal/ingest"
	"labwatch/internal/notification"
	"labwatch/internal/queue"
	kafkaqueue "labwatch/internal/queue/kafka"
	memoryqueue "labwatch/internal/queue/memory"
	"labwatch/internal/store"
	memorystor "labwatch/internal/store/memory"
	postgresstor "labwatch/internal/store/postgres"
	redisstor "labwatch/internal/store/redis"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	banner.Print()

	// Initialize logger
	logger := initLogger()

	// Load configuration, falling back to defaults when no file is present
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Error("failed to load configuration", "error", err, "path", *configPath)
			os.Exit(1)
		}
		logger.Info("no config file found, using defaults", "path", *configPath)
		cfg = config.Default()
	}

	logger.Info("configuration loaded",
		"path", *configPath,
		"storage_mode", cfg.Storage.Mode,
	)

	// Initialize dependencies based on storage mode
	deps, cleanup, err := initDependencies(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start the expiry sweep and the evaluation loop
	deps.center.Start()
	deps.evaluator.Start(ctx)

	// Start feed consumer in background
	go func() {
		if err := deps.feed.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("feed consumer error", "error", err)
			cancel()
		}
	}()

	if deps.simulator != nil {
		deps.simulator.Start(ctx)
	}

	// Start HTTP server
	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("LabWatch started",
		"address", cfg.Server.Address(),
		"storage_mode", cfg.Storage.Mode,
		"simulator", deps.simulator != nil,
	)

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if deps.simulator != nil {
		deps.simulator.Stop()
	}
	deps.evaluator.Stop()
	deps.center.Stop()
	deps.dispatcher.Close()

	logger.Info("LabWatch stopped")
}

// dependencies holds all initialized service dependencies.
type dependencies struct {
	server     *api.Server
	center     *notification.Center
	evaluator  *evaluator.Evaluator
	dispatcher *dispatch.Dispatcher
	feed       *feed.Service
	simulator  *feed.Simulator
}

// initDependencies creates and wires all service dependencies based on config.
// Returns the dependencies and a cleanup function.
func initDependencies(cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		alertRepo    store.AlertRepository
		ruleRepo     store.RuleRepository
		metricStore  store.MetricStore
		producer     queue.Producer
		consumer     queue.Consumer
		cleanupFuncs []func()
	)

	clk := clock.Real{}

	if cfg.Storage.UseMemory() {
		// Initialize in-memory implementations
		logger.Info("initializing in-memory storage")

		alertRepo = memorystor.NewAlertRepository()
		metricStore = memorystor.NewMetricStore()
		ruleRepo = memorystor.NewRuleRepository()

		memQueue := memoryqueue.NewQueue(10000)
		producer = memQueue
		consumer = memQueue
		cleanupFuncs = append(cleanupFuncs, func() { _ = memQueue.Close() })

		// Fresh in-memory deployments start with the stock rule set.
		if err := seedDefaultRules(context.Background(), ruleRepo, clk, logger); err != nil {
			return nil, nil, err
		}
	} else {
		// Initialize real storage implementations
		logger.Info("initializing production storage (Kafka, Redis, PostgreSQL)")

		// Initialize PostgreSQL
		ctx := context.Background()
		db, err := postgresstor.NewDB(ctx, &cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		// Run migrations
		if err := db.RunMigrations(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("database migrations completed")

		alertRepo = postgresstor.NewAlertRepository(db)
		ruleRepo = postgresstor.NewRuleRepository(db)

		// Initialize Redis
		redisStore, err := redisstor.NewMetricStore(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		metricStore = redisStore
		cleanupFuncs = append(cleanupFuncs, func() { _ = redisStore.Close() })

		// Initialize Kafka
		kafkaProducer := kafkaqueue.NewProducer(&cfg.Kafka)
		producer = kafkaProducer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaProducer.Close() })

		kafkaConsumer := kafkaqueue.NewConsumer(&cfg.Kafka, logger)
		consumer = kafkaConsumer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaConsumer.Close() })
	}

	// Core services
	alertService := alerting.NewService(alertRepo, clk, logger)

	center := notification.NewCenter(clk, cfg.Monitor.MaxNotifications, cfg.Monitor.SweepInterval, logger)

	dispatcher := dispatch.New(center, alertService, nil, logger)

	evalService := evaluator.New(
		ruleRepo,
		metricStore,
		alertService,
		dispatcher,
		clk,
		cfg.Monitor.EvaluateInterval,
		logger,
	)

	ingestService := ingest.NewService(producer, clk, logger)

	feedService := feed.NewService(consumer, metricStore, center, logger)

	var simulator *feed.Simulator
	if cfg.Monitor.Simulator.Enabled {
		simulator = feed.NewSimulator(ingestService, cfg.Monitor.Simulator, logger)
	}

	// Initialize API handlers
	alertHandler := api.NewAlertHandler(alertService, logger)
	ruleHandler := api.NewRuleHandler(ruleRepo, clk, logger)
	notificationHandler := api.NewNotificationHandler(center, logger)
	ingestHandler := api.NewIngestHandler(ingestService, logger)

	// Initialize HTTP server
	server := api.NewServer(api.ServerDeps{
		Config:              &cfg.Server,
		Logger:              logger,
		AlertHandler:        alertHandler,
		RuleHandler:         ruleHandler,
		NotificationHandler: notificationHandler,
		IngestHandler:       ingestHandler,
	})

	// Build cleanup function
	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	return &dependencies{
		server:     server,
		center:     center,
		evaluator:  evalService,
		dispatcher: dispatcher,
		feed:       feedService,
		simulator:  simulator,
	}, cleanup, nil
}

// seedDefaultRules installs the stock rule set into an empty repository.
func seedDefaultRules(ctx context.Context, rules store.RuleRepository, clk clock.Clock, logger *slog.Logger) error {
	existing, err := rules.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, rule := range domain.DefaultRules(clk.Now()) {
		if err := rules.Create(ctx, rule); err != nil {
			return err
		}
	}
	logger.Info("seeded default alert rules")
	return nil
}

// initLogger creates and configures the application logger.
func initLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
