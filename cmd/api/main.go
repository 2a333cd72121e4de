package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docvault/internal/activity"
	"docvault/internal/capacity"
	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	"docvault/internal/events"
	"docvault/internal/extraction"
	handlers "docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/logger"
	"docvault/internal/otel"
	"docvault/internal/repository"
	"docvault/internal/repository/memory"
	"docvault/internal/repository/postgres"
	"docvault/internal/service"
	"docvault/internal/storage"
	"docvault/internal/storage/encryption"
	"docvault/internal/tagging"
	"docvault/internal/tasks"
	"docvault/internal/webhook"
	"docvault/internal/worker"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// repositories bundles the persistence layer selected by configuration.
type repositories struct {
	documents    repository.DocumentRepository
	tags         repository.TagRepository
	taggingRules repository.TaggingRuleRepository
	activity     repository.ActivityRepository
	db           *sql.DB
}

func openRepositories(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*repositories, error) {
	switch cfg.Repository {
	case "memory":
		log.Warn("using in-memory repositories, data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			documents:    store.Documents(),
			tags:         store.Tags(),
			taggingRules: store.TaggingRules(),
			activity:     store.Activity(),
		}, nil
	case "", "postgres":
		if err := migration.Up(cfg.Database, log); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		db, err := database.Open(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		return &repositories{
			documents:    postgres.NewDocumentPostgres(db),
			tags:         postgres.NewTagPostgres(db),
			taggingRules: postgres.NewTaggingRulePostgres(db),
			activity:     postgres.NewActivityPostgres(db),
			db:           db,
		}, nil
	default:
		return nil, fmt.Errorf("unknown repository driver %q", cfg.Repository)
	}
}

func newFileStorage(cfg *config.AppConfig) (*storage.Service, error) {
	driver, err := storage.DefaultRegistry().New(cfg.Storage.Driver, cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.Encryption.Enabled {
		return storage.NewService(driver, nil), nil
	}
	keks, err := encryption.ParseKEKs(cfg.Encryption.KeyEncryptionKeys)
	if err != nil {
		return nil, fmt.Errorf("parse key encryption keys: %w", err)
	}
	layer, err := encryption.New(keks)
	if err != nil {
		return nil, fmt.Errorf("init encryption: %w", err)
	}
	return storage.NewService(driver, layer), nil
}

// accessLogger logs requests through log, or as JSON lines on stdout in ACCESS_LOG_TZ when set.
func accessLogger(cfg *config.AppConfig, log *zap.Logger) (fiber.Handler, error) {
	if cfg.AccessLogTZ == "" {
		return middleware.Logger(log), nil
	}
	loc, err := time.LoadLocation(cfg.AccessLogTZ)
	if err != nil {
		return nil, fmt.Errorf("load ACCESS_LOG_TZ: %w", err)
	}
	return middleware.LoggerWithWriter(os.Stdout, loc), nil
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	reg := prometheus.DefaultRegisterer
	if repos.db != nil {
		defer repos.db.Close()
		if err := database.RegisterMetrics(repos.db, cfg.Database.Name, reg); err != nil {
			return err
		}
	}

	files, err := newFileStorage(cfg)
	if err != nil {
		return fmt.Errorf("init document storage: %w", err)
	}

	// Side effects: events, activity log and webhooks share one bounded pool.
	pool := worker.New(cfg.Ingestion.SideEffectWorkers, cfg.Ingestion.SideEffectQueueSize, log)
	bus := events.NewBus(pool, log)
	activityLog := activity.New(repos.activity, pool, log)
	activityLog.Subscribe(bus)
	trigger := webhook.NewTrigger(webhook.New(cfg.Webhook, log), pool)
	trigger.Subscribe(bus)

	rules := tagging.NewCachedRules(repos.taggingRules, cfg.Ingestion.TaggingRuleCacheSize, cfg.Ingestion.TaggingRuleCacheTTL, reg)
	evaluator := tagging.NewEvaluator(rules, repos.tags, repos.documents, tagging.NewOperatorRegistry(),
		trigger, activityLog, log, tagging.Options{
			PageSize:    cfg.Ingestion.BulkOperationPageSize,
			Concurrency: cfg.Ingestion.BulkOperationConcurrency,
		})

	registry := tasks.NewRegistry()
	runner, err := tasks.New(cfg, registry, log)
	if err != nil {
		return fmt.Errorf("init task runner: %w", err)
	}

	docSvc := service.NewDocumentService(service.Dependencies{
		Documents:       repos.documents,
		Tags:            repos.tags,
		Storage:         files,
		Limits:          capacity.NewLimiter(capacity.NewStaticPlanProvider(cfg.Ingestion), repos.documents),
		Tagger:          evaluator,
		Extractor:       extraction.NewTextExtractor(),
		Scheduler:       runner,
		Events:          bus,
		Metrics:         service.NewMetrics(reg),
		Logger:          log,
		BulkConcurrency: cfg.Ingestion.BulkOperationConcurrency,
	})
	service.RegisterJobs(registry, docSvc, evaluator)
	runner.Start(ctx)

	periodic := tasks.NewPeriodic(log)
	periodic.RegisterTask(service.ExpirySweepTask(docSvc, cfg.Ingestion.TrashRetentionDays))
	periodic.StartPeriodic(cfg.Ingestion.ExpirySweepInterval)

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(log),
		BodyLimit:             int(cfg.Ingestion.MaxFileSize) + 1<<20,
		StreamRequestBody:     true,
		DisableStartupMessage: true,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	accessLog, err := accessLogger(cfg, log)
	if err != nil {
		return err
	}
	app.Use(accessLog)
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	var db handlers.Pinger
	if repos.db != nil {
		db = repos.db
	}
	handlers.RegisterRoutes(app, db, docSvc)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("http server listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	periodic.Stop()
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Error("task runner shutdown failed", zap.Error(err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Error("worker pool shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}
