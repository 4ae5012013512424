// estimatord is the API server: job CRUD, interactive estimate
// generation, settings, catalog import and estimate export.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/contractor-tools/estimator/internal/billing"
	"github.com/contractor-tools/estimator/internal/catalogimport"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/estimate"
	"github.com/contractor-tools/estimator/internal/llm/openai"
	"github.com/contractor-tools/estimator/internal/pdfgen"
	"github.com/contractor-tools/estimator/internal/repository"
	"github.com/contractor-tools/estimator/internal/server"
	"github.com/contractor-tools/estimator/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, 3*time.Second, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		if err := repository.Migrate(pool, dir, logger); err != nil {
			logger.Error("applying migrations", "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.New(ctx, storage.Config{
		Region:      cfg.Storage.Region,
		PhotoBucket: cfg.Storage.PhotoBucket,
		PDFBucket:   cfg.Storage.PDFBucket,
		PresignTTL:  cfg.Storage.PresignTTL,
	}, logger)
	if err != nil {
		logger.Error("initializing object storage", "error", err)
		os.Exit(1)
	}

	jobs := repository.NewJobRepository(pool, logger)
	photos := repository.NewPhotoRepository(pool, logger)
	estimates := repository.NewEstimateRepository(pool, logger)
	settings := repository.NewSettingsRepository(pool, logger)
	catalog := repository.NewCatalogRepository(pool, logger)
	workspaces := repository.NewWorkspaceRepository(pool, logger)
	prompts := repository.NewPromptRepository(pool, logger)
	queue := repository.NewQueueRepository(pool, logger)
	locks := repository.NewLockRepository(pool, logger)

	drafter := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	orch := estimate.NewOrchestrator(estimate.Deps{
		Jobs:       jobs,
		Photos:     photos,
		Estimates:  estimates,
		Settings:   settings,
		Catalog:    catalog,
		Workspaces: workspaces,
		Locks:      locks,
		Resolver:   estimate.NewPromptResolver(prompts, logger),
		Drafter:    drafter,
		Signer:     store,
		PDF:        pdfgen.NewClient(cfg.PDF.TriggerURL, cfg.PDF.Timeout, logger),
		Access:     billing.NewService(workspaces, logger),
		Logger:     logger,
	})

	srv := server.New(server.Deps{
		Jobs:      jobs,
		Photos:    photos,
		Estimates: estimates,
		Settings:  settings,
		Queue:     queue,
		Generator: orch,
		Exporter:  estimate.NewExporter(estimates, logger),
		Importer:  catalogimport.NewImporter(catalog, logger),
		Uploads:   store,
		Health: func(ctx context.Context) error {
			return repository.HealthCheck(ctx, pool, time.Second, logger)
		},
		Logger:      logger,
		DebugErrors: cfg.Server.Debug,
		MaxAttempts: cfg.Worker.MaxAttempts,
	})

	if err := srv.Run(ctx, cfg.Server.HTTPAddr); err != nil && ctx.Err() == nil {
		logger.Error("http server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
