// estimate-worker drains the estimate queue. Run with no flags for the
// polling loop, or with -job <uuid> to process one job's pending entry
// and exit.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/contractor-tools/estimator/internal/billing"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/estimate"
	"github.com/contractor-tools/estimator/internal/llm/openai"
	"github.com/contractor-tools/estimator/internal/pdfgen"
	"github.com/contractor-tools/estimator/internal/repository"
	"github.com/contractor-tools/estimator/internal/storage"
	"github.com/contractor-tools/estimator/internal/worker"
)

func main() {
	jobFlag := flag.String("job", "", "process one job's pending entry and exit")
	flag.Parse()

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
	workspaces := repository.NewWorkspaceRepository(pool, logger)
	queue := repository.NewQueueRepository(pool, logger)

	// The queue lease is the single-flight guard on this path; no
	// advisory lock repository is wired.
	orch := estimate.NewOrchestrator(estimate.Deps{
		Jobs:       jobs,
		Photos:     repository.NewPhotoRepository(pool, logger),
		Estimates:  repository.NewEstimateRepository(pool, logger),
		Settings:   repository.NewSettingsRepository(pool, logger),
		Catalog:    repository.NewCatalogRepository(pool, logger),
		Workspaces: workspaces,
		Resolver:   estimate.NewPromptResolver(repository.NewPromptRepository(pool, logger), logger),
		Drafter: openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger),
		Signer: store,
		PDF:    pdfgen.NewClient(cfg.PDF.TriggerURL, cfg.PDF.Timeout, logger),
		Access: billing.NewService(workspaces, logger),
		Logger: logger,
	})

	runner := worker.NewRunner(queue, orch, worker.Config{
		PollInterval:   cfg.Worker.PollInterval,
		ProcessTimeout: cfg.Worker.ProcessTimeout,
	}, logger)

	if *jobFlag != "" {
		jobID, err := uuid.Parse(*jobFlag)
		if err != nil {
			logger.Error("invalid -job flag", "value", *jobFlag)
			os.Exit(2)
		}
		ran, err := runner.ProcessJob(ctx, jobID)
		if err != nil {
			logger.Error("direct mode failed", "error", err)
			os.Exit(1)
		}
		if !ran {
			logger.Info("nothing pending for job", "job_id", jobID)
		}
		return
	}

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
