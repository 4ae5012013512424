// Package worker drains the estimate queue. Runners are stateless; any
// number of them can poll the same database because claims go through
// FOR UPDATE SKIP LOCKED.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
	"github.com/contractor-tools/estimator/internal/estimate"
	"github.com/contractor-tools/estimator/internal/repository"
)

// Generator runs one generation under an existing queue lease.
type Generator interface {
	GenerateLeased(ctx context.Context, jobID uuid.UUID) (*estimate.Generation, error)
}

type Config struct {
	// PollInterval is the idle sleep between empty claims.
	PollInterval time.Duration
	// ProcessTimeout bounds one generation attempt end to end.
	ProcessTimeout time.Duration
}

type Runner struct {
	id     string
	queue  repository.QueueRepository
	gen    Generator
	cfg    Config
	logger *slog.Logger
}

func NewRunner(queue repository.QueueRepository, gen Generator, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 2 * time.Minute
	}
	id := uuid.New().String()[:8]
	return &Runner{
		id:     id,
		queue:  queue,
		gen:    gen,
		cfg:    cfg,
		logger: logger.With("runner_id", id),
	}
}

// Run polls until the context is cancelled. Claims are drained back to
// back; the poll interval only applies when the queue is empty.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("worker.start", "poll_interval", r.cfg.PollInterval.String())
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("worker.stop")
			return ctx.Err()
		default:
		}

		entry, err := r.queue.ClaimNext(ctx)
		if err != nil {
			r.logger.Error("worker.claim_failed", "error", err)
			if !sleepCtx(ctx, r.cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}
		if entry == nil {
			if !sleepCtx(ctx, r.cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}
		r.process(ctx, entry)
	}
}

// ProcessJob is direct mode: claim and run the pending entry for one
// specific job, bypassing the poll loop. Returns false when the job has
// nothing pending.
func (r *Runner) ProcessJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	entry, err := r.queue.ClaimByJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	r.process(ctx, entry)
	return true, nil
}

func (r *Runner) process(parent context.Context, entry *entity.QueueEntry) {
	log := r.logger.With("queue_id", entry.ID, "job_id", entry.JobID, "attempt", entry.Attempts)
	ctx, cancel := context.WithTimeout(parent, r.cfg.ProcessTimeout)
	defer cancel()

	start := time.Now()
	_, err := r.gen.GenerateLeased(ctx, entry.JobID)
	if err == nil {
		if cerr := r.queue.Complete(parent, entry.ID); cerr != nil {
			log.Error("worker.complete_failed", "error", cerr)
			return
		}
		log.Info("worker.job_ok", "duration_ms", time.Since(start).Milliseconds())
		return
	}

	msg := err.Error()
	switch {
	case permanent(err):
		log.Error("worker.job_failed_permanent", "error", err)
		r.finish(parent, log, entry, msg, true)
	case entry.Attempts >= entry.MaxAttempts:
		log.Error("worker.job_failed_exhausted", "error", err, "max_attempts", entry.MaxAttempts)
		r.finish(parent, log, entry, msg, true)
	default:
		log.Warn("worker.job_retry", "error", err)
		r.finish(parent, log, entry, msg, false)
	}
}

func (r *Runner) finish(ctx context.Context, log *slog.Logger, entry *entity.QueueEntry, msg string, fail bool) {
	var err error
	if fail {
		err = r.queue.Fail(ctx, entry.ID, msg)
	} else {
		err = r.queue.Release(ctx, entry.ID, msg)
	}
	if err != nil {
		log.Error("worker.finish_failed", "error", err)
	}
}

// permanent marks errors that more attempts cannot fix.
func permanent(err error) bool {
	return errors.Is(err, common.ErrPaymentRequired) ||
		errors.Is(err, common.ErrNotFound) ||
		errors.Is(err, common.ErrInvalidInput)
}

// sleepCtx waits the interval, returning false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
